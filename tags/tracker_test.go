//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of AssetETL.
//
// AssetETL is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// AssetETL is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with AssetETL. If not, see https://www.gnu.org/licenses/.

package tags

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLabeler struct {
	addCalls    [][]Fragment
	removeCalls [][]Fragment
	labels      [][]string
	failAdd     bool
}

func (r *recordingLabeler) Add(_ context.Context, assets []Fragment, labels []string) error {
	if r.failAdd {
		return errors.New("boom")
	}
	r.addCalls = append(r.addCalls, assets)
	r.labels = append(r.labels, labels)
	return nil
}

func (r *recordingLabeler) Remove(_ context.Context, assets []Fragment, labels []string) error {
	r.removeCalls = append(r.removeCalls, assets)
	r.labels = append(r.labels, labels)
	return nil
}

func rows(ids ...string) []core.Record {
	out := make([]core.Record, len(ids))
	for i, id := range ids {
		out[i] = core.Record{core.PrimaryIDField: id}
	}
	return out
}

func TestTracker_Deduplicates(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.TrackAdd(rows("a", "b")))
	require.NoError(t, tr.TrackAdd(rows("a", "c")))

	assert.Equal(t, []Fragment{{"a"}, {"b"}, {"c"}}, tr.Added())
	assert.Empty(t, tr.Removed())
}

func TestTracker_MissingID(t *testing.T) {
	tr := NewTracker()
	err := tr.TrackRemove([]core.Record{{"name": "host"}})
	require.Error(t, err)
	var trErr *TrackerError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, "track_remove", trErr.Op)
}

func TestTracker_FlushOnce(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.TrackAdd(rows("a", "b", "a")))
	require.NoError(t, tr.TrackRemove(rows("c")))

	lab := &recordingLabeler{}
	ctx := context.Background()
	require.NoError(t, tr.Flush(ctx, lab, []string{"x"}, []string{"y"}))

	require.Len(t, lab.addCalls, 1)
	assert.Equal(t, []Fragment{{"a"}, {"b"}}, lab.addCalls[0])
	require.Len(t, lab.removeCalls, 1)
	assert.Equal(t, [][]string{{"x"}, {"y"}}, lab.labels)

	err := tr.Flush(ctx, lab, []string{"x"}, []string{"y"})
	assert.True(t, errors.Is(err, ErrAlreadyFlushed))
	assert.Len(t, lab.addCalls, 1)
}

func TestTracker_FlushSkipsEmpty(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.TrackAdd(rows("a")))

	lab := &recordingLabeler{}
	require.NoError(t, tr.Flush(context.Background(), lab, nil, []string{"y"}))
	assert.Empty(t, lab.addCalls)
	assert.Empty(t, lab.removeCalls)
}

func TestTracker_FlushError(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.TrackAdd(rows("a")))
	err := tr.Flush(context.Background(), &recordingLabeler{failAdd: true}, []string{"x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tags add")
}

func TestTracker_FlushWithoutLabeler(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.TrackAdd(rows("a")))
	assert.Error(t, tr.Flush(context.Background(), nil, []string{"x"}, nil))
}

func TestHTTPLabeler(t *testing.T) {
	var gotMethod, gotAuth string
	var got labelRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	lab := NewHTTPLabeler(server.URL, WithBearerToken("secret"))
	require.NoError(t, lab.Add(context.Background(), []Fragment{{"a"}}, []string{"x"}))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []Fragment{{"a"}}, got.Entities)
	assert.Equal(t, []string{"x"}, got.Labels)

	require.NoError(t, lab.Remove(context.Background(), []Fragment{{"a"}}, []string{"x"}))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestHTTPLabeler_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewHTTPLabeler(server.URL).Add(context.Background(), []Fragment{{"a"}}, []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}
