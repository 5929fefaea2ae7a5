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

package assetetl

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/filter"
	"github.com/aaronlmathis/assetetl/readers"
	"github.com/aaronlmathis/assetetl/schema"
	"github.com/aaronlmathis/assetetl/transform"
	"github.com/aaronlmathis/assetetl/writers"
)

const hostname = "specific_data.data.hostname"

type bufferSink struct {
	strings.Builder
	closed bool
}

func (b *bufferSink) Close() error {
	b.closed = true
	return nil
}

// sliceSource replays records, then fails with err when set.
type sliceSource struct {
	records  []core.Record
	err      error
	closed   bool
	progress core.Progress
}

func (s *sliceSource) Read(ctx context.Context) (core.Record, error) {
	if len(s.records) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	s.progress.PageNumber++
	return rec, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

func (s *sliceSource) Progress() core.Progress {
	return s.progress
}

func csvPipeline(t *testing.T) *transform.Pipeline {
	t.Helper()
	opts := config.Defaults(config.VariantCSV)
	opts.Fields = []string{hostname}
	opts.PageProgress = 0
	catalog := schema.Catalog{"agg": {schema.NewSimple(hostname, "Host Name", "string")}}
	p, err := transform.New(opts, catalog, transform.WithVariant(config.VariantCSV))
	require.NoError(t, err)
	return p
}

func parseCSV(t *testing.T, out string) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\xef\xbb\xbf")))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExport_JSONToCSV(t *testing.T) {
	input := `[
		{"internal_axon_id": "id1", "specific_data.data.hostname": ["h1", "h1.local"]},
		{"internal_axon_id": "id2"}
	]`
	source := readers.NewJSONReader(io.NopCloser(strings.NewReader(input)))
	out := &bufferSink{}
	sink, err := writers.NewCSVWriter(out)
	require.NoError(t, err)

	export, err := NewExport().From(source).Through(csvPipeline(t)).To(sink).Build()
	require.NoError(t, err)
	require.NoError(t, export.Execute(context.Background()))

	assert.True(t, out.closed)
	assert.True(t, strings.HasSuffix(out.String(), "\r\n\n"))
	rows := parseCSV(t, out.String())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Host Name", "internal_axon_id"}, rows[0])
	assert.Equal(t, []string{"h1\nh1.local", "id1"}, rows[1])
	assert.Equal(t, []string{"", "id2"}, rows[2])
	assert.Equal(t, ExportStats{RowsRead: 2, RowsWritten: 2}, export.Stats())
}

func TestExport_EmptySourceWritesHeader(t *testing.T) {
	out := &bufferSink{}
	sink, err := writers.NewCSVWriter(out)
	require.NoError(t, err)

	export, err := NewExport().From(&sliceSource{}).Through(csvPipeline(t)).To(sink).Build()
	require.NoError(t, err)
	require.NoError(t, export.Execute(context.Background()))

	rows := parseCSV(t, out.String())
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Host Name"}, rows[0])
}

func TestExport_Where(t *testing.T) {
	source := &sliceSource{records: []core.Record{
		{core.PrimaryIDField: "a", hostname: "web-1"},
		{core.PrimaryIDField: "b", hostname: "db-1"},
	}}
	out := &bufferSink{}
	sink := writers.NewJSONWriter(out, writers.WithJSONLines(true))

	match, err := filter.ParseMatch(hostname + "=^web")
	require.NoError(t, err)
	export, err := NewExport().From(source).Through(csvPipeline(t)).To(sink).Where(match).Build()
	require.NoError(t, err)
	require.NoError(t, export.Execute(context.Background()))

	assert.Equal(t, int64(1), export.Stats().RowsFiltered)
	assert.Contains(t, out.String(), "web-1")
	assert.NotContains(t, out.String(), "db-1")
}

func TestExport_ProgressCopiedToState(t *testing.T) {
	source := &sliceSource{records: []core.Record{{core.PrimaryIDField: "a"}, {core.PrimaryIDField: "b"}}}
	p := csvPipeline(t)
	export, err := NewExport().From(source).Through(p).To(writers.NewJSONWriter(&bufferSink{})).Build()
	require.NoError(t, err)
	require.NoError(t, export.Execute(context.Background()))

	assert.Equal(t, 2, p.State().PageNumber)
	assert.Equal(t, 2, p.State().RowsProcessedTotal)
}

func TestExport_SourceErrorAborts(t *testing.T) {
	source := &sliceSource{
		records: []core.Record{{core.PrimaryIDField: "a"}},
		err:     errors.New("connection reset"),
	}
	out := &bufferSink{}
	export, err := NewExport().From(source).Through(csvPipeline(t)).To(writers.NewJSONWriter(out)).Build()
	require.NoError(t, err)

	err = export.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.True(t, out.closed)
	assert.True(t, source.closed)
}

func TestExport_ConfigErrorBeforeRows(t *testing.T) {
	opts := config.Defaults(config.VariantCSV)
	opts.FieldExplode = "nope"
	p, err := transform.New(opts, nil, transform.WithVariant(config.VariantCSV))
	require.NoError(t, err)

	out := &bufferSink{}
	sink, err := writers.NewCSVWriter(out)
	require.NoError(t, err)
	export, err := NewExport().From(&sliceSource{records: []core.Record{{"a": 1}}}).Through(p).To(sink).Build()
	require.NoError(t, err)

	err = export.Execute(context.Background())
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Equal(t, int64(0), export.Stats().RowsWritten)
}

func TestExport_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	export, err := NewExport().
		From(&sliceSource{records: []core.Record{{"a": 1}}}).
		Through(csvPipeline(t)).
		To(writers.NewJSONWriter(&bufferSink{})).
		Build()
	require.NoError(t, err)
	assert.ErrorIs(t, export.Execute(ctx), context.Canceled)
}

func TestExportBuilder_Validation(t *testing.T) {
	_, err := NewExport().Build()
	assert.Error(t, err)
	_, err = NewExport().From(&sliceSource{}).Build()
	assert.Error(t, err)
	_, err = NewExport().From(&sliceSource{}).Through(csvPipeline(t)).Build()
	assert.Error(t, err)
	_, err = NewExport().From(&sliceSource{}).Through(csvPipeline(t)).
		To(writers.NewJSONWriter(&bufferSink{})).WithBatchSize(0).Build()
	assert.Error(t, err)
}
