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

package writers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bom = "\xef\xbb\xbf"

// Mock writer for sink testing
type mockWriteCloser struct {
	*strings.Builder
	closed    bool
	failWrite bool
	failClose bool
	mu        sync.Mutex
}

func (m *mockWriteCloser) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Builder.Write(p)
}

func (m *mockWriteCloser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.failClose {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (m *mockWriteCloser) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Builder.String()
}

func (m *mockWriteCloser) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func newMockWriteCloser() *mockWriteCloser {
	return &mockWriteCloser{
		Builder: &strings.Builder{},
	}
}

func testLayout() []core.Column {
	return []core.Column{
		{Key: "Host Name", Name: "specific_data.data.hostname", Title: "Host Name", Type: "string"},
		{Key: "Count", Name: "count", Title: "Count", Type: "integer"},
	}
}

func readCSV(t *testing.T, out string) [][]string {
	t.Helper()
	require.True(t, strings.HasPrefix(out, bom), "missing byte-order mark")
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, bom)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

// TestCSVWriter_BasicFunctionality tests core write operations
func TestCSVWriter_BasicFunctionality(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Begin(ctx, testLayout()))
	require.NoError(t, writer.Write(ctx, core.Record{"Host Name": "host1", "Count": 3}))
	require.NoError(t, writer.Close())

	out := mock.String()
	assert.Equal(t, bom+"\"Host Name\",\"Count\"\r\n\"host1\",3\r\n\n", out)
	assert.True(t, strings.HasSuffix(out, "\r\n\n"))
	assert.True(t, mock.IsClosed())

	records := readCSV(t, out)
	assert.Equal(t, []string{"Host Name", "Count"}, records[0])
	assert.Equal(t, []string{"host1", "3"}, records[1])
	assert.Equal(t, int64(1), writer.Stats().RecordsWritten)
}

func TestCSVWriter_Quoting(t *testing.T) {
	tests := []struct {
		quoting config.Quoting
		want    string
	}{
		{config.QuoteAll, `"a,b","1","plain"`},
		{config.QuoteMinimal, `"a,b",1,plain`},
		{config.QuoteNonNumeric, `"a,b",1,"plain"`},
		{config.QuoteNone, `a\,b,1,plain`},
	}
	for _, tt := range tests {
		mock := newMockWriteCloser()
		unix, _ := config.ParseDialect(config.DialectUnix)
		writer, err := NewCSVWriter(mock,
			WithQuoting(tt.quoting),
			WithDialect(unix),
			WithWriteHeader(false),
			WithBOM(false),
			WithHeaders([]string{"a", "n", "p"}),
		)
		require.NoError(t, err)
		require.NoError(t, writer.Write(context.Background(), core.Record{"a": "a,b", "n": 1, "p": "plain"}))
		require.NoError(t, writer.Close())
		assert.Equal(t, tt.want+"\n\n", mock.String())
	}
}

func TestCSVWriter_MinimalQuotingExcel(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock,
		WithQuoting(config.QuoteMinimal),
		WithWriteHeader(false),
		WithBOM(false),
		WithHeaders([]string{"q", "lines", "n"}),
	)
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), core.Record{"q": `x"y`, "lines": "l1\nl2", "n": 7}))
	require.NoError(t, writer.Close())
	assert.Equal(t, "\"x\"\"y\",\"l1\r\nl2\",7\r\n\n", mock.String())
}

func TestCSVWriter_ExcelTab(t *testing.T) {
	mock := newMockWriteCloser()
	tab, err := config.ParseDialect(config.DialectExcelTab)
	require.NoError(t, err)
	writer, err := NewCSVWriter(mock, WithDialect(tab), WithQuoting(config.QuoteMinimal))
	require.NoError(t, err)

	require.NoError(t, writer.Begin(context.Background(), testLayout()))
	require.NoError(t, writer.Close())
	assert.Equal(t, bom+"Host Name\tCount\r\n\n", mock.String())
}

func TestCSVWriter_ExtraKeysExtendColumns(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithKeyMiss("MISSING"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Begin(ctx, testLayout()))
	require.NoError(t, writer.Write(ctx, core.Record{"Host Name": "h1", "Count": 1, "zeta": "z", "alpha": "a"}))
	require.NoError(t, writer.Write(ctx, core.Record{"Count": 2}))
	require.NoError(t, writer.Close())

	assert.Equal(t, []string{"Host Name", "Count", "alpha", "zeta"}, writer.Columns())
	records := readCSV(t, mock.String())
	assert.Equal(t, []string{"Host Name", "Count"}, records[0])
	assert.Equal(t, []string{"h1", "1", "a", "z"}, records[1])
	assert.Equal(t, []string{"MISSING", "2", "MISSING", "MISSING"}, records[2])
	assert.Equal(t, int64(2), writer.Stats().ColumnsAdded)
}

func TestCSVWriter_ExtraKeysRaise(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithKeyExtras(config.ExtrasRaise))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Begin(ctx, testLayout()))
	err = writer.Write(ctx, core.Record{"other": 1})
	require.Error(t, err)
	var csvErr *CSVWriterError
	require.True(t, errors.As(err, &csvErr))
	assert.Contains(t, err.Error(), "other")
}

func TestCSVWriter_InvalidExtrasPolicy(t *testing.T) {
	_, err := NewCSVWriter(newMockWriteCloser(), WithKeyExtras("keep"))
	assert.Error(t, err)
}

func TestCSVWriter_SchemaRows(t *testing.T) {
	tests := []struct {
		name   string
		titles bool
		first  []string
	}{
		{"titles", true, []string{"specific_data.data.hostname", "count"}},
		{"names", false, []string{"Host Name", "Count"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockWriteCloser()
			writer, err := NewCSVWriter(mock, WithSchemaRows(true, tt.titles))
			require.NoError(t, err)
			require.NoError(t, writer.Begin(context.Background(), testLayout()))
			require.NoError(t, writer.Close())

			records := readCSV(t, mock.String())
			require.Len(t, records, 3)
			assert.Equal(t, tt.first, records[1])
			assert.Equal(t, []string{"string", "integer"}, records[2])
		})
	}
}

func TestCSVWriter_FlushError(t *testing.T) {
	mock := newMockWriteCloser()
	var logs bytes.Buffer
	writer, err := NewCSVWriter(mock, WithCSVLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	// output is buffered, so the failure surfaces on flush
	require.NoError(t, writer.Begin(context.Background(), testLayout()))
	mock.failWrite = true
	assert.Error(t, writer.Flush())
	assert.Empty(t, logs.String())
}

func TestCSVWriter_ErrorState(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)
	writer.errorState = true

	err = writer.Write(context.Background(), core.Record{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error state")
}

func TestCSVWriter_CloseError(t *testing.T) {
	mock := newMockWriteCloser()
	mock.failClose = true
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)
	assert.Error(t, writer.Close())
	assert.NoError(t, writer.Close())
}

func TestCSVWriter_WriteAfterClose(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Error(t, writer.Write(context.Background(), core.Record{"a": 1}))
}

func TestCSVWriter_ListValues(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithHeaders([]string{"nics"}), WithBOM(false), WithWriteHeader(false))
	require.NoError(t, err)
	require.NoError(t, writer.Write(context.Background(), core.Record{
		"nics": []interface{}{map[string]interface{}{"mac": "aa"}},
	}))
	require.NoError(t, writer.Close())
	assert.Equal(t, "\"[{\"\"mac\"\":\"\"aa\"\"}]\"\r\n\n", mock.String())
}
