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
	"context"
	"strings"
	"testing"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readWorkbook(t *testing.T, out string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(strings.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(DefaultSheet)
	require.NoError(t, err)
	return rows
}

func TestXLSXWriter_Basic(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewXLSXWriter(mock,
		WithColumnWidth(40),
		WithCellFormat(map[string]interface{}{"text_wrap": true}),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Begin(ctx, testLayout()))
	require.NoError(t, writer.Write(ctx, core.Record{"Host Name": "host1\nhost1.local", "Count": 2}))
	require.NoError(t, writer.Close())
	assert.True(t, mock.IsClosed())
	assert.Equal(t, 2, writer.Rows())

	rows := readWorkbook(t, mock.String())
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Host Name", "Count"}, rows[0])
	assert.Equal(t, []string{"host1\nhost1.local", "2"}, rows[1])
}

func TestXLSXWriter_SchemaRows(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewXLSXWriter(mock, WithXLSXSchemaRows(true, false))
	require.NoError(t, err)

	require.NoError(t, writer.Begin(context.Background(), testLayout()))
	require.NoError(t, writer.Close())

	rows := readWorkbook(t, mock.String())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Host Name", "Count"}, rows[1])
	assert.Equal(t, []string{"string", "integer"}, rows[2])
}

func TestXLSXWriter_ComplexValues(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewXLSXWriter(mock)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Begin(ctx, []core.Column{{Key: "ips"}}))
	require.NoError(t, writer.Write(ctx, core.Record{"ips": []interface{}{"a", "b"}}))
	require.NoError(t, writer.Close())

	rows := readWorkbook(t, mock.String())
	assert.Equal(t, `["a","b"]`, rows[1][0])
}

func TestXLSXWriter_BadCellFormat(t *testing.T) {
	_, err := NewXLSXWriter(newMockWriteCloser(), WithCellFormat(map[string]interface{}{"text_wrap": "yes"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text_wrap")
}

func TestXLSXWriter_WriteAfterClose(t *testing.T) {
	writer, err := NewXLSXWriter(newMockWriteCloser())
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Error(t, writer.Write(context.Background(), core.Record{"a": 1}))
}
