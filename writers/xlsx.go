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
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet rows are streamed into.
const DefaultSheet = "Sheet1"

// XLSXWriterError wraps spreadsheet write errors with context.
type XLSXWriterError struct {
	Op  string
	Err error
}

func (e *XLSXWriterError) Error() string {
	return fmt.Sprintf("xlsx writer %s: %v", e.Op, e.Err)
}

func (e *XLSXWriterError) Unwrap() error {
	return e.Err
}

// XLSXWriterOptions configures spreadsheet output.
type XLSXWriterOptions struct {
	ColumnWidth float64
	CellFormat  map[string]interface{}
	SchemaRows  bool
	FieldTitles bool
	Logger      *slog.Logger
}

// WriterOptionXLSX is a functional option.
type WriterOptionXLSX func(*XLSXWriterOptions)

// WithColumnWidth sets every column's width. Zero keeps the library default.
func WithColumnWidth(width int) WriterOptionXLSX {
	return func(opts *XLSXWriterOptions) {
		opts.ColumnWidth = float64(width)
	}
}

// WithCellFormat sets the cell style applied to data rows. Supported keys are
// text_wrap, bold, align and valign.
func WithCellFormat(format map[string]interface{}) WriterOptionXLSX {
	return func(opts *XLSXWriterOptions) {
		opts.CellFormat = format
	}
}

// WithXLSXSchemaRows writes two schema preview rows after the header.
func WithXLSXSchemaRows(enabled, fieldTitles bool) WriterOptionXLSX {
	return func(opts *XLSXWriterOptions) {
		opts.SchemaRows = enabled
		opts.FieldTitles = fieldTitles
	}
}

func WithXLSXLogger(l *slog.Logger) WriterOptionXLSX {
	return func(opts *XLSXWriterOptions) {
		opts.Logger = l
	}
}

// XLSXWriter implements core.LayoutSink by streaming rows into a workbook
// that is written to the destination on Close.
type XLSXWriter struct {
	dest    io.WriteCloser
	file    *excelize.File
	stream  *excelize.StreamWriter
	options XLSXWriterOptions
	columns []string
	styleID int
	row     int
	began   bool
	closed  bool
	mu      sync.Mutex
}

// NewXLSXWriter creates a spreadsheet writer.
func NewXLSXWriter(w io.WriteCloser, opts ...WriterOptionXLSX) (*XLSXWriter, error) {
	options := XLSXWriterOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	f := excelize.NewFile()
	stream, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		f.Close()
		return nil, &XLSXWriterError{Op: "create", Err: err}
	}
	x := &XLSXWriter{dest: w, file: f, stream: stream, options: options}

	if len(options.CellFormat) > 0 {
		style, err := cellStyle(options.CellFormat, options.Logger)
		if err != nil {
			f.Close()
			return nil, &XLSXWriterError{Op: "style", Err: err}
		}
		if x.styleID, err = f.NewStyle(style); err != nil {
			f.Close()
			return nil, &XLSXWriterError{Op: "style", Err: err}
		}
	}
	return x, nil
}

// Begin sets column widths and writes the header and optional schema rows.
func (x *XLSXWriter) Begin(ctx context.Context, layout []core.Column) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.beginUnsafe(layout)
}

func (x *XLSXWriter) beginUnsafe(layout []core.Column) error {
	if x.began {
		return nil
	}
	x.began = true

	if x.options.ColumnWidth > 0 && len(layout) > 0 {
		if err := x.stream.SetColWidth(1, len(layout), x.options.ColumnWidth); err != nil {
			return &XLSXWriterError{Op: "column_width", Err: err}
		}
	}

	header := make([]interface{}, len(layout))
	first := make([]interface{}, len(layout))
	types := make([]interface{}, len(layout))
	for i, col := range layout {
		x.columns = append(x.columns, col.Key)
		header[i] = col.Key
		if x.options.FieldTitles {
			first[i] = col.Name
		} else {
			first[i] = col.Title
		}
		types[i] = col.Type
	}
	if len(layout) == 0 {
		return nil
	}

	if err := x.setRow(header, excelize.RowOpts{}); err != nil {
		return &XLSXWriterError{Op: "write_header", Err: err}
	}
	if x.options.SchemaRows {
		for _, row := range [][]interface{}{first, types} {
			if err := x.setRow(row, excelize.RowOpts{}); err != nil {
				return &XLSXWriterError{Op: "write_schema", Err: err}
			}
		}
	}
	return nil
}

// Write implements the DataSink interface. Keys outside the layout are dropped.
func (x *XLSXWriter) Write(ctx context.Context, record core.Record) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return &XLSXWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	if !x.began {
		layout := make([]core.Column, 0, len(record))
		for _, key := range orderedKeys(record, nil) {
			layout = append(layout, core.Column{Key: key, Name: key, Title: key})
		}
		if err := x.beginUnsafe(layout); err != nil {
			return err
		}
	}

	values := make([]interface{}, len(x.columns))
	for i, key := range x.columns {
		values[i] = cellValue(record[key])
	}
	if err := x.setRow(values, excelize.RowOpts{StyleID: x.styleID}); err != nil {
		return &XLSXWriterError{Op: "write_row", Err: err}
	}
	return nil
}

// Flush implements the DataSink interface. The workbook is written on Close.
func (x *XLSXWriter) Flush() error {
	return nil
}

// Close finalizes the worksheet, writes the workbook, and closes the destination.
func (x *XLSXWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	defer x.file.Close()

	if err := x.stream.Flush(); err != nil {
		return &XLSXWriterError{Op: "flush", Err: err}
	}
	if _, err := x.file.WriteTo(x.dest); err != nil {
		return &XLSXWriterError{Op: "save", Err: err}
	}
	if err := x.dest.Close(); err != nil {
		return &XLSXWriterError{Op: "close", Err: err}
	}
	return nil
}

// Rows returns the number of worksheet rows written, header included.
func (x *XLSXWriter) Rows() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.row
}

func (x *XLSXWriter) setRow(values []interface{}, opts excelize.RowOpts) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row+1)
	if err != nil {
		return err
	}
	if err := x.stream.SetRow(cell, values, opts); err != nil {
		return err
	}
	x.row++
	return nil
}

func cellValue(v interface{}) interface{} {
	switch v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, float32, float64:
		return v
	default:
		return core.Stringify(v)
	}
}

func cellStyle(format map[string]interface{}, logger *slog.Logger) (*excelize.Style, error) {
	style := &excelize.Style{Alignment: &excelize.Alignment{}}
	for key, value := range format {
		switch key {
		case "text_wrap":
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("text_wrap must be a boolean, got %T", value)
			}
			style.Alignment.WrapText = b
		case "bold":
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("bold must be a boolean, got %T", value)
			}
			style.Font = &excelize.Font{Bold: b}
		case "align":
			style.Alignment.Horizontal = core.Stringify(value)
		case "valign":
			style.Alignment.Vertical = core.Stringify(value)
		default:
			logger.Warn("ignoring unsupported xlsx cell format", "key", key)
		}
	}
	return style, nil
}
