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
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/mattn/go-runewidth"
)

type borderChars struct {
	topLeft, topRight, bottomLeft, bottomRight string
	horizontal, vertical                       string
	topTee, bottomTee, leftTee, rightTee       string
	cross                                      string
}

var (
	borderRounded = borderChars{
		topLeft: "╭", topRight: "╮", bottomLeft: "╰", bottomRight: "╯",
		horizontal: "─", vertical: "│",
		topTee: "┬", bottomTee: "┴", leftTee: "├", rightTee: "┤",
		cross: "┼",
	}
	borderASCII = borderChars{
		topLeft: "+", topRight: "+", bottomLeft: "+", bottomRight: "+",
		horizontal: "-", vertical: "|",
		topTee: "+", bottomTee: "+", leftTee: "+", rightTee: "+",
		cross: "+",
	}
	borderHeavy = borderChars{
		topLeft: "┏", topRight: "┓", bottomLeft: "┗", bottomRight: "┛",
		horizontal: "━", vertical: "┃",
		topTee: "┳", bottomTee: "┻", leftTee: "┣", rightTee: "┫",
		cross: "╋",
	}
	borderDouble = borderChars{
		topLeft: "╔", topRight: "╗", bottomLeft: "╚", bottomRight: "╝",
		horizontal: "═", vertical: "║",
		topTee: "╦", bottomTee: "╩", leftTee: "╠", rightTee: "╣",
		cross: "╬",
	}
)

// tableFormats maps table_format names to border sets. A nil entry renders
// a plain table without borders.
var tableFormats = map[string]*borderChars{
	"fancy_grid":   &borderRounded,
	"rounded_grid": &borderRounded,
	"grid":         &borderASCII,
	"psql":         &borderASCII,
	"heavy_grid":   &borderHeavy,
	"double_grid":  &borderDouble,
	"simple":       nil,
	"plain":        nil,
}

// TableFormats returns the supported table format names, sorted.
func TableFormats() []string {
	names := make([]string, 0, len(tableFormats))
	for name := range tableFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableWriterError wraps table-specific errors with context.
type TableWriterError struct {
	Op  string
	Err error
}

func (e *TableWriterError) Error() string {
	return fmt.Sprintf("table writer %s: %v", e.Op, e.Err)
}

func (e *TableWriterError) Unwrap() error {
	return e.Err
}

// TableWriter implements core.LayoutSink by rendering buffered rows as a
// bordered text table on Close. Multi-line values render as multi-line cells.
type TableWriter struct {
	writer   *bufio.Writer
	closer   io.Closer
	border   *borderChars
	maxRows  int
	header   []string
	rows     [][]string
	received int64
	closed   bool
	mu       sync.Mutex
}

// NewTableWriter creates a table writer. maxRows limits the rendered rows;
// zero renders every row.
func NewTableWriter(w io.WriteCloser, format string, maxRows int) (*TableWriter, error) {
	border, ok := tableFormats[format]
	if !ok {
		return nil, &TableWriterError{Op: "create", Err: fmt.Errorf("unsupported table format %q, valid formats: %s",
			format, strings.Join(TableFormats(), ", "))}
	}
	return &TableWriter{
		writer:  bufio.NewWriter(w),
		closer:  w,
		border:  border,
		maxRows: maxRows,
	}, nil
}

// Begin sets the header.
func (t *TableWriter) Begin(ctx context.Context, layout []core.Column) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header = t.header[:0]
	for _, col := range layout {
		t.header = append(t.header, col.Key)
	}
	return nil
}

// Write buffers a row for rendering.
func (t *TableWriter) Write(ctx context.Context, record core.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &TableWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	t.received++
	if t.maxRows > 0 && len(t.rows) >= t.maxRows {
		return nil
	}
	for _, key := range orderedKeys(record, t.header) {
		if !contains(t.header, key) {
			t.header = append(t.header, key)
		}
	}
	row := make([]string, len(t.header))
	for i, key := range t.header {
		row[i] = core.Stringify(record[key])
	}
	t.rows = append(t.rows, row)
	return nil
}

// Flush implements the DataSink interface. Rows render on Close.
func (t *TableWriter) Flush() error {
	return nil
}

// Close renders the table and closes the destination.
func (t *TableWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.render(); err != nil {
		return &TableWriterError{Op: "render", Err: err}
	}
	if err := t.writer.Flush(); err != nil {
		return &TableWriterError{Op: "flush", Err: err}
	}
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			return &TableWriterError{Op: "close", Err: err}
		}
	}
	return nil
}

// Received returns the number of rows written, including rows past the limit.
func (t *TableWriter) Received() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

func (t *TableWriter) render() error {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, cell := range cells {
			for _, line := range strings.Split(cell, "\n") {
				if w := runewidth.StringWidth(line); i < len(widths) && w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}
	if len(widths) == 0 {
		return nil
	}

	if t.border == nil {
		if err := t.plainRow(t.header, widths); err != nil {
			return err
		}
		sep := make([]string, len(widths))
		for i, w := range widths {
			sep[i] = strings.Repeat("-", w)
		}
		if _, err := fmt.Fprintln(t.writer, strings.Join(sep, "  ")); err != nil {
			return err
		}
		for _, row := range t.rows {
			if err := t.plainRow(row, widths); err != nil {
				return err
			}
		}
		return nil
	}

	bc := t.border
	if err := t.hline(widths, bc.topLeft, bc.topTee, bc.topRight); err != nil {
		return err
	}
	if err := t.borderedRow(t.header, widths); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := t.hline(widths, bc.leftTee, bc.cross, bc.rightTee); err != nil {
			return err
		}
		if err := t.borderedRow(row, widths); err != nil {
			return err
		}
	}
	return t.hline(widths, bc.bottomLeft, bc.bottomTee, bc.bottomRight)
}

func (t *TableWriter) hline(widths []int, left, mid, right string) error {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat(t.border.horizontal, w+2)
	}
	_, err := fmt.Fprintln(t.writer, left+strings.Join(parts, mid)+right)
	return err
}

func (t *TableWriter) borderedRow(cells []string, widths []int) error {
	for _, line := range cellLines(cells, len(widths)) {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = " " + padRight(line[i], w) + " "
		}
		v := t.border.vertical
		if _, err := fmt.Fprintln(t.writer, v+strings.Join(parts, v)+v); err != nil {
			return err
		}
	}
	return nil
}

func (t *TableWriter) plainRow(cells []string, widths []int) error {
	for _, line := range cellLines(cells, len(widths)) {
		parts := make([]string, len(widths))
		for i, w := range widths {
			parts[i] = padRight(line[i], w)
		}
		if _, err := fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(parts, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

// cellLines splits multi-line cells into aligned physical lines.
func cellLines(cells []string, numCols int) [][]string {
	split := make([][]string, numCols)
	n := 1
	for i := 0; i < numCols; i++ {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		split[i] = strings.Split(cell, "\n")
		if len(split[i]) > n {
			n = len(split[i])
		}
	}
	lines := make([][]string, n)
	for l := range lines {
		lines[l] = make([]string, numCols)
		for i := range split {
			if l < len(split[i]) {
				lines[l][i] = split[i][l]
			}
		}
	}
	return lines
}

func padRight(s string, width int) string {
	if gap := width - runewidth.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
