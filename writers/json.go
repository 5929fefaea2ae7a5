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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/aaronlmathis/assetetl/core"
)

// JSONWriterError wraps JSON-specific write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriter)

// WithJSONLines writes one object per line instead of a single array.
func WithJSONLines(lines bool) WriterOptionJSON {
	return func(j *JSONWriter) {
		j.lines = lines
	}
}

// JSONWriter implements core.LayoutSink for JSON output. Object keys follow
// the layout order, with keys outside the layout appended in sorted order.
type JSONWriter struct {
	writer  *bufio.Writer
	closer  io.Closer
	lines   bool
	columns []string
	count   int64
	opened  bool
	closed  bool
	mu      sync.Mutex
}

// NewJSONWriter creates a JSON writer. Output is a streamed array unless
// WithJSONLines is set.
func NewJSONWriter(w io.WriteCloser, opts ...WriterOptionJSON) *JSONWriter {
	j := &JSONWriter{
		writer: bufio.NewWriter(w),
		closer: w,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Begin records the column order.
func (j *JSONWriter) Begin(ctx context.Context, layout []core.Column) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.columns = j.columns[:0]
	for _, col := range layout {
		j.columns = append(j.columns, col.Key)
	}
	return nil
}

// Write implements the DataSink interface.
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return &JSONWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	data, err := encodeOrdered(record, j.columns)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}

	prefix := ""
	switch {
	case j.lines:
	case !j.opened:
		prefix = "[\n"
	default:
		prefix = ",\n"
	}
	j.opened = true

	if _, err := j.writer.WriteString(prefix); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	if _, err := j.writer.Write(data); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}
	if j.lines {
		if err := j.writer.WriteByte('\n'); err != nil {
			return &JSONWriterError{Op: "write", Err: err}
		}
	}
	j.count++
	return nil
}

// Flush implements the DataSink interface.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close terminates the array, flushes, and closes the destination.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if !j.lines {
		tail := "\n]\n"
		if !j.opened {
			tail = "[]\n"
		}
		if _, err := j.writer.WriteString(tail); err != nil {
			return &JSONWriterError{Op: "close", Err: err}
		}
	}
	if err := j.writer.Flush(); err != nil {
		return &JSONWriterError{Op: "flush", Err: err}
	}
	if j.closer != nil {
		if err := j.closer.Close(); err != nil {
			return &JSONWriterError{Op: "close", Err: err}
		}
	}
	return nil
}

// Count returns the number of rows written.
func (j *JSONWriter) Count() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

func encodeOrdered(record core.Record, columns []string) ([]byte, error) {
	keys := orderedKeys(record, columns)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(record[key])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// orderedKeys returns the record's keys in column order, then the rest sorted.
func orderedKeys(record core.Record, columns []string) []string {
	keys := make([]string, 0, len(record))
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		seen[col] = true
		if _, ok := record[col]; ok {
			keys = append(keys, col)
		}
	}
	var rest []string
	for k := range record {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
