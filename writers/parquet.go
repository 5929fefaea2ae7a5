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
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/assetetl/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string
	Err error
}

func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// WriterStats holds statistics about the Parquet writer.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64
	RowGroupSize int64
	Compression  compress.Compression
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of rows buffered before a record batch is written.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// ParquetWriter implements core.LayoutSink for Parquet output. Every column
// is a nullable UTF8 column named by the layout key; values are stringified.
type ParquetWriter struct {
	dest       io.WriteCloser
	writer     *pqarrow.FileWriter
	schema     *arrow.Schema
	columns    []string
	buffer     []core.Record
	opts       ParquetWriterOptions
	stats      WriterStats
	allocator  memory.Allocator
	closed     bool
	errorState bool
	mu         sync.Mutex
}

// NewParquetWriter creates a Parquet writer over w. Close closes w.
func NewParquetWriter(w io.WriteCloser, options ...WriterOption) *ParquetWriter {
	opts := ParquetWriterOptions{
		BatchSize:    1000,
		RowGroupSize: 10000,
		Compression:  compress.Codecs.Snappy,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	return &ParquetWriter{
		dest:      w,
		opts:      opts,
		stats:     WriterStats{NullValueCounts: make(map[string]int64)},
		allocator: memory.NewGoAllocator(),
	}
}

// Begin builds the Arrow schema from the layout and opens the file writer.
func (p *ParquetWriter) Begin(ctx context.Context, layout []core.Column) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.beginUnsafe(layout)
}

func (p *ParquetWriter) beginUnsafe(layout []core.Column) error {
	if p.schema != nil {
		return nil
	}
	fields := make([]arrow.Field, len(layout))
	for i, col := range layout {
		p.columns = append(p.columns, col.Key)
		fields[i] = arrow.Field{Name: col.Key, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	p.schema = arrow.NewSchema(fields, nil)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	// the file writer closes its sink, which would close dest early
	writer, err := pqarrow.NewFileWriter(p.schema, struct{ io.Writer }{p.dest}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		p.errorState = true
		return &ParquetWriterError{Op: "open", Err: err}
	}
	p.writer = writer
	return nil
}

// Write buffers a row and writes a record batch when the buffer is full.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if p.schema == nil {
		layout := make([]core.Column, 0, len(record))
		for _, key := range orderedKeys(record, nil) {
			layout = append(layout, core.Column{Key: key})
		}
		if err := p.beginUnsafe(layout); err != nil {
			return err
		}
	}

	p.buffer = append(p.buffer, record)
	if int64(len(p.buffer)) >= p.opts.BatchSize {
		return p.flushUnsafe()
	}
	return nil
}

// Flush writes any buffered rows as a record batch.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushUnsafe()
}

func (p *ParquetWriter) flushUnsafe() error {
	if len(p.buffer) == 0 || p.writer == nil {
		return nil
	}
	start := time.Now()

	builder := array.NewRecordBuilder(p.allocator, p.schema)
	defer builder.Release()
	for i, key := range p.columns {
		sb := builder.Field(i).(*array.StringBuilder)
		for _, row := range p.buffer {
			value, ok := row[key]
			if !ok || value == nil {
				sb.AppendNull()
				p.stats.NullValueCounts[key]++
				continue
			}
			sb.Append(core.Stringify(value))
		}
	}
	rec := builder.NewRecord()
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		p.errorState = true
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}
	p.stats.RecordsWritten += int64(len(p.buffer))
	p.stats.BatchesWritten++
	p.stats.LastFlushTime = time.Now()
	p.stats.FlushDuration += time.Since(start)
	p.buffer = p.buffer[:0]
	return nil
}

// Close flushes remaining rows, writes the file footer, and closes the
// destination. A writer that never saw a layout writes nothing.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if !p.errorState {
		if err := p.flushUnsafe(); err != nil {
			return err
		}
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			return &ParquetWriterError{Op: "close_writer", Err: err}
		}
		p.writer = nil
	}
	if err := p.dest.Close(); err != nil {
		return &ParquetWriterError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns write statistics.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
