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
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/metric"
	"golang.org/x/text/encoding/unicode"
)

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write statistics.
type CSVWriterStats struct {
	RecordsWritten  int64
	ColumnsAdded    int64
	FlushCount      int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// CSVWriterOptions configures delimited text output.
type CSVWriterOptions struct {
	Dialect     config.Dialect
	Quoting     config.Quoting
	WriteHeader bool
	WriteBOM    bool
	Headers     []string
	KeyMiss     interface{}
	KeyExtras   string
	SchemaRows  bool
	FieldTitles bool
	Logger      *slog.Logger
	Metrics     *metric.Metrics
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

// WithHeaders sets the columns used when Begin is never called.
func WithHeaders(headers []string) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Headers = append([]string(nil), headers...)
	}
}

// WithComma overrides the dialect's delimiter.
func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Dialect.Comma = delim
	}
}

// WithDialect sets delimiter and line terminator.
func WithDialect(d config.Dialect) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Dialect = d
	}
}

// WithQuoting sets the quoting policy.
func WithQuoting(q config.Quoting) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Quoting = q
	}
}

// WithWriteHeader toggles the header row and schema rows.
func WithWriteHeader(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteHeader = write
	}
}

// WithBOM toggles the leading UTF-8 byte-order mark.
func WithBOM(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteBOM = write
	}
}

// WithKeyMiss sets the value written for columns a row does not have.
func WithKeyMiss(v interface{}) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.KeyMiss = v
	}
}

// WithKeyExtras sets the policy for row keys beyond the known columns:
// config.ExtrasIgnore appends them as new columns, config.ExtrasRaise fails the write.
func WithKeyExtras(policy string) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.KeyExtras = policy
	}
}

// WithSchemaRows writes two schema preview rows after the header. With field
// titles on they hold qualified names and types, otherwise titles and types.
func WithSchemaRows(enabled, fieldTitles bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.SchemaRows = enabled
		opts.FieldTitles = fieldTitles
	}
}

// WithCSVLogger sets the logger for non-fatal write failures.
func WithCSVLogger(l *slog.Logger) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Logger = l
	}
}

// WithCSVMetrics sets the collectors that count sink errors.
func WithCSVMetrics(m *metric.Metrics) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Metrics = m
	}
}

// CSVWriter implements core.LayoutSink for delimited text output.
type CSVWriter struct {
	writer     *bufio.Writer
	minimal    *csv.Writer
	closer     io.Closer
	options    CSVWriterOptions
	columns    []string
	known      map[string]bool
	stats      CSVWriterStats
	began      bool
	closed     bool
	errorState bool
	mu         sync.Mutex
}

// NewCSVWriter creates a new delimited text writer. Close always closes w;
// pass a non-closing wrapper to keep the destination open.
func NewCSVWriter(w io.WriteCloser, opts ...WriterOptionCSV) (*CSVWriter, error) {
	excel, _ := config.ParseDialect(config.DialectExcel)
	options := CSVWriterOptions{
		Dialect:     excel,
		Quoting:     config.QuoteNonNumeric,
		WriteHeader: true,
		WriteBOM:    true,
		KeyExtras:   config.ExtrasIgnore,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.KeyExtras != config.ExtrasIgnore && options.KeyExtras != config.ExtrasRaise {
		return nil, &CSVWriterError{Op: "create", Err: fmt.Errorf("unsupported key extras policy %q", options.KeyExtras)}
	}

	buffered := bufio.NewWriter(w)
	minimal := csv.NewWriter(buffered)
	minimal.Comma = options.Dialect.Comma
	minimal.UseCRLF = options.Dialect.Terminator == "\r\n"

	return &CSVWriter{
		writer:  buffered,
		minimal: minimal,
		closer:  w,
		options: options,
		known:   make(map[string]bool),
		stats:   CSVWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Begin writes the byte-order mark, the header row, and the optional schema rows.
func (c *CSVWriter) Begin(ctx context.Context, layout []core.Column) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginUnsafe(layout)
}

func (c *CSVWriter) beginUnsafe(layout []core.Column) error {
	if c.began {
		return nil
	}
	c.began = true
	if layout == nil {
		for _, h := range c.options.Headers {
			layout = append(layout, core.Column{Key: h, Name: h, Title: h})
		}
	}
	for _, col := range layout {
		c.addColumn(col.Key)
	}

	if c.options.WriteBOM {
		c.writeBOM()
	}
	if !c.options.WriteHeader {
		return nil
	}
	if err := c.writeStrings(c.columns); err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "write_header", Err: err}
	}
	if c.options.SchemaRows {
		first := make([]string, len(layout))
		types := make([]string, len(layout))
		for i, col := range layout {
			if c.options.FieldTitles {
				first[i] = col.Name
			} else {
				first[i] = col.Title
			}
			types[i] = col.Type
		}
		for _, row := range [][]string{first, types} {
			if err := c.writeStrings(row); err != nil {
				c.errorState = true
				return &CSVWriterError{Op: "write_schema", Err: err}
			}
		}
	}
	return nil
}

// writeBOM writes a UTF-8 byte-order mark. Failures are logged only.
func (c *CSVWriter) writeBOM() {
	bom, err := unicode.UTF8BOM.NewEncoder().Bytes(nil)
	if err == nil {
		_, err = c.writer.Write(bom)
	}
	if err != nil {
		c.options.Logger.Error("failed to write byte-order mark", "error", err)
		c.options.Metrics.SinkError("csv", "bom")
	}
}

// Write implements the DataSink interface.
func (c *CSVWriter) Write(ctx context.Context, record core.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorState {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if c.closed {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	if !c.began {
		if err := c.beginUnsafe(nil); err != nil {
			return err
		}
	}

	var extras []string
	for key := range record {
		if !c.known[key] {
			extras = append(extras, key)
		}
	}
	if len(extras) > 0 {
		sort.Strings(extras)
		if c.options.KeyExtras == config.ExtrasRaise {
			return &CSVWriterError{Op: "write", Err: fmt.Errorf("row has keys not in columns: %s", strings.Join(extras, ", "))}
		}
		for _, key := range extras {
			c.addColumn(key)
			c.stats.ColumnsAdded++
		}
	}

	row := make([]interface{}, len(c.columns))
	for i, key := range c.columns {
		value, ok := record[key]
		if !ok {
			value = c.options.KeyMiss
		}
		if value == nil {
			c.stats.NullValueCounts[key]++
		}
		row[i] = value
	}

	if err := c.writeValues(row); err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "write_row", Err: err}
	}
	c.stats.RecordsWritten++
	return nil
}

// Flush implements the DataSink interface.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushUnsafe()
}

func (c *CSVWriter) flushUnsafe() error {
	start := time.Now()
	if err := c.writer.Flush(); err != nil {
		return &CSVWriterError{Op: "flush", Err: err}
	}
	c.stats.FlushCount++
	c.stats.LastFlushTime = time.Now()
	c.stats.FlushDuration += time.Since(start)
	return nil
}

// Close writes the trailing blank line, flushes, and closes the destination.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if !c.began {
		if err := c.beginUnsafe(nil); err != nil {
			return err
		}
	}
	if _, err := c.writer.WriteString("\n"); err != nil {
		return &CSVWriterError{Op: "close", Err: err}
	}
	if err := c.flushUnsafe(); err != nil {
		return err
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return &CSVWriterError{Op: "close", Err: err}
		}
	}
	return nil
}

// Columns returns the current column set, including columns added by extra keys.
func (c *CSVWriter) Columns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.columns...)
}

// Stats returns write statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	statsCopy := c.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(c.stats.NullValueCounts))
	for k, v := range c.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

func (c *CSVWriter) addColumn(key string) {
	if c.known[key] {
		return
	}
	c.known[key] = true
	c.columns = append(c.columns, key)
}

func (c *CSVWriter) writeStrings(fields []string) error {
	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i] = f
	}
	return c.writeValues(values)
}

// writeValues encodes one row. Minimal quoting goes through encoding/csv;
// the other policies need per-value decisions it cannot make.
func (c *CSVWriter) writeValues(values []interface{}) error {
	if c.options.Quoting == config.QuoteMinimal {
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = core.Stringify(v)
		}
		if err := c.minimal.Write(fields); err != nil {
			return err
		}
		c.minimal.Flush()
		return c.minimal.Error()
	}

	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteRune(c.options.Dialect.Comma)
		}
		b.WriteString(c.formatField(v))
	}
	b.WriteString(c.options.Dialect.Terminator)
	_, err := c.writer.WriteString(b.String())
	return err
}

func (c *CSVWriter) formatField(v interface{}) string {
	s := core.Stringify(v)
	switch c.options.Quoting {
	case config.QuoteAll:
		return quote(s)
	case config.QuoteNonNumeric:
		if core.IsNumeric(v) {
			return s
		}
		return quote(s)
	default:
		return c.escape(s)
	}
}

func (c *CSVWriter) escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == c.options.Dialect.Comma || r == '"' || r == '\\' || r == '\r' || r == '\n' {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
