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
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/assetetl/core"
)

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string
	Err error
}

func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write statistics.
type PostgresWriterStats struct {
	RecordsWritten   int64
	BatchesWritten   int64
	TransactionCount int64
	LastWriteTime    time.Time
	WriteDuration    time.Duration
	ConnectionTime   time.Duration
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN           string
	DB            *sql.DB
	TableName     string
	BatchSize     int
	CreateTable   bool
	TruncateTable bool
	QueryTimeout  time.Duration
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresDB uses an existing connection pool instead of opening one.
// The writer does not close a pool it did not open.
func WithPostgresDB(db *sql.DB) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DB = db
	}
}

func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithPostgresBatchSize sets the number of rows loaded per COPY transaction.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.LayoutSink for PostgreSQL. The table holds
// one TEXT column per layout key; rows are bulk loaded with COPY.
type PostgresWriter struct {
	options    PostgresWriterOptions
	db         *sql.DB
	ownsDB     bool
	columns    []string
	recordBuf  []core.Record
	stats      PostgresWriterStats
	began      bool
	closed     bool
	errorState bool
	mu         sync.Mutex
}

// NewPostgresWriter creates a PostgreSQL writer and connects to the database.
func NewPostgresWriter(opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := PostgresWriterOptions{
		BatchSize:    1000,
		CreateTable:  true,
		QueryTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := validatePostgresOptions(options); err != nil {
		return nil, &PostgresWriterError{Op: "validate", Err: err}
	}

	w := &PostgresWriter{
		options:   options,
		db:        options.DB,
		recordBuf: make([]core.Record, 0, options.BatchSize),
	}
	if w.db == nil {
		if err := w.connect(); err != nil {
			return nil, &PostgresWriterError{Op: "connect", Err: err}
		}
	}
	return w, nil
}

func validatePostgresOptions(opts PostgresWriterOptions) error {
	if opts.DSN == "" && opts.DB == nil {
		return fmt.Errorf("dsn is required")
	}
	if opts.TableName == "" {
		return fmt.Errorf("table name is required")
	}
	if opts.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	return nil
}

func (w *PostgresWriter) connect() error {
	start := time.Now()
	db, err := sql.Open("postgres", w.options.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	w.db = db
	w.ownsDB = true
	w.stats.ConnectionTime = time.Since(start)
	return nil
}

// Begin creates and optionally truncates the target table.
func (w *PostgresWriter) Begin(ctx context.Context, layout []core.Column) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.beginUnsafe(ctx, layout)
}

func (w *PostgresWriter) beginUnsafe(ctx context.Context, layout []core.Column) error {
	if w.began {
		return nil
	}
	w.began = true
	for _, col := range layout {
		w.columns = append(w.columns, col.Key)
	}
	if len(w.columns) == 0 {
		w.errorState = true
		return &PostgresWriterError{Op: "begin", Err: fmt.Errorf("no columns to write")}
	}

	if w.options.CreateTable {
		if _, err := w.db.ExecContext(ctx, createTableSQL(w.options.TableName, w.columns)); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "create_table", Err: err}
		}
	}
	if w.options.TruncateTable {
		query := "TRUNCATE TABLE " + pq.QuoteIdentifier(w.options.TableName)
		if _, err := w.db.ExecContext(ctx, query); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "truncate_table", Err: err}
		}
	}
	return nil
}

// Write buffers a row and loads the batch when it is full.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	if w.errorState {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if !w.began {
		layout := make([]core.Column, 0, len(record))
		for _, key := range orderedKeys(record, nil) {
			layout = append(layout, core.Column{Key: key})
		}
		if err := w.beginUnsafe(ctx, layout); err != nil {
			return err
		}
	}

	w.recordBuf = append(w.recordBuf, record)
	if len(w.recordBuf) >= w.options.BatchSize {
		if err := w.flushBufferUnsafe(ctx); err != nil {
			w.errorState = true
			return &PostgresWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// Flush loads any buffered rows.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), w.options.QueryTimeout)
	defer cancel()
	if err := w.flushBufferUnsafe(ctx); err != nil {
		w.errorState = true
		return &PostgresWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close loads remaining rows and closes the pool when the writer opened it.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	var flushErr error
	if !w.errorState {
		flushErr = w.Flush()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.ownsDB && w.db != nil {
		if err := w.db.Close(); err != nil && flushErr == nil {
			return &PostgresWriterError{Op: "close", Err: err}
		}
	}
	return flushErr
}

// Stats returns a copy of the write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *PostgresWriter) flushBufferUnsafe(ctx context.Context) error {
	if len(w.recordBuf) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(w.options.TableName, w.columns...))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for _, record := range w.recordBuf {
		if _, err := stmt.ExecContext(ctx, copyValues(record, w.columns)...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("failed to copy row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.stats.RecordsWritten += int64(len(w.recordBuf))
	w.stats.BatchesWritten++
	w.stats.TransactionCount++
	w.stats.LastWriteTime = time.Now()
	w.stats.WriteDuration += time.Since(start)
	w.recordBuf = w.recordBuf[:0]
	return nil
}

func createTableSQL(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = pq.QuoteIdentifier(col) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(table), strings.Join(defs, ", "))
}

// copyValues renders a row in column order; missing and nil values load as NULL.
func copyValues(record core.Record, columns []string) []interface{} {
	values := make([]interface{}, len(columns))
	for i, col := range columns {
		if v, ok := record[col]; ok && v != nil {
			values[i] = core.Stringify(v)
		}
	}
	return values
}
