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
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/transform"
)

// ExportBuilder provides a fluent API for wiring a source, a transformation
// pipeline, and a sink into an Export.
//
//	export, err := assetetl.NewExport().
//	    From(reader).
//	    Through(pipeline).
//	    To(sink).
//	    Build()
//	if err != nil { return err }
//	err = export.Execute(ctx)
type ExportBuilder struct {
	export *Export
}

// NewExport creates a new ExportBuilder.
func NewExport() *ExportBuilder {
	return &ExportBuilder{
		export: &Export{batchSize: 1},
	}
}

// From sets the row source.
func (b *ExportBuilder) From(source DataSource) *ExportBuilder {
	b.export.source = source
	return b
}

// Through sets the transformation pipeline.
func (b *ExportBuilder) Through(p *transform.Pipeline) *ExportBuilder {
	b.export.pipeline = p
	return b
}

// To sets the output sink.
func (b *ExportBuilder) To(sink LayoutSink) *ExportBuilder {
	b.export.sink = sink
	return b
}

// Where drops source rows failing filter before they reach the pipeline.
func (b *ExportBuilder) Where(filter Filter) *ExportBuilder {
	b.export.filters = append(b.export.filters, filter)
	return b
}

// WithBatchSize sets how many source rows are processed together. Rows are
// processed one at a time by default.
func (b *ExportBuilder) WithBatchSize(n int) *ExportBuilder {
	b.export.batchSize = n
	return b
}

func (b *ExportBuilder) WithLogger(l *slog.Logger) *ExportBuilder {
	b.export.logger = l
	return b
}

// Build validates and returns the Export.
func (b *ExportBuilder) Build() (*Export, error) {
	e := b.export
	if e.source == nil {
		return nil, fmt.Errorf("export requires a data source")
	}
	if e.pipeline == nil {
		return nil, fmt.Errorf("export requires a transform pipeline")
	}
	if e.sink == nil {
		return nil, fmt.Errorf("export requires a data sink")
	}
	if e.batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", e.batchSize)
	}
	if e.logger == nil {
		e.logger = e.pipeline.Logger()
	}
	return e, nil
}

// ExportStats counts rows moved by Execute.
type ExportStats struct {
	RowsRead     int64
	RowsFiltered int64
	RowsWritten  int64
}

// Export streams rows from a source through a pipeline into a sink.
type Export struct {
	source    DataSource
	pipeline  *transform.Pipeline
	sink      LayoutSink
	filters   []Filter
	batchSize int
	logger    *slog.Logger
	stats     ExportStats
	began     bool
}

// Execute runs the export to completion. Output order follows input order,
// with exploded rows kept together. The sink is begun with the pipeline's
// final layout before the first row (or at the end when nothing was
// written) and always closed; the source is always closed.
func (e *Export) Execute(ctx context.Context) (err error) {
	defer func() {
		if cerr := e.source.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close source: %w", cerr)
		}
	}()
	defer func() {
		if err != nil {
			if cerr := e.sink.Close(); cerr != nil {
				e.logger.Error("close sink after failure", "error", cerr)
			}
		}
	}()

	if err := e.pipeline.Start(ctx); err != nil {
		return err
	}

	batch := make([]core.Record, 0, e.batchSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := e.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		e.stats.RowsRead++

		keep, err := e.include(ctx, record)
		if err != nil {
			return err
		}
		if !keep {
			e.stats.RowsFiltered++
			continue
		}

		batch = append(batch, record)
		if len(batch) >= e.batchSize {
			if err := e.processBatch(ctx, batch); err != nil {
				return err
			}
			batch = make([]core.Record, 0, e.batchSize)
		}
	}
	if len(batch) > 0 {
		if err := e.processBatch(ctx, batch); err != nil {
			return err
		}
	}

	if err := e.pipeline.Stop(ctx); err != nil {
		return err
	}
	if err := e.begin(ctx); err != nil {
		return err
	}
	if err := e.sink.Close(); err != nil {
		return fmt.Errorf("close sink: %w", err)
	}
	e.logger.Info("export complete",
		"rows_read", e.stats.RowsRead,
		"rows_filtered", e.stats.RowsFiltered,
		"rows_written", e.stats.RowsWritten)
	return nil
}

// Stats returns the row counts of the last Execute.
func (e *Export) Stats() ExportStats {
	return e.stats
}

func (e *Export) include(ctx context.Context, record Record) (bool, error) {
	for _, f := range e.filters {
		ok, err := f.ShouldInclude(ctx, record)
		if err != nil {
			return false, fmt.Errorf("filter: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Export) processBatch(ctx context.Context, batch []core.Record) error {
	if ps, ok := e.source.(ProgressSource); ok {
		e.pipeline.State().Progress = ps.Progress()
	}
	rows, err := e.pipeline.Process(ctx, batch)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := e.begin(ctx); err != nil {
		return err
	}
	for _, row := range rows {
		if err := e.sink.Write(ctx, row); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		e.stats.RowsWritten++
	}
	return nil
}

func (e *Export) begin(ctx context.Context) error {
	if e.began {
		return nil
	}
	e.began = true
	if err := e.sink.Begin(ctx, e.pipeline.Layout()); err != nil {
		return fmt.Errorf("begin sink: %w", err)
	}
	return nil
}
