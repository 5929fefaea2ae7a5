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

package output

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/metric"
	"github.com/aaronlmathis/assetetl/writers"
)

// DefaultPostgresTable is the table loaded when export_pg_table is empty.
const DefaultPostgresTable = "assets"

type sinkOptions struct {
	logger  *slog.Logger
	metrics *metric.Metrics
	pgOpts  []writers.PostgresWriterOption
}

// SinkOption configures NewSink.
type SinkOption func(*sinkOptions)

func WithSinkLogger(l *slog.Logger) SinkOption {
	return func(o *sinkOptions) {
		o.logger = l
	}
}

func WithSinkMetrics(m *metric.Metrics) SinkOption {
	return func(o *sinkOptions) {
		o.metrics = m
	}
}

// WithPostgresOptions passes extra options to the PostgreSQL writer.
func WithPostgresOptions(opts ...writers.PostgresWriterOption) SinkOption {
	return func(o *sinkOptions) {
		o.pgOpts = append(o.pgOpts, opts...)
	}
}

// NeedsDestination reports whether a variant writes to an output handle.
// PostgreSQL exports load into a database instead.
func NeedsDestination(v config.Variant) bool {
	return v != config.VariantPostgres
}

// NewSink builds the sink for a variant over dest. dest may be nil for
// variants that do not need a destination.
func NewSink(v config.Variant, opts config.Options, dest io.WriteCloser, options ...SinkOption) (core.LayoutSink, error) {
	o := sinkOptions{logger: slog.Default()}
	for _, opt := range options {
		opt(&o)
	}
	if dest == nil && NeedsDestination(v) {
		return nil, fmt.Errorf("export %s requires an output destination", v)
	}

	switch v {
	case config.VariantBase, config.VariantJSON, config.VariantJSONL:
		return writers.NewJSONWriter(dest, writers.WithJSONLines(opts.JSON.Lines)), nil

	case config.VariantCSV, config.VariantJSONToCSV:
		dialect, err := config.ParseDialect(opts.CSV.Dialect)
		if err != nil {
			return nil, err
		}
		quoting, err := config.ParseQuoting(opts.CSV.Quoting)
		if err != nil {
			return nil, err
		}
		return writers.NewCSVWriter(dest,
			writers.WithDialect(dialect),
			writers.WithQuoting(quoting),
			writers.WithKeyMiss(opts.CSV.KeyMiss),
			writers.WithKeyExtras(opts.CSV.KeyExtras),
			writers.WithSchemaRows(opts.Export.Schema, opts.FieldTitles),
			writers.WithCSVLogger(o.logger),
			writers.WithCSVMetrics(o.metrics),
		)

	case config.VariantTable:
		w, err := writers.NewTableWriter(dest, opts.Table.Format, opts.Table.MaxRows)
		if err != nil {
			return nil, core.NewConfigError("table_format", "unsupported value %q, valid values: %s",
				opts.Table.Format, strings.Join(writers.TableFormats(), ", "))
		}
		return w, nil

	case config.VariantXLSX:
		return writers.NewXLSXWriter(dest,
			writers.WithColumnWidth(opts.XLSX.ColumnLength),
			writers.WithCellFormat(opts.XLSX.CellFormat),
			writers.WithXLSXSchemaRows(opts.Export.Schema, opts.FieldTitles),
			writers.WithXLSXLogger(o.logger),
		)

	case config.VariantParquet:
		return writers.NewParquetWriter(dest), nil

	case config.VariantPostgres:
		if opts.Export.PGDSN == "" {
			return nil, core.NewConfigError("export_pg_dsn", "required for export %s", v)
		}
		table := opts.Export.PGTable
		if table == "" {
			table = DefaultPostgresTable
		}
		pgOpts := append([]writers.PostgresWriterOption{
			writers.WithPostgresDSN(opts.Export.PGDSN),
			writers.WithTableName(table),
			writers.WithTruncateTable(opts.Export.Overwrite),
		}, o.pgOpts...)
		return writers.NewPostgresWriter(pgOpts...)
	}
	return nil, core.NewConfigError("export", "unsupported value %q, valid values: %s", v, strings.Join(config.Variants(), ", "))
}
