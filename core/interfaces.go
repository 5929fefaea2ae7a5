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

package core

import (
	"context"
)

// Package core defines the core interfaces for the AssetETL library.
//
// This file contains the primary interfaces for data sources, sinks, transformation, and filtering.

// DataSource defines the interface for asset row extraction.
// Implementations stream records from a source (e.g., JSON file, inventory API, MongoDB).
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// ProgressSource is implemented by data sources that know how much is left to fetch.
type ProgressSource interface {
	Progress() Progress
}

// DataSink defines the interface for data loading.
// Implementations write records to a destination (e.g., CSV, XLSX, PostgreSQL).
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close finalizes the output and releases any resources held by the data sink.
	Close() error
}

// LayoutSink is a DataSink that needs the final column layout before the first row.
type LayoutSink interface {
	DataSink
	// Begin is called once, before the first Write, with the ordered output columns.
	Begin(ctx context.Context, layout []Column) error
}

// Transformer defines the interface for single record transformation.
type Transformer interface {
	// Transform applies the transformation to a record and returns the result.
	Transform(ctx context.Context, record Record) (Record, error)
}

// Filter defines the interface for record filtering.
// Filters determine whether a record should be included in the output.
type Filter interface {
	// ShouldInclude returns true if the record should be included in the output.
	ShouldInclude(ctx context.Context, record Record) (bool, error)
}
