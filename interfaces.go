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
	"github.com/aaronlmathis/assetetl/core"
)

// Package assetetl exports asset inventory rows through a configurable
// transformation pipeline into CSV, JSON, table, spreadsheet, Parquet, or
// PostgreSQL output.
//
// The building blocks live in sub-packages: readers supply rows, transform
// reshapes them, and writers serialize them. This package ties them together
// with the Export driver and re-exports the shared types.

type (
	Record         = core.Record
	Column         = core.Column
	DataSource     = core.DataSource
	DataSink       = core.DataSink
	LayoutSink     = core.LayoutSink
	ProgressSource = core.ProgressSource
	Transformer    = core.Transformer
	Filter         = core.Filter
	ConfigError    = core.ConfigError
)

// ErrConfig matches every configuration error via errors.Is.
var ErrConfig = core.ErrConfig
