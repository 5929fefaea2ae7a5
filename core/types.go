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

import "context"

// Package core defines the core types for the AssetETL library.
//
// AssetETL exports asset inventory rows (devices, users) through a configurable
// chain of field transformations into delimited text, JSON, spreadsheet, and
// tabular sinks.
//
// This file contains the primary types and function adapters.

// PrimaryIDField is the key holding an asset's unique identifier in every row.
const PrimaryIDField = "internal_axon_id"

// Record represents a single asset row in the pipeline.
// Each record is a map from qualified field names to values. Values are scalars,
// []interface{} lists, or for complex fields []interface{} of map[string]interface{}.
type Record map[string]interface{}

// DeepCopy returns a copy of the record that shares no maps or slices with the original.
func (r Record) DeepCopy() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue recursively copies maps and slices found in a row value.
func CopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Record:
		return val.DeepCopy()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = CopyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	default:
		return v
	}
}

// Listify normalizes a value into a list: nil becomes an empty list, lists are
// returned as []interface{}, and any other value is wrapped in a single-item list.
func Listify(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out
	case []Record:
		out := make([]interface{}, len(val))
		for i, m := range val {
			out[i] = map[string]interface{}(m)
		}
		return out
	default:
		return []interface{}{v}
	}
}

// AsMap returns v as a plain map when it is a map-shaped row value.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case Record:
		return map[string]interface{}(val), true
	default:
		return nil, false
	}
}

// Column describes one output column as seen by sinks.
type Column struct {
	// Key is the row key the column is read from (title or qualified name).
	Key string
	// Name is the qualified field name.
	Name string
	// Title is the human-readable column title.
	Title string
	// Type is the normalized field type.
	Type string
}

// Progress holds the running fetch counters reported by a data source.
type Progress struct {
	RowsToFetchTotal  int
	PagesToFetchTotal int
	PageNumber        int
	FetchSecondsTotal float64
}

// State holds running counters for a single export run.
type State struct {
	RowsProcessedTotal int
	Progress
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// FilterFunc is a function adapter for the Filter interface.
// Allows ordinary functions to be used as Filters.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}
