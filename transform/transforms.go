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

package transform

import (
	"context"
	"strings"

	"github.com/aaronlmathis/assetetl/core"
)

// Stock record transformers for use as custom callbacks.
//
// Each returns a core.Transformer; wrap them with Each to run them as a
// custom callback. Keep drops rows that fail any of a set of filters.

// Each runs transformers over every row of a batch, in order.
func Each(transformers ...core.Transformer) RowsFunc {
	return func(ctx context.Context, _ *Pipeline, rows []core.Record) ([]core.Record, error) {
		for i, row := range rows {
			for _, t := range transformers {
				out, err := t.Transform(ctx, row)
				if err != nil {
					return nil, err
				}
				row = out
			}
			rows[i] = row
		}
		return rows, nil
	}
}

// Keep drops rows for which any filter returns false.
func Keep(filters ...core.Filter) RowsFunc {
	return func(ctx context.Context, _ *Pipeline, rows []core.Record) ([]core.Record, error) {
		kept := rows[:0]
	rowLoop:
		for _, row := range rows {
			for _, f := range filters {
				ok, err := f.ShouldInclude(ctx, row)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue rowLoop
				}
			}
			kept = append(kept, row)
		}
		return kept, nil
	}
}

// Select keeps only the specified fields of each row.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			if value, exists := record[field]; exists {
				result[field] = value
			}
		}
		return result, nil
	})
}

// Rename renames fields according to mapping. Keys are original field names,
// values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// AddField sets field to a value computed from the row.
func AddField(field string, fn func(core.Record) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		record[field] = fn(record)
		return record, nil
	})
}

// TrimSpace trims whitespace from string fields and from strings inside list fields.
func TrimSpace(fields ...string) core.Transformer {
	return mapStrings(strings.TrimSpace, fields)
}

// ToUpper upper-cases string fields and strings inside list fields.
func ToUpper(fields ...string) core.Transformer {
	return mapStrings(strings.ToUpper, fields)
}

// ToLower lower-cases string fields and strings inside list fields.
func ToLower(fields ...string) core.Transformer {
	return mapStrings(strings.ToLower, fields)
}

func mapStrings(fn func(string) string, fields []string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		for _, field := range fields {
			switch v := record[field].(type) {
			case string:
				record[field] = fn(v)
			case []interface{}:
				for i, item := range v {
					if s, ok := item.(string); ok {
						v[i] = fn(s)
					}
				}
			}
		}
		return record, nil
	})
}

// RemoveFields removes the specified fields from each row. Missing fields are ignored.
func RemoveFields(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		for _, field := range fields {
			delete(record, field)
		}
		return record, nil
	})
}
