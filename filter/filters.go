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

package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/aaronlmathis/assetetl/core"
)

// Package filter provides composable asset row predicates.
//
// Asset fields are frequently lists, so string predicates match a row when the
// field is a string that matches or a list holding at least one string that
// matches. Combine them with transform.Keep to drop rows in a custom callback.

// NotNull excludes rows where the field is missing, nil, an empty string, or an empty list.
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists || value == nil {
			return false, nil
		}
		if str, ok := value.(string); ok && str == "" {
			return false, nil
		}
		if list, ok := value.([]interface{}); ok && len(list) == 0 {
			return false, nil
		}
		return true, nil
	})
}

// Equals includes rows where the field deep-equals the expected value.
func Equals(field string, expectedValue interface{}) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists {
			return false, nil
		}
		return reflect.DeepEqual(value, expectedValue), nil
	})
}

// Contains includes rows where the field, or any string in it, contains substring.
func Contains(field, substring string) core.Filter {
	return anyString(field, func(s string) bool { return strings.Contains(s, substring) })
}

// MatchesRegex includes rows where the field, or any string in it, matches pattern.
func MatchesRegex(field, pattern string) (core.Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern for %s: %w", field, err)
	}
	return anyString(field, re.MatchString), nil
}

// HasAdapter includes rows whose adapters list holds the named adapter.
func HasAdapter(name string) core.Filter {
	return anyString("adapters", func(s string) bool { return s == name })
}

// HasLabel includes rows carrying the label.
func HasLabel(label string) core.Filter {
	return anyString("labels", func(s string) bool { return s == label })
}

// MinAdapters includes rows seen by at least n adapters.
func MinAdapters(n int) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		if count, ok := toFloat64(record["adapter_list_length"]); ok {
			return count >= float64(n), nil
		}
		return len(core.Listify(record["adapters"])) >= n, nil
	})
}

// In includes rows where the field value is one of values.
func In(field string, values ...interface{}) core.Filter {
	valueSet := make(map[interface{}]bool, len(values))
	for _, v := range values {
		valueSet[v] = true
	}
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists {
			return false, nil
		}
		switch value.(type) {
		case []interface{}, map[string]interface{}:
			return false, nil
		}
		return valueSet[value], nil
	})
}

// And requires all filters to pass.
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil || !include {
				return false, err
			}
		}
		return true, nil
	})
}

// Or requires at least one filter to pass.
func Or(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if include {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not negates a filter.
func Not(filter core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		return !include, nil
	})
}

// Custom wraps a plain predicate.
func Custom(predicate func(core.Record) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		return predicate(record), nil
	})
}

// ParseMatch builds a MatchesRegex filter from a "field=pattern" expression.
func ParseMatch(expr string) (core.Filter, error) {
	field, pattern, ok := strings.Cut(expr, "=")
	if !ok || field == "" {
		return nil, fmt.Errorf("invalid match expression %q, want field=pattern", expr)
	}
	return MatchesRegex(field, pattern)
}

func anyString(field string, match func(string) bool) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		switch v := record[field].(type) {
		case string:
			return match(v), nil
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && match(s) {
					return true, nil
				}
			}
		case []string:
			for _, s := range v {
				if match(s) {
					return true, nil
				}
			}
		}
		return false, nil
	})
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
