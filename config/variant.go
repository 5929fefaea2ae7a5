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

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/assetetl/core"
)

// Variant names an export flavor. Each variant selects an output sink and its
// option defaults.
type Variant string

const (
	VariantBase      Variant = "base"
	VariantJSON      Variant = "json"
	VariantJSONL     Variant = "jsonl"
	VariantCSV       Variant = "csv"
	VariantJSONToCSV Variant = "json_to_csv"
	VariantTable     Variant = "table"
	VariantXLSX      Variant = "xlsx"
	VariantParquet   Variant = "parquet"
	VariantPostgres  Variant = "postgres"
)

var variants = map[Variant]bool{
	VariantBase: true, VariantJSON: true, VariantJSONL: true, VariantCSV: true,
	VariantJSONToCSV: true, VariantTable: true, VariantXLSX: true,
	VariantParquet: true, VariantPostgres: true,
}

// Variants returns every supported variant name, sorted.
func Variants() []string {
	names := make([]string, 0, len(variants))
	for v := range variants {
		names = append(names, string(v))
	}
	sort.Strings(names)
	return names
}

// ParseVariant validates an export name.
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	if v == "" {
		return VariantBase, nil
	}
	if !variants[v] {
		return "", configError("export", "invalid export %q, valid exports: %s", name, strings.Join(Variants(), ", "))
	}
	return v, nil
}

// CSV key extras policies.
const (
	ExtrasIgnore = "ignore"
	ExtrasRaise  = "raise"
)

// CSV dialect names.
const (
	DialectExcel    = "excel"
	DialectExcelTab = "excel-tab"
	DialectUnix     = "unix"
)

// Dialect is the delimiter and line terminator of a delimited text format.
type Dialect struct {
	Name       string
	Comma      rune
	Terminator string
}

// ParseDialect resolves a dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case DialectExcel:
		return Dialect{Name: name, Comma: ',', Terminator: "\r\n"}, nil
	case DialectExcelTab:
		return Dialect{Name: name, Comma: '\t', Terminator: "\r\n"}, nil
	case DialectUnix:
		return Dialect{Name: name, Comma: ',', Terminator: "\n"}, nil
	}
	return Dialect{}, configError("csv_dialect", "unsupported dialect %q, valid dialects: %s, %s, %s",
		name, DialectExcel, DialectExcelTab, DialectUnix)
}

// Quoting is a delimited text quoting policy.
type Quoting int

const (
	QuoteMinimal Quoting = iota
	QuoteAll
	QuoteNonNumeric
	QuoteNone
)

var quotingNames = map[string]Quoting{
	"minimal":    QuoteMinimal,
	"all":        QuoteAll,
	"nonnumeric": QuoteNonNumeric,
	"none":       QuoteNone,
}

// ParseQuoting resolves a quoting policy name: all, minimal, nonnumeric, or none.
func ParseQuoting(name string) (Quoting, error) {
	if q, ok := quotingNames[strings.ToLower(name)]; ok {
		return q, nil
	}
	return 0, configError("csv_quoting", "unsupported quoting %q, valid values: all, minimal, nonnumeric, none", name)
}

func configError(option, format string, args ...interface{}) error {
	return &core.ConfigError{Option: option, Err: fmt.Errorf(format, args...)}
}
