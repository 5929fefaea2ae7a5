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
	"io"
	"regexp"
)

// Package config holds the per-run configuration of an asset export.
//
// Options are built from per-variant defaults and may be overlaid from a YAML
// document. Each export variant may force some options regardless of what the
// caller asked for (delimited text always flattens, for example).

// Default values shared by every variant.
const (
	DefaultJoinValue    = "\n"
	DefaultJoinTrim     = 32000
	DefaultPageProgress = 10000
	DefaultExportPath   = "."

	// TrimNoticeFormat is appended to trimmed values with the original length and the limit.
	TrimNoticeFormat = "...TRIMMED - %d characters over %d"
)

// DefaultAPIFields are the fields every inventory query returns regardless of selection.
func DefaultAPIFields() []string {
	return []string{"internal_axon_id", "adapter_list_length", "adapters", "labels"}
}

// Export selects the output destination.
type Export struct {
	File      string    `yaml:"export_file"`
	Path      string    `yaml:"export_path"`
	Overwrite bool      `yaml:"export_overwrite"`
	Schema    bool      `yaml:"export_schema"`
	FD        io.Writer `yaml:"-"`
	FDClose   bool      `yaml:"export_fd_close"`

	S3Bucket  string `yaml:"export_s3_bucket"`
	S3Key     string `yaml:"export_s3_key"`
	S3Region  string `yaml:"export_s3_region"`
	S3Profile string `yaml:"export_s3_profile"`

	PGDSN   string `yaml:"export_pg_dsn"`
	PGTable string `yaml:"export_pg_table"`
}

// CSV configures delimited text output.
type CSV struct {
	KeyMiss   interface{} `yaml:"csv_key_miss"`
	KeyExtras string      `yaml:"csv_key_extras"`
	Dialect   string      `yaml:"csv_dialect"`
	Quoting   string      `yaml:"csv_quoting"`
}

// JSON configures JSON output.
type JSON struct {
	Flat  bool `yaml:"json_flat"`
	Lines bool `yaml:"json_lines"`
}

// Table configures tabular console output.
type Table struct {
	Format    string `yaml:"table_format"`
	MaxRows   int    `yaml:"table_max_rows"`
	APIFields bool   `yaml:"table_api_fields"`
}

// XLSX configures spreadsheet output.
type XLSX struct {
	ColumnLength int                    `yaml:"xlsx_column_length"`
	CellFormat   map[string]interface{} `yaml:"xlsx_cell_format"`
}

// Options is the effective configuration of one export run.
type Options struct {
	Fields    []string `yaml:"fields"`
	APIFields []string `yaml:"api_fields"`

	FieldExcludes         []string    `yaml:"field_excludes"`
	FieldFlatten          bool        `yaml:"field_flatten"`
	FieldExplode          string      `yaml:"field_explode"`
	FieldTitles           bool        `yaml:"field_titles"`
	FieldJoin             bool        `yaml:"field_join"`
	FieldJoinValue        string      `yaml:"field_join_value"`
	FieldJoinTrim         int         `yaml:"field_join_trim"`
	FieldNull             bool        `yaml:"field_null"`
	FieldNullValue        interface{} `yaml:"field_null_value"`
	FieldNullValueComplex interface{} `yaml:"field_null_value_complex"`

	TagsAdd    []string `yaml:"tags_add"`
	TagsRemove []string `yaml:"tags_remove"`

	ReportAdaptersMissing   bool     `yaml:"report_adapters_missing"`
	ReportSoftwareWhitelist []string `yaml:"report_software_whitelist"`

	PageProgress int  `yaml:"page_progress"`
	DoEcho       bool `yaml:"do_echo"`

	Export Export `yaml:",inline"`
	CSV    CSV    `yaml:",inline"`
	JSON   JSON   `yaml:",inline"`
	Table  Table  `yaml:",inline"`
	XLSX   XLSX   `yaml:",inline"`
}

// Defaults returns fresh default options for a variant. Slices and maps are
// never shared between calls.
func Defaults(v Variant) Options {
	opts := Options{
		APIFields:             DefaultAPIFields(),
		FieldJoinValue:        DefaultJoinValue,
		FieldJoinTrim:         DefaultJoinTrim,
		FieldNullValueComplex: []interface{}{},
		PageProgress:          DefaultPageProgress,
		Export: Export{
			Path:    DefaultExportPath,
			FDClose: true,
		},
		CSV: CSV{
			KeyExtras: ExtrasIgnore,
			Dialect:   DialectExcel,
			Quoting:   "nonnumeric",
		},
		Table: Table{
			Format:  "fancy_grid",
			MaxRows: 5,
		},
		XLSX: XLSX{
			CellFormat: map[string]interface{}{"text_wrap": true},
		},
	}
	switch v {
	case VariantCSV, VariantJSONToCSV, VariantXLSX, VariantTable:
		opts.FieldTitles = true
	}
	return opts
}

// Force applies the overrides a variant imposes regardless of caller input.
func (o *Options) Force(v Variant) {
	switch v {
	case VariantCSV, VariantXLSX, VariantTable, VariantParquet, VariantPostgres:
		o.FieldNull = true
		o.FieldFlatten = true
		o.FieldJoin = true
	case VariantJSONToCSV:
		o.FieldNull = true
		o.FieldFlatten = false
		o.FieldJoin = false
	case VariantJSON, VariantJSONL:
		if o.JSON.Flat {
			o.FieldFlatten = true
			o.FieldJoin = true
		}
	}
	if v == VariantJSONL {
		o.JSON.Lines = true
	}
	if v == VariantTable && !o.Table.APIFields {
		o.FieldExcludes = appendMissing(o.FieldExcludes, o.APIFields...)
	}
}

// Validate reports the first unsupported option value as a *core.ConfigError.
func (o *Options) Validate() error {
	if o.FieldJoinTrim < 0 {
		return configError("field_join_trim", "must not be negative, got %d", o.FieldJoinTrim)
	}
	if o.PageProgress < 0 {
		return configError("page_progress", "must not be negative, got %d", o.PageProgress)
	}
	if _, err := ParseQuoting(o.CSV.Quoting); err != nil {
		return err
	}
	if _, err := ParseDialect(o.CSV.Dialect); err != nil {
		return err
	}
	switch o.CSV.KeyExtras {
	case ExtrasIgnore, ExtrasRaise:
	default:
		return configError("csv_key_extras", "unsupported value %q, valid values: %q, %q", o.CSV.KeyExtras, ExtrasIgnore, ExtrasRaise)
	}
	if _, err := o.WhitelistPatterns(); err != nil {
		return err
	}
	if o.Table.MaxRows < 0 {
		return configError("table_max_rows", "must not be negative, got %d", o.Table.MaxRows)
	}
	return nil
}

// WhitelistPatterns compiles the software whitelist as case-insensitive patterns.
func (o *Options) WhitelistPatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(o.ReportSoftwareWhitelist))
	for _, p := range o.ReportSoftwareWhitelist {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, configError("report_software_whitelist", "invalid pattern %q: %v", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// Clone returns a copy of the options that shares no slices or maps.
func (o Options) Clone() Options {
	c := o
	c.Fields = append([]string(nil), o.Fields...)
	c.APIFields = append([]string(nil), o.APIFields...)
	c.FieldExcludes = append([]string(nil), o.FieldExcludes...)
	c.TagsAdd = append([]string(nil), o.TagsAdd...)
	c.TagsRemove = append([]string(nil), o.TagsRemove...)
	c.ReportSoftwareWhitelist = append([]string(nil), o.ReportSoftwareWhitelist...)
	if o.XLSX.CellFormat != nil {
		c.XLSX.CellFormat = make(map[string]interface{}, len(o.XLSX.CellFormat))
		for k, v := range o.XLSX.CellFormat {
			c.XLSX.CellFormat[k] = v
		}
	}
	return c
}

func appendMissing(list []string, items ...string) []string {
	have := make(map[string]bool, len(list))
	for _, s := range list {
		have[s] = true
	}
	for _, s := range items {
		if !have[s] {
			list = append(list, s)
			have[s] = true
		}
	}
	return list
}

func describeValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("%v", v)
}
