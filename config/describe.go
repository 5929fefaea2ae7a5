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
	"strings"
)

var descriptions = []struct {
	name string
	desc string
	get  func(o *Options, v Variant) (interface{}, bool)
}{
	{"field_excludes", "Exclude fields", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldExcludes, true }},
	{"field_flatten", "Flatten complex fields", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldFlatten, true }},
	{"field_explode", "Explode field", func(o *Options, _ Variant) (interface{}, bool) { return nilIfEmpty(o.FieldExplode), true }},
	{"field_titles", "Rename fields to titles", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldTitles, true }},
	{"field_join", "Join field values", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldJoin, true }},
	{"field_join_value", "Join field values using", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldJoinValue, true }},
	{"field_join_trim", "Join field character limit", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldJoinTrim, true }},
	{"field_null", "Add missing fields", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldNull, true }},
	{"field_null_value", "Missing field value", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldNullValue, true }},
	{"field_null_value_complex", "Missing complex field value", func(o *Options, _ Variant) (interface{}, bool) { return o.FieldNullValueComplex, true }},
	{"tags_add", "Add tags", func(o *Options, _ Variant) (interface{}, bool) { return o.TagsAdd, true }},
	{"tags_remove", "Remove tags", func(o *Options, _ Variant) (interface{}, bool) { return o.TagsRemove, true }},
	{"report_adapters_missing", "Report Missing Adapters", func(o *Options, _ Variant) (interface{}, bool) { return o.ReportAdaptersMissing, true }},
	{"report_software_whitelist", "Report Missing Software", func(o *Options, _ Variant) (interface{}, bool) { return o.ReportSoftwareWhitelist, true }},
	{"page_progress", "Echo page progress every N assets", func(o *Options, _ Variant) (interface{}, bool) { return o.PageProgress, true }},
	{"do_echo", "Echo messages to console", func(o *Options, _ Variant) (interface{}, bool) { return o.DoEcho, true }},
	{"json_flat", "Produce flat JSON", func(o *Options, v Variant) (interface{}, bool) {
		return o.JSON.Flat, v == VariantJSON || v == VariantJSONL
	}},
	{"csv_key_miss", "Value to use when CSV keys are missing", func(o *Options, v Variant) (interface{}, bool) { return o.CSV.KeyMiss, isCSV(v) }},
	{"csv_key_extras", "What to do with extra CSV columns", func(o *Options, v Variant) (interface{}, bool) { return o.CSV.KeyExtras, isCSV(v) }},
	{"csv_dialect", "Dialect to export CSV as", func(o *Options, v Variant) (interface{}, bool) { return o.CSV.Dialect, isCSV(v) }},
	{"csv_quoting", "What quoting to use in CSV export", func(o *Options, v Variant) (interface{}, bool) { return o.CSV.Quoting, isCSV(v) }},
	{"export_file", "Export to file", func(o *Options, v Variant) (interface{}, bool) { return nilIfEmpty(o.Export.File), v != VariantBase }},
	{"export_path", "Export file to path", func(o *Options, v Variant) (interface{}, bool) { return o.Export.Path, v != VariantBase }},
	{"export_overwrite", "Export overwrite file", func(o *Options, v Variant) (interface{}, bool) { return o.Export.Overwrite, v != VariantBase }},
	{"export_schema", "Export schema of fields", func(o *Options, v Variant) (interface{}, bool) { return o.Export.Schema, v != VariantBase }},
	{"export_fd", "Export to a file descriptor", func(o *Options, v Variant) (interface{}, bool) { return o.Export.FD != nil, v != VariantBase }},
	{"export_fd_close", "Close the file descriptor when done", func(o *Options, v Variant) (interface{}, bool) { return o.Export.FDClose, v != VariantBase }},
	{"table_format", "Use table format", func(o *Options, v Variant) (interface{}, bool) { return o.Table.Format, v == VariantTable }},
	{"table_max_rows", "Maximum table rows", func(o *Options, v Variant) (interface{}, bool) { return o.Table.MaxRows, v == VariantTable }},
	{"table_api_fields", "Include API fields", func(o *Options, v Variant) (interface{}, bool) { return o.Table.APIFields, v == VariantTable }},
	{"xlsx_column_length", "Length to use for every column", func(o *Options, v Variant) (interface{}, bool) { return o.XLSX.ColumnLength, v == VariantXLSX }},
	{"xlsx_cell_format", "Formatting to apply to every cell", func(o *Options, v Variant) (interface{}, bool) { return o.XLSX.CellFormat, v == VariantXLSX }},
}

// Describe renders one aligned "<description>: <value>" line per option that
// applies to the variant.
func (o *Options) Describe(v Variant) []string {
	type line struct{ desc, value string }
	var lines []line
	longest := 0
	for _, d := range descriptions {
		value, ok := d.get(o, v)
		if !ok {
			continue
		}
		desc := d.desc + ":"
		if len(desc) > longest {
			longest = len(desc)
		}
		lines = append(lines, line{desc: desc, value: describeValue(value)})
	}

	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = fmt.Sprintf("%-*s %s", longest, l.desc, l.value)
	}
	return out
}

func isCSV(v Variant) bool {
	return v == VariantCSV || v == VariantJSONToCSV
}

func nilIfEmpty(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
