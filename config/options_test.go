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
	"errors"
	"strings"
	"testing"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts := Defaults(VariantBase)
	assert.Equal(t, "\n", opts.FieldJoinValue)
	assert.Equal(t, 32000, opts.FieldJoinTrim)
	assert.Equal(t, 10000, opts.PageProgress)
	assert.Nil(t, opts.FieldNullValue)
	assert.Equal(t, []interface{}{}, opts.FieldNullValueComplex)
	assert.False(t, opts.FieldTitles)
	assert.True(t, opts.Export.FDClose)
	assert.Equal(t, "nonnumeric", opts.CSV.Quoting)

	assert.True(t, Defaults(VariantCSV).FieldTitles)
}

func TestDefaults_NotShared(t *testing.T) {
	a := Defaults(VariantBase)
	a.APIFields[0] = "changed"
	a.XLSX.CellFormat["text_wrap"] = false

	b := Defaults(VariantBase)
	assert.Equal(t, "internal_axon_id", b.APIFields[0])
	assert.Equal(t, true, b.XLSX.CellFormat["text_wrap"])
}

func TestForce(t *testing.T) {
	tests := []struct {
		variant             Variant
		null, flatten, join bool
	}{
		{VariantCSV, true, true, true},
		{VariantXLSX, true, true, true},
		{VariantTable, true, true, true},
		{VariantJSONToCSV, true, false, false},
		{VariantBase, false, false, false},
		{VariantJSON, false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			opts := Defaults(tt.variant)
			opts.Force(tt.variant)
			assert.Equal(t, tt.null, opts.FieldNull)
			assert.Equal(t, tt.flatten, opts.FieldFlatten)
			assert.Equal(t, tt.join, opts.FieldJoin)
		})
	}
}

func TestForce_JSONFlat(t *testing.T) {
	opts := Defaults(VariantJSON)
	opts.JSON.Flat = true
	opts.Force(VariantJSON)
	assert.True(t, opts.FieldFlatten)
	assert.True(t, opts.FieldJoin)
}

func TestForce_TableExcludesAPIFields(t *testing.T) {
	opts := Defaults(VariantTable)
	opts.FieldExcludes = []string{"labels"}
	opts.Force(VariantTable)
	assert.Equal(t, []string{"labels", "internal_axon_id", "adapter_list_length", "adapters"}, opts.FieldExcludes)

	opts = Defaults(VariantTable)
	opts.Table.APIFields = true
	opts.Force(VariantTable)
	assert.Empty(t, opts.FieldExcludes)
}

func TestLoad_Overlay(t *testing.T) {
	doc := `
fields: [specific_data.data.hostname, tags]
field_explode: specific_data.data.network_interfaces
field_join_value: ";"
csv_quoting: all
export_file: out.csv
unknown_option: 1
`
	opts, err := Load(strings.NewReader(doc), VariantCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"specific_data.data.hostname", "tags"}, opts.Fields)
	assert.Equal(t, "specific_data.data.network_interfaces", opts.FieldExplode)
	assert.Equal(t, ";", opts.FieldJoinValue)
	assert.Equal(t, "all", opts.CSV.Quoting)
	assert.Equal(t, "out.csv", opts.Export.File)
	assert.Equal(t, 32000, opts.FieldJoinTrim)
	assert.True(t, opts.FieldTitles)
}

func TestLoad_Empty(t *testing.T) {
	opts, err := Load(strings.NewReader(""), VariantBase)
	require.NoError(t, err)
	assert.Equal(t, Defaults(VariantBase), opts)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		option string
	}{
		{"quoting", func(o *Options) { o.CSV.Quoting = "sometimes" }, "csv_quoting"},
		{"dialect", func(o *Options) { o.CSV.Dialect = "excel-pipe" }, "csv_dialect"},
		{"extras", func(o *Options) { o.CSV.KeyExtras = "keep" }, "csv_key_extras"},
		{"trim", func(o *Options) { o.FieldJoinTrim = -1 }, "field_join_trim"},
		{"regex", func(o *Options) { o.ReportSoftwareWhitelist = []string{"chrome("} }, "report_software_whitelist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Defaults(VariantCSV)
			tt.mutate(&opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrConfig))
			var cfgErr *core.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}

	opts := Defaults(VariantCSV)
	assert.NoError(t, opts.Validate())
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("CSV")
	require.NoError(t, err)
	assert.Equal(t, VariantCSV, v)

	v, err = ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, VariantBase, v)

	_, err = ParseVariant("pdf")
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("excel-tab")
	require.NoError(t, err)
	assert.Equal(t, '\t', d.Comma)
}

func TestDescribe(t *testing.T) {
	opts := Defaults(VariantCSV)
	lines := opts.Describe(VariantCSV)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Flatten complex fields:")
	assert.Contains(t, joined, "What quoting to use in CSV export:")
	assert.NotContains(t, joined, "Maximum table rows")

	base := opts.Describe(VariantBase)
	assert.NotContains(t, strings.Join(base, "\n"), "Export to file")
}
