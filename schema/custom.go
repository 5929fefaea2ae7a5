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

package schema

// Report field names.
const (
	ReportAdaptersMissing   = "report_adapters_missing"
	ReportSoftwareWhitelist = "report_software_whitelist"

	AdaptersMissing   = "adapters_missing"
	SoftwareMissing   = "software_missing"
	SoftwareWhitelist = "software_whitelist"
	SoftwareExtra     = "software_extra"

	// InstalledSoftware is the complex field the software report reads.
	InstalledSoftware = "specific_data.data.installed_software"
)

func reportField(name, title string) *Field {
	return &Field{
		Name:        name,
		NameQual:    name,
		NameBase:    name,
		ColumnTitle: title,
		AdapterName: "report",
		Kind:        KindSimple,
		IsRoot:      true,
		TypeNorm:    "array_string",
	}
}

// AdaptersMissingField is the schema of the missing-adapters report column.
func AdaptersMissingField() *Field {
	return reportField(AdaptersMissing, "Report: Adapters Missing")
}

// SoftwareReportFields are the schemas of the software whitelist report columns.
func SoftwareReportFields() []*Field {
	return []*Field{
		reportField(SoftwareMissing, "Report: Software Missing"),
		reportField(SoftwareWhitelist, "Report: Software Whitelist"),
		reportField(SoftwareExtra, "Report: Software Extra"),
	}
}

// ReportFields returns the report schemas enabled by the two report switches,
// missing-adapters first.
func ReportFields(adaptersMissing, softwareWhitelist bool) []*Field {
	var out []*Field
	if adaptersMissing {
		out = append(out, AdaptersMissingField())
	}
	if softwareWhitelist {
		out = append(out, SoftwareReportFields()...)
	}
	return out
}
