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

import "fmt"

// Resolver turns a list of selected field names into a Selection.
type Resolver struct {
	index    map[string]*Field
	excludes []string
}

// NewResolver builds a resolver over a catalog snapshot. Excludes are matched
// against every field identifier.
func NewResolver(catalog Catalog, excludes []string) *Resolver {
	return &Resolver{
		index:    catalog.Index(),
		excludes: append([]string(nil), excludes...),
	}
}

// Lookup returns the catalog schema for a qualified name.
func (r *Resolver) Lookup(name string) (*Field, bool) {
	f, ok := r.index[name]
	return f, ok
}

// Resolve looks up every selected name, synthesizing schemas for unknown names,
// and prepends the custom report schemas. Duplicate names resolve once. The
// returned warnings list every synthesized name.
func (r *Resolver) Resolve(selected []string, custom []*Field) (*Selection, []string) {
	var warnings []string
	fields := make([]*Field, 0, len(custom)+len(selected))
	seen := make(map[string]bool)

	fields = append(fields, custom...)
	for _, f := range custom {
		seen[f.NameQual] = true
	}

	for _, name := range selected {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		f, ok := r.index[name]
		if !ok {
			f = Synthesize(name)
			warnings = append(warnings, fmt.Sprintf("no schema found for field %q, using a synthesized one", name))
		}
		fields = append(fields, f)
	}

	return &Selection{fields: fields, excludes: r.excludes}, warnings
}
