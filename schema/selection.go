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

// Selection is the ordered set of schemas for a run's selected fields.
// It is computed once and never mutated.
type Selection struct {
	fields   []*Field
	excludes []string
}

// NewSelection builds a selection directly from schemas.
func NewSelection(fields []*Field, excludes []string) *Selection {
	return &Selection{
		fields:   append([]*Field(nil), fields...),
		excludes: append([]string(nil), excludes...),
	}
}

// Fields returns the selected schemas in order.
func (s *Selection) Fields() []*Field {
	return s.fields
}

// Names returns the qualified names of the selected schemas.
func (s *Selection) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.NameQual
	}
	return names
}

// Contains reports whether a qualified name is selected.
func (s *Selection) Contains(nameQual string) bool {
	for _, f := range s.fields {
		if f.NameQual == nameQual {
			return true
		}
	}
	return false
}

// Find returns the first selected schema matching id by name, qualified
// name, column title, or base name.
func (s *Selection) Find(id string) (*Field, bool) {
	for _, f := range s.fields {
		if f.Matches(id) {
			return f, true
		}
	}
	return nil, false
}

// IsExcluded reports whether any exclude matches any identifier of f.
func (s *Selection) IsExcluded(f *Field) bool {
	for _, ex := range s.excludes {
		if f.Matches(ex) {
			return true
		}
	}
	return false
}

// Excludes returns the configured exclude identifiers.
func (s *Selection) Excludes() []string {
	return s.excludes
}

// SubFields returns the root, non-excluded sub-fields of a complex field.
func (s *Selection) SubFields(f *Field) []*Field {
	var subs []*Field
	for _, sub := range f.SubFields {
		if sub.IsRoot && !s.IsExcluded(sub) {
			subs = append(subs, sub)
		}
	}
	return subs
}
