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

import (
	"errors"
	"fmt"
	"strings"
)

// Package schema models the per-field metadata that drives every row transformation.
//
// A Field describes one asset field: how it is keyed in a row, how it is titled in
// output, and whether it is a simple scalar/list or a complex list of nested items
// with their own sub-fields.

// Kind distinguishes simple fields from complex (nested) fields.
type Kind int

const (
	// KindSimple is a scalar or list of scalars.
	KindSimple Kind = iota
	// KindComplex is a list of nested items described by sub-fields.
	KindComplex
)

func (k Kind) String() string {
	if k == KindComplex {
		return "complex"
	}
	return "simple"
}

// Field is the schema of a single asset field.
type Field struct {
	// Name is the raw key of the field inside its owning scope (row or nested item).
	Name string
	// NameQual is the qualified key as found in a row.
	NameQual string
	// NameBase is the unqualified base name.
	NameBase string
	// ColumnTitle is the human-readable title.
	ColumnTitle string
	// AdapterName is the adapter the field belongs to.
	AdapterName string
	// Kind marks the field as simple or complex.
	Kind Kind
	// IsRoot marks sub-fields that are directly selectable under their parent.
	IsRoot bool
	// TypeNorm is the normalized type name.
	TypeNorm string
	// SubFields describes the items of a complex field.
	SubFields []*Field
	// Synthetic is set for schemas made up for names missing from the catalog.
	Synthetic bool
}

// IsComplex reports whether the field is a list of nested items.
func (f *Field) IsComplex() bool {
	return f.Kind == KindComplex
}

// Title returns the column title, falling back to the qualified name.
func (f *Field) Title() string {
	if f.ColumnTitle != "" {
		return f.ColumnTitle
	}
	return f.NameQual
}

// Keys returns the identifiers a field can be matched by, in lookup order:
// name, qualified name, column title, base name.
func (f *Field) Keys() []string {
	return []string{f.Name, f.NameQual, f.ColumnTitle, f.NameBase}
}

// Matches reports whether any non-empty identifier of the field equals id.
func (f *Field) Matches(id string) bool {
	for _, key := range f.Keys() {
		if key != "" && key == id {
			return true
		}
	}
	return false
}

// Validate checks the simple/complex invariant for the field and its sub-fields.
func (f *Field) Validate() error {
	if f.NameQual == "" {
		return errors.New("field has no qualified name")
	}
	switch f.Kind {
	case KindComplex:
		if len(f.SubFields) == 0 {
			return fmt.Errorf("complex field %q has no sub-fields", f.NameQual)
		}
	case KindSimple:
		if len(f.SubFields) != 0 {
			return fmt.Errorf("simple field %q has sub-fields", f.NameQual)
		}
	default:
		return fmt.Errorf("field %q has unknown kind %d", f.NameQual, f.Kind)
	}
	for _, sub := range f.SubFields {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("%s: %w", f.NameQual, err)
		}
	}
	return nil
}

// NewSimple builds a simple field keyed by qualified name.
func NewSimple(nameQual, title, typeNorm string) *Field {
	return &Field{
		Name:        nameQual,
		NameQual:    nameQual,
		NameBase:    baseName(nameQual),
		ColumnTitle: title,
		Kind:        KindSimple,
		IsRoot:      true,
		TypeNorm:    typeNorm,
	}
}

// NewComplex builds a complex field whose sub-fields are qualified under nameQual.
// Sub-fields without a qualified name get "<nameQual>.<name>".
func NewComplex(nameQual, title string, subs ...*Field) (*Field, error) {
	f := &Field{
		Name:        nameQual,
		NameQual:    nameQual,
		NameBase:    baseName(nameQual),
		ColumnTitle: title,
		Kind:        KindComplex,
		IsRoot:      true,
		TypeNorm:    "array_object",
		SubFields:   subs,
	}
	qualifySubFields(f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Sub builds a sub-field definition keyed by its raw name within an item.
func Sub(name, title, typeNorm string) *Field {
	return &Field{
		Name:        name,
		NameBase:    name,
		ColumnTitle: title,
		Kind:        KindSimple,
		IsRoot:      true,
		TypeNorm:    typeNorm,
	}
}

// Synthesize builds a placeholder schema for a field name the catalog does not know.
func Synthesize(name string) *Field {
	f := NewSimple(name, name, "string")
	f.AdapterName = "custom"
	f.Synthetic = true
	return f
}

func qualifySubFields(f *Field) {
	for _, sub := range f.SubFields {
		if sub.NameQual == "" {
			sub.NameQual = f.NameQual + "." + sub.Name
		}
		if sub.NameBase == "" {
			sub.NameBase = sub.Name
		}
		if sub.AdapterName == "" {
			sub.AdapterName = f.AdapterName
		}
		qualifySubFields(sub)
	}
}

func baseName(nameQual string) string {
	if i := strings.LastIndex(nameQual, "."); i >= 0 {
		return nameQual[i+1:]
	}
	return nameQual
}
