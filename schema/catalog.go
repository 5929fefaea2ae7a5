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
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog maps adapter names to their ordered field schemas.
type Catalog map[string][]*Field

// fieldDoc is the on-disk representation of a field. JSON documents decode
// through the same path since YAML is a superset of JSON.
type fieldDoc struct {
	Name        string      `yaml:"name"`
	NameQual    string      `yaml:"name_qual"`
	NameBase    string      `yaml:"name_base"`
	ColumnTitle string      `yaml:"column_title"`
	AdapterName string      `yaml:"adapter_name"`
	IsComplex   bool        `yaml:"is_complex"`
	IsRoot      *bool       `yaml:"is_root"`
	TypeNorm    string      `yaml:"type_norm"`
	SubFields   []*fieldDoc `yaml:"sub_fields"`
}

func (d *fieldDoc) toField(adapter, parentQual string) *Field {
	f := &Field{
		Name:        d.Name,
		NameQual:    d.NameQual,
		NameBase:    d.NameBase,
		ColumnTitle: d.ColumnTitle,
		AdapterName: d.AdapterName,
		IsRoot:      d.IsRoot == nil || *d.IsRoot,
		TypeNorm:    d.TypeNorm,
	}
	if f.AdapterName == "" {
		f.AdapterName = adapter
	}
	if f.NameQual == "" {
		if parentQual != "" {
			f.NameQual = parentQual + "." + f.Name
		} else {
			f.NameQual = f.Name
		}
	}
	if f.Name == "" {
		f.Name = f.NameQual
	}
	if f.NameBase == "" {
		f.NameBase = baseName(f.Name)
	}
	if d.IsComplex {
		f.Kind = KindComplex
	}
	for _, sub := range d.SubFields {
		f.SubFields = append(f.SubFields, sub.toField(f.AdapterName, f.NameQual))
	}
	return f
}

// LoadCatalog decodes a catalog document (YAML or JSON) and validates every field.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var docs map[string][]*fieldDoc
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil {
		if err == io.EOF {
			return Catalog{}, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	catalog := make(Catalog, len(docs))
	for adapter, fields := range docs {
		for _, doc := range fields {
			catalog[adapter] = append(catalog[adapter], doc.toField(adapter, ""))
		}
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// LoadCatalogFile reads a catalog from disk.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}

// Validate checks field invariants and that qualified names are unique per adapter.
func (c Catalog) Validate() error {
	for _, adapter := range c.AdapterNames() {
		seen := make(map[string]bool)
		for _, f := range c[adapter] {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("adapter %s: %w", adapter, err)
			}
			if seen[f.NameQual] {
				return fmt.Errorf("adapter %s: duplicate field %q", adapter, f.NameQual)
			}
			seen[f.NameQual] = true
		}
	}
	return nil
}

// AdapterNames returns the catalog's adapter names, sorted.
func (c Catalog) AdapterNames() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index flattens the catalog into a qualified-name lookup. Adapters are
// visited in sorted order and the first schema seen for a name wins.
func (c Catalog) Index() map[string]*Field {
	index := make(map[string]*Field)
	for _, adapter := range c.AdapterNames() {
		for _, f := range c[adapter] {
			if _, ok := index[f.NameQual]; !ok {
				index[f.NameQual] = f
			}
		}
	}
	return index
}
