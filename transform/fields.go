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

package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/schema"
)

func (p *Pipeline) doExcludes(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if len(p.opts.FieldExcludes) == 0 {
		return rows, nil
	}
	sel := p.Selection()
	for _, row := range rows {
		for _, f := range sel.Fields() {
			if sel.IsExcluded(f) {
				delete(row, f.NameQual)
				continue
			}
			if !f.IsComplex() {
				continue
			}
			items := core.Listify(row[f.NameQual])
			for _, sub := range f.SubFields {
				if !sel.IsExcluded(sub) {
					continue
				}
				for _, item := range items {
					if m, ok := core.AsMap(item); ok {
						delete(m, sub.Name)
					}
				}
			}
		}
	}
	return rows, nil
}

func (p *Pipeline) doNullValues(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if !p.opts.FieldNull {
		return rows, nil
	}
	for _, row := range rows {
		for _, f := range p.Selection().Fields() {
			p.fillNull(row, f, f.NameQual)
		}
	}
	return rows, nil
}

// fillNull adds placeholders for a missing field. Complex values are
// normalized to lists and their items filled by sub-field name.
func (p *Pipeline) fillNull(row map[string]interface{}, f *schema.Field, key string) {
	sel := p.Selection()
	if sel.IsExcluded(f) {
		return
	}
	if !f.IsComplex() {
		if _, ok := row[key]; !ok {
			row[key] = core.CopyValue(p.opts.FieldNullValue)
		}
		return
	}

	value, ok := row[key]
	if !ok {
		value = core.CopyValue(p.opts.FieldNullValueComplex)
	}
	items := core.Listify(value)
	row[key] = items
	for _, item := range items {
		m, ok := core.AsMap(item)
		if !ok {
			continue
		}
		for _, sub := range sel.SubFields(f) {
			p.fillNull(m, sub, sub.Name)
		}
	}
}

func (p *Pipeline) doFlatten(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if !p.opts.FieldFlatten {
		return rows, nil
	}
	explode, _ := p.ExplodeSchema()
	for _, row := range rows {
		for _, f := range p.Selection().Fields() {
			if f != explode {
				p.flattenField(row, f)
			}
		}
	}
	return rows, nil
}

// flattenField replaces a complex field with one list per root sub-field,
// each holding the concatenated values of that sub-field across items.
func (p *Pipeline) flattenField(row core.Record, f *schema.Field) {
	sel := p.Selection()
	if sel.IsExcluded(f) || !f.IsComplex() {
		return
	}
	items := core.Listify(row[f.NameQual])
	delete(row, f.NameQual)

	for _, sub := range sel.SubFields(f) {
		values := []interface{}{}
		for _, item := range items {
			m, ok := core.AsMap(item)
			if !ok {
				continue
			}
			value, ok := m[sub.Name]
			if ok {
				delete(m, sub.Name)
			} else {
				value = core.CopyValue(p.opts.FieldNullValue)
			}
			if list, ok := asList(value); ok {
				values = append(values, list...)
			} else {
				values = append(values, value)
			}
		}
		row[sub.NameQual] = values
	}
}

// doExplode turns a row whose explode field holds N > 1 items into N rows.
// Each output row is an independent deep copy of the source row, so a row with
// N items costs N copies.
func (p *Pipeline) doExplode(_ context.Context, rows []core.Record) ([]core.Record, error) {
	f, err := p.ExplodeSchema()
	if err != nil {
		return nil, err
	}
	if f == nil || p.Selection().IsExcluded(f) {
		return rows, nil
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, p.explodeRow(row, f)...)
	}
	return out, nil
}

func (p *Pipeline) explodeRow(row core.Record, f *schema.Field) []core.Record {
	if len(core.Listify(row[f.NameQual])) <= 1 {
		p.flattenField(row, f)
		return []core.Record{row}
	}

	items := core.Listify(row[f.NameQual])
	delete(row, f.NameQual)

	copies := make([]core.Record, len(items))
	for i := range items {
		copies[i] = row.DeepCopy()
	}

	if !f.IsComplex() {
		for i, item := range items {
			copies[i][f.NameQual] = item
		}
		return copies
	}

	for _, sub := range p.Selection().SubFields(f) {
		for i, item := range items {
			var value interface{}
			m, ok := core.AsMap(item)
			if ok {
				value, ok = m[sub.Name]
				if ok {
					delete(m, sub.Name)
				}
			}
			if !ok {
				value = core.CopyValue(p.opts.FieldNullValue)
			}
			copies[i][sub.NameQual] = value
		}
	}
	return copies
}

func (p *Pipeline) doJoin(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if !p.opts.FieldJoin {
		return rows, nil
	}
	for _, row := range rows {
		for key, value := range row {
			row[key] = JoinValue(value, p.opts.FieldJoinValue, p.opts.FieldJoinTrim)
		}
	}
	return rows, nil
}

// JoinValue joins a list value with sep, then trims any string value of at
// least trim characters down to trim characters followed by a notice carrying
// the original length and the limit. A trim of zero disables trimming.
func JoinValue(value interface{}, sep string, trim int) interface{} {
	if list, ok := asList(value); ok {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = core.Stringify(v)
		}
		value = strings.Join(parts, sep)
	}

	s, ok := value.(string)
	if !ok || trim <= 0 {
		return value
	}
	runes := []rune(s)
	if len(runes) < trim {
		return s
	}
	notice := fmt.Sprintf(config.TrimNoticeFormat, len(runes), trim)
	return string(runes[:trim]) + sep + notice
}

func (p *Pipeline) doTitles(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if !p.opts.FieldTitles {
		return rows, nil
	}
	for _, row := range rows {
		for _, f := range p.FinalSchemas() {
			value, ok := row[f.NameQual]
			if ok {
				delete(row, f.NameQual)
			} else if f.IsComplex() {
				value = []interface{}{}
			} else {
				value = core.CopyValue(p.opts.FieldNullValue)
			}
			row[f.Title()] = value
		}
	}
	return rows, nil
}

func asList(v interface{}) ([]interface{}, bool) {
	switch v.(type) {
	case []interface{}, []string, []map[string]interface{}, []core.Record:
		return core.Listify(v), true
	}
	return nil, false
}
