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
	"sort"

	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/schema"
)

func (p *Pipeline) doTagsAdd(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if len(p.opts.TagsAdd) == 0 || len(rows) == 0 {
		return rows, nil
	}
	return rows, p.tracker.TrackAdd(rows)
}

func (p *Pipeline) doTagsRemove(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if len(p.opts.TagsRemove) == 0 || len(rows) == 0 {
		return rows, nil
	}
	return rows, p.tracker.TrackRemove(rows)
}

// adapterSets returns every adapter known to the service and the adapter
// field names derivable from the catalog. Both are loaded once per run.
func (p *Pipeline) adapterSets(ctx context.Context) ([]string, map[string]bool, error) {
	if !p.adaptersDone {
		adapters, err := p.adapters.Adapters(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list adapters: %w", err)
		}
		for _, a := range adapters {
			p.adapterNames = append(p.adapterNames, a.NameRaw)
		}
		p.adaptersDone = true
	}
	fields := make(map[string]bool, len(p.catalog))
	for _, name := range p.catalog.AdapterNames() {
		fields[name+"_adapter"] = true
	}
	return p.adapterNames, fields, nil
}

func (p *Pipeline) doReportAdaptersMissing(ctx context.Context, rows []core.Record) ([]core.Record, error) {
	if !p.opts.ReportAdaptersMissing {
		return rows, nil
	}
	all, fields, err := p.adapterSets(ctx)
	if err != nil {
		return nil, err
	}
	key := schema.AdaptersMissingField().NameQual

	for _, row := range rows {
		have := make(map[string]bool)
		for _, a := range core.Listify(row["adapters"]) {
			have[fmt.Sprint(a)] = true
		}
		missing := []interface{}{}
		seen := make(map[string]bool)
		for _, adapter := range all {
			if have[adapter] || !fields[adapter] || seen[adapter] {
				continue
			}
			seen[adapter] = true
			missing = append(missing, adapter)
		}
		row[key] = missing
	}
	return rows, nil
}

// doReportSoftwareWhitelist reports installed software against the whitelist.
// While any pattern is configured every installed name is reported as extra,
// and the patterns that match at least one installed name are reported as
// missing.
func (p *Pipeline) doReportSoftwareWhitelist(_ context.Context, rows []core.Record) ([]core.Record, error) {
	if len(p.whitelist) == 0 {
		return rows, nil
	}
	whitelist := make([]interface{}, len(p.opts.ReportSoftwareWhitelist))
	for i, w := range p.opts.ReportSoftwareWhitelist {
		whitelist[i] = w
	}

	for _, row := range rows {
		var names []string
		for _, item := range core.Listify(row[schema.InstalledSoftware]) {
			m, ok := core.AsMap(item)
			if !ok {
				continue
			}
			if name, ok := m["name"].(string); ok && name != "" {
				names = append(names, name)
			}
		}

		extras := append([]string(nil), names...)
		var missing []string
		for i, re := range p.whitelist {
			for _, name := range names {
				if re.MatchString(name) {
					missing = append(missing, p.opts.ReportSoftwareWhitelist[i])
					break
				}
			}
		}

		row[schema.SoftwareMissing] = sortedUnique(missing)
		row[schema.SoftwareWhitelist] = append([]interface{}(nil), whitelist...)
		row[schema.SoftwareExtra] = sortedUnique(extras)
	}
	return rows, nil
}

func sortedUnique(values []string) []interface{} {
	seen := make(map[string]bool, len(values))
	uniq := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			uniq = append(uniq, v)
		}
	}
	sort.Strings(uniq)
	out := make([]interface{}, len(uniq))
	for i, v := range uniq {
		out[i] = v
	}
	return out
}
