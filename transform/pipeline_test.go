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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/metric"
	"github.com/aaronlmathis/assetetl/schema"
	"github.com/aaronlmathis/assetetl/tags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hostname = "specific_data.data.hostname"
	nics     = "specific_data.data.network_interfaces"
	macs     = "specific_data.data.network_interfaces.mac"
	ips      = "specific_data.data.network_interfaces.ips"
	software = "specific_data.data.installed_software"
)

func testCatalog(t *testing.T) schema.Catalog {
	t.Helper()
	nicField, err := schema.NewComplex(nics, "Network Interfaces",
		schema.Sub("mac", "Network Interfaces: MAC", "string"),
		schema.Sub("ips", "Network Interfaces: IPs", "array_string"),
		&schema.Field{Name: "subnets", NameBase: "subnets", Kind: schema.KindSimple, IsRoot: false},
	)
	require.NoError(t, err)
	swField, err := schema.NewComplex(software, "Installed Software",
		schema.Sub("name", "Installed Software: Name", "string"),
		schema.Sub("version", "Installed Software: Version", "string"),
	)
	require.NoError(t, err)
	return schema.Catalog{
		"agg": {
			schema.NewSimple(hostname, "Host Name", "string"),
			nicField,
			swField,
		},
		"aws":    {schema.NewSimple("specific_data.data.aws_id", "AWS ID", "string")},
		"active": {schema.NewSimple("specific_data.data.ad_id", "AD ID", "string")},
	}
}

func newPipeline(t *testing.T, mutate func(*config.Options), extra ...Option) *Pipeline {
	t.Helper()
	opts := config.Defaults(config.VariantBase)
	opts.PageProgress = 0
	if mutate != nil {
		mutate(&opts)
	}
	p, err := New(opts, testCatalog(t), extra...)
	require.NoError(t, err)
	return p
}

func nicRow() core.Record {
	return core.Record{
		core.PrimaryIDField: "id1",
		hostname:            "host1",
		nics: []interface{}{
			map[string]interface{}{"mac": "aa", "ips": []interface{}{"10.0.0.1", "10.0.0.2"}, "subnets": "x"},
			map[string]interface{}{"mac": "bb", "ips": []interface{}{"10.0.0.3"}},
			map[string]interface{}{"ips": []interface{}{}},
		},
	}
}

func process(t *testing.T, p *Pipeline, rows ...core.Record) []core.Record {
	t.Helper()
	out, err := p.Process(context.Background(), rows)
	require.NoError(t, err)
	return out
}

func TestPipeline_EmptyConfigPassesRowsThrough(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) { o.Fields = []string{hostname, nics} })
	row := nicRow()
	want := row.DeepCopy()

	out := process(t, p, row)
	require.Len(t, out, 1)
	assert.Equal(t, want, out[0])
}

func TestPipeline_NullFill(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"name", "tags"}
		o.FieldNull = true
		o.FieldNullValue = "N/A"
	})
	out := process(t, p, core.Record{"name": "host1"})
	require.Len(t, out, 1)
	assert.Equal(t, core.Record{"name": "host1", "tags": "N/A"}, out[0])
}

func TestPipeline_NullFillIdempotent(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics, "tags"}
		o.FieldNull = true
	})
	row := core.Record{nics: []interface{}{map[string]interface{}{"mac": "aa"}}}
	once := process(t, p, row)[0].DeepCopy()
	twice := process(t, p, once.DeepCopy())[0]

	assert.Equal(t, once, twice)
	assert.Nil(t, once[hostname])
	item := once[nics].([]interface{})[0].(map[string]interface{})
	assert.Contains(t, item, "ips")
	assert.NotContains(t, item, "subnets")
}

func TestPipeline_NullFillComplexPlaceholder(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{nics}
		o.FieldNull = true
	})
	out := process(t, p, core.Record{})
	assert.Equal(t, []interface{}{}, out[0][nics])
}

func TestPipeline_Excludes(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"name", "tags"}
		o.FieldNull = true
		o.FieldNullValue = "N/A"
		o.FieldExcludes = []string{"tags"}
	})
	out := process(t, p, core.Record{"name": "host1", "tags": "t1"})
	assert.Equal(t, core.Record{"name": "host1"}, out[0])
}

func TestPipeline_ExcludesSubField(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{nics}
		o.FieldExcludes = []string{"Network Interfaces: MAC"}
	})
	out := process(t, p, nicRow())
	for _, item := range out[0][nics].([]interface{}) {
		assert.NotContains(t, item, "mac")
	}
}

func TestPipeline_Flatten(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldFlatten = true
	})
	out := process(t, p, nicRow())
	require.Len(t, out, 1)
	row := out[0]

	assert.NotContains(t, row, nics)
	assert.Equal(t, []interface{}{"aa", "bb", nil}, row[macs])
	assert.Len(t, row[macs], 3)
	assert.Equal(t, []interface{}{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, row[ips])
	assert.NotContains(t, row, nics+".subnets")
	assert.Equal(t, "host1", row[hostname])
}

func TestPipeline_Explode(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldExplode = "network_interfaces"
	})
	out := process(t, p, nicRow())
	require.Len(t, out, 3)

	for i, row := range out {
		assert.Equal(t, "host1", row[hostname], "row %d", i)
		assert.Equal(t, "id1", row[core.PrimaryIDField])
		assert.NotContains(t, row, nics)
	}
	assert.Equal(t, "aa", out[0][macs])
	assert.Equal(t, "bb", out[1][macs])
	assert.Nil(t, out[2][macs])
	assert.Equal(t, []interface{}{"10.0.0.1", "10.0.0.2"}, out[0][ips])

	// copies are independent
	out[0][hostname] = "changed"
	assert.Equal(t, "host1", out[1][hostname])
}

func TestPipeline_ExplodeSingleItemFallsBackToFlatten(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldExplode = nics
	})
	row := core.Record{hostname: "h", nics: []interface{}{map[string]interface{}{"mac": "aa"}}}
	out := process(t, p, row)
	require.Len(t, out, 1)
	assert.Equal(t, []interface{}{"aa"}, out[0][macs])
	assert.NotContains(t, out[0], nics)

	out = process(t, p, core.Record{hostname: "h"})
	require.Len(t, out, 1)
}

func TestPipeline_ExplodeSimpleList(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"labels"}
		o.FieldExplode = "labels"
	})
	out := process(t, p, core.Record{"labels": []interface{}{"a", "b"}, "x": 1})
	require.Len(t, out, 2)
	assert.Equal(t, core.Record{"labels": "a", "x": 1}, out[0])
	assert.Equal(t, core.Record{"labels": "b", "x": 1}, out[1])
}

func TestPipeline_ExplodeSkipsWhenExcluded(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"labels"}
		o.FieldExplode = "labels"
		o.FieldExcludes = []string{"labels"}
	})
	out := process(t, p, core.Record{"labels": []interface{}{"a", "b"}})
	assert.Len(t, out, 1)
}

func TestPipeline_ExplodeNotFound(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname}
		o.FieldExplode = "nope"
	})
	_, err := p.Process(context.Background(), []core.Record{{hostname: "h"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfig))
	assert.Contains(t, err.Error(), "valid fields")
}

func TestJoinValue(t *testing.T) {
	list := []interface{}{"a", "b", "c"}
	assert.Equal(t, "a;b;c", JoinValue(list, ";", 0))

	trimmed := JoinValue(list, ";", 2).(string)
	assert.True(t, strings.HasPrefix(trimmed, "a;"))
	assert.Equal(t, "a;;...TRIMMED - 5 characters over 2", trimmed)

	assert.Equal(t, "abc", JoinValue("abc", ";", 4))
	assert.Equal(t, 7, JoinValue(7, ";", 1))
	assert.Equal(t, "1|true|", JoinValue([]interface{}{1, true, nil}, "|", 0))
}

func TestPipeline_Join(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"labels"}
		o.FieldJoin = true
		o.FieldJoinValue = ";"
	})
	out := process(t, p, core.Record{"labels": []interface{}{"a", "b", "c"}, "n": 1})
	assert.Equal(t, "a;b;c", out[0]["labels"])
	assert.Equal(t, 1, out[0]["n"])
}

func TestPipeline_TitlesAndFinalColumns(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldFlatten = true
		o.FieldTitles = true
	})
	out := process(t, p, core.Record{hostname: "h"})

	assert.Equal(t, []string{"Host Name", "Network Interfaces: MAC", "Network Interfaces: IPs"}, p.FinalColumns())
	assert.Equal(t, core.Record{
		"Host Name":               "h",
		"Network Interfaces: MAC": []interface{}{},
		"Network Interfaces: IPs": []interface{}{},
	}, out[0])

	layout := p.Layout()
	require.Len(t, layout, 3)
	assert.Equal(t, core.Column{Key: "Host Name", Name: hostname, Title: "Host Name", Type: "string"}, layout[0])
}

func TestPipeline_ExcludedFieldsLeaveFinalColumns(t *testing.T) {
	const awsID = "specific_data.data.aws_id"
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, awsID}
		o.FieldExcludes = []string{awsID}
		o.FieldNull = true
		o.FieldNullValue = "N/A"
		o.FieldTitles = true
	})
	out := process(t, p, core.Record{hostname: "host1"})

	assert.Equal(t, []string{"Host Name"}, p.FinalColumns())
	require.Len(t, p.Layout(), 1)
	assert.Equal(t, "Host Name", p.Layout()[0].Key)
	assert.Equal(t, core.Record{"Host Name": "host1"}, out[0])
	assert.NotContains(t, out[0], "AWS ID")
}

func TestPipeline_ExcludedComplexFieldWithFlatten(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldExcludes = []string{nics}
		o.FieldFlatten = true
		o.FieldNull = true
		o.FieldTitles = true
	})
	row := nicRow()
	delete(row, core.PrimaryIDField)
	out := process(t, p, row)

	assert.Equal(t, []string{"Host Name"}, p.FinalColumns())
	for _, f := range p.FinalSchemas() {
		assert.NotEqual(t, nics, f.NameQual)
	}
	assert.Equal(t, core.Record{"Host Name": "host1"}, out[0])
}

func TestPipeline_TitlesComplexDefault(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname, nics}
		o.FieldTitles = true
	})
	out := process(t, p, core.Record{})
	assert.Equal(t, []interface{}{}, out[0]["Network Interfaces"])
	assert.Nil(t, out[0]["Host Name"])
	assert.Equal(t, []string{"Host Name", "Network Interfaces"}, p.FinalColumns())
}

func TestPipeline_SelectionIncludesFirstRowKeys(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) { o.Fields = []string{hostname} })
	process(t, p, core.Record{hostname: "h", "zeta": 1, "alpha": 2})
	assert.Equal(t, []string{hostname, "alpha", "zeta"}, p.Selection().Names())
	assert.Same(t, p.Selection(), p.Selection())
}

func TestPipeline_CustomCallbacks(t *testing.T) {
	var handled []error
	failing := func(ctx context.Context, p *Pipeline, rows []core.Record) ([]core.Record, error) {
		rows[0]["name"] = "mutated"
		return nil, errors.New("boom")
	}
	panicking := func(ctx context.Context, p *Pipeline, rows []core.Record) ([]core.Record, error) {
		panic("bad")
	}
	p := newPipeline(t, nil,
		WithNamedCallback("fail", failing),
		WithNamedCallback("panic", panicking),
		WithCustomCallbacks(Each(ToUpper("name"))),
		WithErrorHandler(core.ErrorHandlerFunc(func(ctx context.Context, r core.Record, err error) error {
			handled = append(handled, err)
			return nil
		})),
	)

	out := process(t, p, core.Record{"name": "host1"})
	assert.Equal(t, "HOST1", out[0]["name"])

	errs := p.CustomErrors()
	require.Len(t, errs, 2)
	assert.Equal(t, "fail", errs[0].Name)
	assert.Equal(t, 0, errs[0].Index)
	assert.Contains(t, errs[1].Error(), "panic: bad")
	assert.Len(t, handled, 2)
}

func TestPipeline_CustomKeep(t *testing.T) {
	keepAWS := core.FilterFunc(func(ctx context.Context, r core.Record) (bool, error) {
		return r["adapter"] == "aws", nil
	})
	p := newPipeline(t, nil, WithCustomCallbacks(Keep(keepAWS)))
	out := process(t, p, core.Record{"adapter": "aws"}, core.Record{"adapter": "ad"})
	require.Len(t, out, 1)
	assert.Equal(t, "aws", out[0]["adapter"])
}

type recordingLabeler struct {
	added, removed []tags.Fragment
	calls          int
}

func (r *recordingLabeler) Add(_ context.Context, assets []tags.Fragment, _ []string) error {
	r.calls++
	r.added = assets
	return nil
}

func (r *recordingLabeler) Remove(_ context.Context, assets []tags.Fragment, _ []string) error {
	r.calls++
	r.removed = assets
	return nil
}

func TestPipeline_Tags(t *testing.T) {
	lab := &recordingLabeler{}
	p := newPipeline(t, func(o *config.Options) {
		o.TagsAdd = []string{"exported"}
		o.TagsRemove = []string{"stale"}
	}, WithLabeler(lab))

	ctx := context.Background()
	process(t, p, core.Record{core.PrimaryIDField: "a"})
	process(t, p, core.Record{core.PrimaryIDField: "a"}, core.Record{core.PrimaryIDField: "b"})
	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Stop(ctx))

	assert.Equal(t, 2, lab.calls)
	assert.Equal(t, []tags.Fragment{{PrimaryID: "a"}, {PrimaryID: "b"}}, lab.added)
	assert.Equal(t, []tags.Fragment{{PrimaryID: "a"}, {PrimaryID: "b"}}, lab.removed)
}

func TestPipeline_TagsRequireLabeler(t *testing.T) {
	opts := config.Defaults(config.VariantBase)
	opts.TagsAdd = []string{"x"}
	_, err := New(opts, nil)
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestPipeline_ReportAdaptersMissing(t *testing.T) {
	calls := 0
	lister := AdapterListerFunc(func(ctx context.Context) ([]AdapterInfo, error) {
		calls++
		return []AdapterInfo{{"aws_adapter"}, {"active_adapter"}, {"unknown_adapter"}, {"aws_adapter"}}, nil
	})
	p := newPipeline(t, func(o *config.Options) {
		o.ReportAdaptersMissing = true
	}, WithAdapters(lister))

	out := process(t, p,
		core.Record{"adapters": []interface{}{"aws_adapter"}},
		core.Record{"adapters": []interface{}{}},
	)
	process(t, p, core.Record{})

	assert.Equal(t, []interface{}{"active_adapter"}, out[0][schema.AdaptersMissing])
	assert.Equal(t, []interface{}{"aws_adapter", "active_adapter"}, out[1][schema.AdaptersMissing])
	assert.Equal(t, 1, calls)
	assert.Equal(t, schema.AdaptersMissing, p.Selection().Names()[0])
}

func TestPipeline_ReportSoftwareWhitelist(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{software}
		o.ReportSoftwareWhitelist = []string{"chrome", "^office"}
	})
	row := core.Record{software: []interface{}{
		map[string]interface{}{"name": "Google Chrome"},
		map[string]interface{}{"name": "Zoom"},
		map[string]interface{}{"name": ""},
		map[string]interface{}{"version": "1"},
		map[string]interface{}{"name": "Zoom"},
	}}
	out := process(t, p, row)

	assert.Equal(t, []interface{}{"chrome"}, out[0][schema.SoftwareMissing])
	assert.Equal(t, []interface{}{"chrome", "^office"}, out[0][schema.SoftwareWhitelist])
	assert.Equal(t, []interface{}{"Google Chrome", "Zoom"}, out[0][schema.SoftwareExtra])
}

func TestPipeline_ReportSoftwareWhitelistRequiresField(t *testing.T) {
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{hostname}
		o.ReportSoftwareWhitelist = []string{"chrome"}
	})
	_, err := p.Process(context.Background(), []core.Record{{hostname: "h"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfig))
}

func TestPipeline_VariantForcesOptions(t *testing.T) {
	p := newPipeline(t, nil, WithVariant(config.VariantCSV))
	opts := p.Options()
	assert.True(t, opts.FieldNull)
	assert.True(t, opts.FieldFlatten)
	assert.True(t, opts.FieldJoin)
}

func TestPipeline_EchoToConsole(t *testing.T) {
	var console bytes.Buffer
	p := newPipeline(t, func(o *config.Options) {
		o.DoEcho = true
		o.PageProgress = 1
		o.Fields = []string{hostname}
	}, WithConsole(&console))

	require.NoError(t, p.Start(context.Background()))
	process(t, p, core.Record{hostname: "h"})

	text := console.String()
	assert.Contains(t, text, "[SUCCESS] Starting BASE processor")
	assert.Contains(t, text, "Flatten complex fields:")
	assert.Contains(t, text, "Final Columns:")
	assert.Contains(t, text, "PROGRESS:")
	assert.Equal(t, 1, strings.Count(text, "Selected Columns:"))
}

func TestProgressLine(t *testing.T) {
	line, ok := progressLine(50, 200, 1, 4, 1.5, 50)
	require.True(t, ok)
	assert.Equal(t, "PROGRESS:  25.00% [ROWS:  50 / 200] [PAGES: 1 / 4] in 1.50 seconds so far", line)

	_, ok = progressLine(51, 200, 1, 4, 1.5, 50)
	assert.False(t, ok)
	_, ok = progressLine(1, 200, 1, 4, 0, 50)
	assert.True(t, ok)
	_, ok = progressLine(200, 200, 4, 4, 0, 50)
	assert.True(t, ok)
}

func TestPipeline_Metrics(t *testing.T) {
	m, err := metric.New(prometheus.NewRegistry())
	require.NoError(t, err)
	p := newPipeline(t, func(o *config.Options) {
		o.Fields = []string{"labels"}
		o.FieldExplode = "labels"
	}, WithMetrics(m))

	out := process(t, p, core.Record{"labels": []interface{}{"a", "b", "c"}})
	assert.Len(t, out, 3)
	assert.Equal(t, 1, p.State().RowsProcessedTotal)
}

func TestPipeline_StageOrder(t *testing.T) {
	p := newPipeline(t, nil)
	assert.Equal(t, []string{
		"custom_cbs", "tags_add", "tags_remove", "report_adapters_missing",
		"report_software_whitelist", "excludes", "null_values", "flatten",
		"explode", "join", "titles",
	}, p.StageNames())
}
