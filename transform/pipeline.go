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
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/metric"
	"github.com/aaronlmathis/assetetl/schema"
	"github.com/aaronlmathis/assetetl/tags"
	"github.com/google/uuid"
)

// Package transform implements the asset row pipeline: the ordered chain of
// field-level stages every row passes through on its way to a sink.
//
// Stage order is fixed: custom callbacks, tag-add tracking, tag-remove
// tracking, missing-adapters report, software whitelist report, exclusion,
// null-filling, flattening, explosion, joining, and title renaming. A stage
// whose option is off leaves rows untouched.

// RowsFunc is a caller-supplied stage run first on every batch. It receives a
// private copy of the batch and returns the rows to continue with.
type RowsFunc func(ctx context.Context, p *Pipeline, rows []core.Record) ([]core.Record, error)

// AdapterInfo describes one adapter known to the inventory service.
type AdapterInfo struct {
	// NameRaw is the adapter's full name as it appears in a row's adapters list.
	NameRaw string
}

// AdapterLister returns the adapters known to the inventory service.
type AdapterLister interface {
	Adapters(ctx context.Context) ([]AdapterInfo, error)
}

// AdapterListerFunc is a function adapter for the AdapterLister interface.
type AdapterListerFunc func(ctx context.Context) ([]AdapterInfo, error)

// Adapters implements the AdapterLister interface for AdapterListerFunc.
func (f AdapterListerFunc) Adapters(ctx context.Context) ([]AdapterInfo, error) {
	return f(ctx)
}

type namedFunc struct {
	name string
	fn   RowsFunc
}

type options struct {
	logger   *slog.Logger
	console  io.Writer
	adapters AdapterLister
	labeler  tags.Labeler
	metrics  *metric.Metrics
	state    *core.State
	custom   []namedFunc
	handler  core.ErrorHandler
	variant  config.Variant
	runID    string
}

// Option configures a Pipeline.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConsole sets where echoed messages go when do_echo is on. Defaults to stderr.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithAdapters sets the adapter lister used by the missing-adapters report.
func WithAdapters(l AdapterLister) Option {
	return func(o *options) { o.adapters = l }
}

// WithLabeler sets the labeler used to apply tags when the run stops.
func WithLabeler(l tags.Labeler) Option {
	return func(o *options) { o.labeler = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithState shares a counters struct with the data source driving the run.
func WithState(s *core.State) Option {
	return func(o *options) { o.state = s }
}

// WithCustomCallbacks appends custom callbacks, named after their functions.
func WithCustomCallbacks(fns ...RowsFunc) Option {
	return func(o *options) {
		for _, fn := range fns {
			o.custom = append(o.custom, namedFunc{name: funcName(fn), fn: fn})
		}
	}
}

// WithNamedCallback appends a custom callback with an explicit name.
func WithNamedCallback(name string, fn RowsFunc) Option {
	return func(o *options) { o.custom = append(o.custom, namedFunc{name: name, fn: fn}) }
}

// WithErrorHandler is notified about every custom callback failure.
func WithErrorHandler(h core.ErrorHandler) Option {
	return func(o *options) { o.handler = h }
}

// WithVariant sets the export variant whose forced options apply.
func WithVariant(v config.Variant) Option {
	return func(o *options) { o.variant = v }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// Pipeline transforms batches of asset rows for a single export run.
// It is not safe for concurrent use.
type Pipeline struct {
	opts      config.Options
	variant   config.Variant
	catalog   schema.Catalog
	resolver  *schema.Resolver
	whitelist []*regexp.Regexp
	custom    []namedFunc
	tracker   *tags.Tracker
	labeler   tags.Labeler
	adapters  AdapterLister
	handler   core.ErrorHandler

	logger  *slog.Logger
	console io.Writer
	metrics *metric.Metrics
	state   *core.State
	runID   string

	selection     *schema.Selection
	explodeSchema *schema.Field
	explodeDone   bool
	finalSchemas  []*schema.Field
	finalColumns  []string
	adapterNames  []string
	adaptersDone  bool

	customErrs    []*CustomCallbackError
	columnsEchoed bool
	stopped       bool
	started       time.Time
}

// New builds a pipeline for opts over a catalog snapshot. Variant overrides
// are applied to a private copy of opts, which is then validated.
func New(opts config.Options, catalog schema.Catalog, optFns ...Option) (*Pipeline, error) {
	o := options{variant: config.VariantBase}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.console == nil {
		o.console = os.Stderr
	}
	if o.state == nil {
		o.state = &core.State{}
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if catalog == nil {
		catalog = schema.Catalog{}
	}

	effective := opts.Clone()
	effective.Force(o.variant)
	if err := effective.Validate(); err != nil {
		return nil, err
	}
	whitelist, err := effective.WhitelistPatterns()
	if err != nil {
		return nil, err
	}
	if effective.ReportAdaptersMissing && o.adapters == nil {
		return nil, core.NewConfigError("report_adapters_missing", "no adapter lister configured")
	}
	if (len(effective.TagsAdd) > 0 || len(effective.TagsRemove) > 0) && o.labeler == nil {
		return nil, core.NewConfigError("tags_add", "no labeler configured for tagging")
	}

	p := &Pipeline{
		opts:      effective,
		variant:   o.variant,
		catalog:   catalog,
		resolver:  schema.NewResolver(catalog, effective.FieldExcludes),
		whitelist: whitelist,
		custom:    o.custom,
		tracker:   tags.NewTracker(),
		labeler:   o.labeler,
		adapters:  o.adapters,
		handler:   o.handler,
		console:   o.console,
		metrics:   o.metrics,
		state:     o.state,
		runID:     o.runID,
		started:   time.Now(),
	}
	p.logger = o.logger.With("component", "transform", "export", string(o.variant), "run_id", o.runID)
	return p, nil
}

// Options returns the effective options, after variant overrides.
func (p *Pipeline) Options() config.Options {
	return p.opts
}

// Variant returns the export variant.
func (p *Pipeline) Variant() config.Variant {
	return p.variant
}

// RunID returns the run identifier attached to every log line.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Logger returns the pipeline's logger for use by custom callbacks.
func (p *Pipeline) Logger() *slog.Logger {
	return p.logger
}

// State returns the run counters.
func (p *Pipeline) State() *core.State {
	return p.state
}

// Tracker returns the tag tracker.
func (p *Pipeline) Tracker() *tags.Tracker {
	return p.tracker
}

// CustomErrors returns every custom callback failure recorded so far.
func (p *Pipeline) CustomErrors() []*CustomCallbackError {
	return append([]*CustomCallbackError(nil), p.customErrs...)
}

// Start echoes the effective configuration.
func (p *Pipeline) Start(ctx context.Context) error {
	join := "\n   - "
	p.echo(ctx, levelInfo, fmt.Sprintf("Starting %s processor", strings.ToUpper(string(p.variant))))
	p.echo(ctx, levelInfo, "Configuration: "+join+strings.Join(p.opts.Describe(p.variant), join))
	return nil
}

// Stop flushes tracked tags, once, and echoes completion.
func (p *Pipeline) Stop(ctx context.Context) error {
	if p.stopped {
		return nil
	}
	p.stopped = true

	if err := p.tracker.Flush(ctx, p.labeler, p.opts.TagsAdd, p.opts.TagsRemove); err != nil {
		p.echo(ctx, levelError, err.Error())
		return err
	}
	if len(p.opts.TagsAdd) > 0 {
		p.metrics.TagsFlushed("add", len(p.tracker.Added()))
	}
	if len(p.opts.TagsRemove) > 0 {
		p.metrics.TagsFlushed("remove", len(p.tracker.Removed()))
	}
	p.echo(ctx, levelInfo, fmt.Sprintf("Stopping %s processor", strings.ToUpper(string(p.variant))))
	return nil
}

type stage struct {
	name string
	fn   func(ctx context.Context, rows []core.Record) ([]core.Record, error)
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"custom_cbs", p.doCustomCallbacks},
		{"tags_add", p.doTagsAdd},
		{"tags_remove", p.doTagsRemove},
		{"report_adapters_missing", p.doReportAdaptersMissing},
		{"report_software_whitelist", p.doReportSoftwareWhitelist},
		{"excludes", p.doExcludes},
		{"null_values", p.doNullValues},
		{"flatten", p.doFlatten},
		{"explode", p.doExplode},
		{"join", p.doJoin},
		{"titles", p.doTitles},
	}
}

// StageNames returns the stage names in execution order.
func (p *Pipeline) StageNames() []string {
	stages := p.stages()
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

// Process runs one batch through every stage. The first batch resolves the
// field selection, so configuration errors surface before any row is emitted.
func (p *Pipeline) Process(ctx context.Context, rows []core.Record) ([]core.Record, error) {
	if err := p.preRows(ctx, rows); err != nil {
		return nil, err
	}
	p.metrics.RowsIn(string(p.variant), len(rows))

	var err error
	for _, s := range p.stages() {
		start := time.Now()
		rows, err = s.fn(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		p.metrics.ObserveStage(s.name, time.Since(start))
	}

	p.metrics.RowsOut(string(p.variant), len(rows))
	return rows, nil
}

func (p *Pipeline) preRows(ctx context.Context, rows []core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.selection == nil {
		p.resolveSelection(rows)
	}
	if err := p.checkSelection(); err != nil {
		return err
	}
	p.state.RowsProcessedTotal += len(rows)
	p.echoColumns(ctx)
	p.echoPageProgress(ctx)
	return nil
}

// Selection returns the resolved field selection, resolving it from the
// configured fields when no batch has been processed yet.
func (p *Pipeline) Selection() *schema.Selection {
	if p.selection == nil {
		p.resolveSelection(nil)
	}
	return p.selection
}

func (p *Pipeline) resolveSelection(rows []core.Record) {
	names := append([]string(nil), p.opts.Fields...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			names = append(names, k)
		}
	}

	custom := schema.ReportFields(p.opts.ReportAdaptersMissing, len(p.opts.ReportSoftwareWhitelist) > 0)
	sel, warnings := p.resolver.Resolve(names, custom)
	for _, w := range warnings {
		p.logger.Warn(w)
		p.metrics.SchemaWarning()
	}
	p.selection = sel
}

func (p *Pipeline) checkSelection() error {
	if _, err := p.ExplodeSchema(); err != nil {
		return err
	}
	if len(p.whitelist) > 0 && !p.selection.Contains(schema.InstalledSoftware) {
		return core.NewConfigError("report_software_whitelist",
			"field %q must be selected to report on software", schema.InstalledSoftware)
	}
	return nil
}

// ExplodeSchema returns the schema of the field to explode, or nil when
// explosion is off. An explode target matching no selected field is a
// configuration error.
func (p *Pipeline) ExplodeSchema() (*schema.Field, error) {
	if p.explodeDone {
		return p.explodeSchema, nil
	}
	target := p.opts.FieldExplode
	if target == "" {
		p.explodeDone = true
		return nil, nil
	}
	sel := p.Selection()
	f, ok := sel.Find(target)
	if !ok {
		valid := sel.Names()
		sort.Strings(valid)
		return nil, core.NewConfigError("field_explode", "explode field %q not found, valid fields: %s",
			target, strings.Join(valid, ", "))
	}
	p.explodeSchema = f
	p.explodeDone = true
	return f, nil
}

// FinalSchemas returns the schemas of the output columns in order. Complex
// fields that are flattened or exploded are replaced by their sub-fields.
func (p *Pipeline) FinalSchemas() []*schema.Field {
	if p.finalSchemas != nil {
		return p.finalSchemas
	}
	sel := p.Selection()
	explode, _ := p.ExplodeSchema()

	order := make([]string, 0, len(sel.Fields()))
	byName := make(map[string]*schema.Field)
	set := func(f *schema.Field, replace bool) {
		if _, ok := byName[f.NameQual]; !ok {
			order = append(order, f.NameQual)
		} else if !replace {
			return
		}
		byName[f.NameQual] = f
	}

	for _, f := range sel.Fields() {
		if sel.IsExcluded(f) {
			continue
		}
		if f.IsComplex() && (f == explode || p.opts.FieldFlatten) {
			for _, sub := range sel.SubFields(f) {
				set(sub, true)
			}
			continue
		}
		set(f, false)
	}

	final := make([]*schema.Field, len(order))
	for i, name := range order {
		final[i] = byName[name]
	}
	p.finalSchemas = final
	return final
}

// FinalColumns returns the output column keys: titles when title renaming is
// on, qualified names otherwise.
func (p *Pipeline) FinalColumns() []string {
	if p.finalColumns != nil {
		return p.finalColumns
	}
	schemas := p.FinalSchemas()
	cols := make([]string, len(schemas))
	for i, f := range schemas {
		cols[i] = p.columnKey(f)
	}
	p.finalColumns = cols
	return cols
}

// Layout describes the final columns for sinks.
func (p *Pipeline) Layout() []core.Column {
	schemas := p.FinalSchemas()
	layout := make([]core.Column, len(schemas))
	for i, f := range schemas {
		layout[i] = core.Column{
			Key:   p.columnKey(f),
			Name:  f.NameQual,
			Title: f.Title(),
			Type:  f.TypeNorm,
		}
	}
	return layout
}

func (p *Pipeline) columnKey(f *schema.Field) string {
	if p.opts.FieldTitles {
		return f.Title()
	}
	return f.NameQual
}
