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

// Command assetexport reads asset rows from a JSON file, an inventory API, or
// MongoDB, runs them through the export pipeline, and writes the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/assetetl"
	"github.com/aaronlmathis/assetetl/config"
	"github.com/aaronlmathis/assetetl/core"
	"github.com/aaronlmathis/assetetl/filter"
	"github.com/aaronlmathis/assetetl/metric"
	"github.com/aaronlmathis/assetetl/output"
	"github.com/aaronlmathis/assetetl/readers"
	"github.com/aaronlmathis/assetetl/schema"
	"github.com/aaronlmathis/assetetl/tags"
	"github.com/aaronlmathis/assetetl/transform"
)

type flags struct {
	configPath   string
	catalogPath  string
	adaptersPath string
	input        string
	url          string
	token        string
	mongoURI     string
	mongoDB      string
	mongoColl    string
	export       string
	file         string
	path         string
	overwrite    bool
	labelsURL    string
	metrics      bool
	keep         multiFlag
	verbose      bool
}

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("assetexport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML run configuration")
	fs.StringVar(&f.catalogPath, "catalog", "", "YAML or JSON field catalog")
	fs.StringVar(&f.adaptersPath, "adapters", "", "YAML or JSON list of adapter names, for report_adapters_missing")
	fs.StringVar(&f.input, "input", "", "JSON or JSON lines input file, - for stdin")
	fs.StringVar(&f.url, "url", "", "inventory API URL to page through")
	fs.StringVar(&f.token, "token", "", "bearer token for -url and -labels-url")
	fs.StringVar(&f.mongoURI, "mongo-uri", "", "MongoDB connection URI")
	fs.StringVar(&f.mongoDB, "mongo-db", "", "MongoDB database")
	fs.StringVar(&f.mongoColl, "mongo-collection", "assets", "MongoDB collection")
	fs.StringVar(&f.export, "export", string(config.VariantCSV), "export format: "+strings.Join(config.Variants(), ", "))
	fs.StringVar(&f.file, "file", "", "export file name, overrides export_file")
	fs.StringVar(&f.path, "path", "", "export directory, overrides export_path")
	fs.BoolVar(&f.overwrite, "overwrite", false, "overwrite an existing export file")
	fs.StringVar(&f.labelsURL, "labels-url", "", "labels endpoint for tags_add and tags_remove")
	fs.BoolVar(&f.metrics, "metrics", false, "print Prometheus metrics to stderr on exit")
	fs.Var(&f.keep, "keep", "keep rows where field=regex matches, repeatable")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	variant, err := config.ParseVariant(f.export)
	if err != nil {
		return err
	}
	opts, err := config.LoadFile(f.configPath, variant)
	if err != nil {
		return err
	}
	if f.file != "" {
		opts.Export.File = f.file
	}
	if f.path != "" {
		opts.Export.Path = f.path
	}
	if f.overwrite {
		opts.Export.Overwrite = true
	}

	catalog := schema.Catalog{}
	if f.catalogPath != "" {
		if catalog, err = schema.LoadCatalogFile(f.catalogPath); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	metrics, err := metric.New(reg)
	if err != nil {
		return err
	}
	if f.metrics {
		defer dumpMetrics(reg, stderr, logger)
	}

	pipeOpts := []transform.Option{
		transform.WithVariant(variant),
		transform.WithLogger(logger),
		transform.WithConsole(stderr),
		transform.WithMetrics(metrics),
	}
	if f.adaptersPath != "" {
		lister, err := loadAdapters(f.adaptersPath)
		if err != nil {
			return err
		}
		pipeOpts = append(pipeOpts, transform.WithAdapters(lister))
	}
	if f.labelsURL != "" {
		var labelOpts []tags.HTTPLabelerOption
		if f.token != "" {
			labelOpts = append(labelOpts, tags.WithBearerToken(f.token))
		}
		pipeOpts = append(pipeOpts, transform.WithLabeler(tags.NewHTTPLabeler(f.labelsURL, labelOpts...)))
	}
	if len(f.keep) > 0 {
		var keep []core.Filter
		for _, expr := range f.keep {
			m, err := filter.ParseMatch(expr)
			if err != nil {
				return err
			}
			keep = append(keep, m)
		}
		pipeOpts = append(pipeOpts, transform.WithNamedCallback("keep", transform.Keep(keep...)))
	}

	pipeline, err := transform.New(opts, catalog, pipeOpts...)
	if err != nil {
		return err
	}

	source, err := openSource(f, logger)
	if err != nil {
		return err
	}

	var dest *output.Destination
	if output.NeedsDestination(variant) {
		dest, err = output.Open(ctx, opts.Export, output.WithStdout(stdout), output.WithLogger(logger))
		if err != nil {
			source.Close()
			return err
		}
	}
	var sinkDest io.WriteCloser
	if dest != nil {
		sinkDest = dest
	}
	sink, err := output.NewSink(variant, pipeline.Options(), sinkDest,
		output.WithSinkLogger(logger), output.WithSinkMetrics(metrics))
	if err != nil {
		source.Close()
		if dest != nil {
			dest.Close()
		}
		return err
	}

	export, err := assetetl.NewExport().From(source).Through(pipeline).To(sink).WithLogger(logger).Build()
	if err != nil {
		source.Close()
		sink.Close()
		return err
	}
	return export.Execute(ctx)
}

func openSource(f *flags, logger *slog.Logger) (core.DataSource, error) {
	switch {
	case f.input != "":
		return readers.OpenJSONFile(f.input)
	case f.url != "":
		opts := []readers.ReaderOptionHTTP{readers.WithHTTPLogger(logger)}
		if f.token != "" {
			opts = append(opts, readers.WithHTTPBearerToken(f.token))
		}
		return readers.NewHTTPReader(f.url, opts...)
	case f.mongoURI != "":
		return readers.NewMongoReader(
			readers.WithMongoURI(f.mongoURI),
			readers.WithMongoDB(f.mongoDB),
			readers.WithMongoCollection(f.mongoColl),
			readers.WithMongoSort(bson.D{{Key: core.PrimaryIDField, Value: 1}}),
			readers.WithMongoCountTotal(true),
		)
	}
	return nil, fmt.Errorf("one of -input, -url or -mongo-uri is required")
}

// loadAdapters reads adapter names for the missing-adapters report.
func loadAdapters(path string) (transform.AdapterLister, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adapters: %w", err)
	}
	var names []string
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse adapters %s: %w", path, err)
	}
	adapters := make([]transform.AdapterInfo, len(names))
	for i, name := range names {
		adapters[i] = transform.AdapterInfo{NameRaw: name}
	}
	return transform.AdapterListerFunc(func(ctx context.Context) ([]transform.AdapterInfo, error) {
		return adapters, nil
	}), nil
}

func dumpMetrics(reg *prometheus.Registry, w io.Writer, logger *slog.Logger) {
	families, err := reg.Gather()
	if err != nil {
		logger.Error("gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			logger.Error("write metrics", "error", err)
			return
		}
	}
}
