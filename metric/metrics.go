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

package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package metric instruments export runs with Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can call it
// unconditionally.

const namespace = "assetetl"

// Metrics holds the collectors for one export process.
type Metrics struct {
	rowsIn          *prometheus.CounterVec
	rowsOut         *prometheus.CounterVec
	customErrors    *prometheus.CounterVec
	schemaWarnings  prometheus.Counter
	tagFlushes      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	sinkWriteErrors *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves the collectors unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rowsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_in_total",
			Help:      "Total rows received by the transform pipeline",
		}, []string{"export"}),

		rowsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_out_total",
			Help:      "Total rows emitted by the transform pipeline",
		}, []string{"export"}),

		customErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "custom_callback_errors_total",
			Help:      "Total failures of caller-supplied row callbacks",
		}, []string{"callback"}),

		schemaWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "synthesized_total",
			Help:      "Total selected fields with no catalog schema",
		}),

		tagFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tags",
			Name:      "assets_flushed_total",
			Help:      "Total assets sent in bulk label calls",
		}, []string{"operation"}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each transform stage per batch",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"stage"}),

		sinkWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Total non-fatal sink write errors",
		}, []string{"sink", "operation"}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.rowsIn, m.rowsOut, m.customErrors, m.schemaWarnings,
		m.tagFlushes, m.stageDuration, m.sinkWriteErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RowsIn counts rows received by the pipeline.
func (m *Metrics) RowsIn(export string, n int) {
	if m == nil {
		return
	}
	m.rowsIn.WithLabelValues(export).Add(float64(n))
}

// RowsOut counts rows emitted by the pipeline.
func (m *Metrics) RowsOut(export string, n int) {
	if m == nil {
		return
	}
	m.rowsOut.WithLabelValues(export).Add(float64(n))
}

// CustomError counts a failed custom callback.
func (m *Metrics) CustomError(callback string) {
	if m == nil {
		return
	}
	m.customErrors.WithLabelValues(callback).Inc()
}

// SchemaWarning counts a synthesized schema.
func (m *Metrics) SchemaWarning() {
	if m == nil {
		return
	}
	m.schemaWarnings.Inc()
}

// TagsFlushed counts assets sent in a bulk label call.
func (m *Metrics) TagsFlushed(operation string, n int) {
	if m == nil {
		return
	}
	m.tagFlushes.WithLabelValues(operation).Add(float64(n))
}

// ObserveStage records the duration of one stage over one batch.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SinkError counts a non-fatal sink error, such as a failed byte-order mark.
func (m *Metrics) SinkError(sink, operation string) {
	if m == nil {
		return
	}
	m.sinkWriteErrors.WithLabelValues(sink, operation).Inc()
}
