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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RowsIn("csv", 3)
	m.RowsOut("csv", 5)
	m.CustomError("upper")
	m.CustomError("upper")
	m.SchemaWarning()
	m.TagsFlushed("add", 4)
	m.ObserveStage("flatten", time.Millisecond)
	m.SinkError("csv", "bom")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsIn.WithLabelValues("csv")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsOut.WithLabelValues("csv")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.customErrors.WithLabelValues("upper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schemaWarnings))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tagFlushes.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkWriteErrors.WithLabelValues("csv", "bom")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestMetrics_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RowsIn("csv", 1)
		m.RowsOut("csv", 1)
		m.CustomError("x")
		m.SchemaWarning()
		m.TagsFlushed("add", 1)
		m.ObserveStage("x", time.Second)
		m.SinkError("csv", "bom")
	})
}
