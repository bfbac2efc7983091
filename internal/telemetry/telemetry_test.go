// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/pkg/types"
)

func TestRecordLedger(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	l := action.Ledger{
		"a.go": {
			{Action: action.Action{Kind: types.Invocation}, FilePath: "a.go", TimesRun: 3},
			{Action: action.Action{Kind: types.Import}, FilePath: "a.go", TimesRun: 1, InvalidExecutions: 1},
		},
		"b.go": {
			{Action: action.Action{Kind: types.Invocation}, FilePath: "b.go", InvalidExecutions: 2},
		},
	}
	m.RecordLedger(l)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.applied.WithLabelValues("Invocation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.applied.WithLabelValues("Import")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.invalid.WithLabelValues("Invocation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invalid.WithLabelValues("Import")))
}

func TestRecordProject(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordProject(OutcomeMigrated, time.Second)
	m.RecordProject(OutcomeMigrated, 2*time.Second)
	m.RecordProject(OutcomeExcluded, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.projects.WithLabelValues(OutcomeMigrated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.projects.WithLabelValues(OutcomeExcluded)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLedger(action.Ledger{})
		m.RecordProject(OutcomeFailed, time.Second)
	})
}
