// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package telemetry exports the execution ledger as Prometheus metrics
// and provides the tracer the migration phases open spans on.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/petar-djukic/go-porter/internal/action"
)

// Project outcomes.
const (
	OutcomeMigrated  = "migrated"  // At least one file or go.mod changed
	OutcomeUnchanged = "unchanged" // Nothing to do
	OutcomeExcluded  = "excluded"  // Project type not supported
	OutcomeFailed    = "failed"
)

// Metrics holds the migration collectors.
type Metrics struct {
	applied  *prometheus.CounterVec
	invalid  *prometheus.CounterVec
	projects *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		applied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_porter_actions_applied_total",
			Help: "Actions applied, by node kind",
		}, []string{"kind"}),
		invalid: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_porter_actions_invalid_total",
			Help: "Stale or unresolved action executions, by node kind",
		}, []string{"kind"}),
		projects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "go_porter_projects_total",
			Help: "Projects processed, by outcome",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "go_porter_project_duration_seconds",
			Help:    "Wall time of one project migration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
	}
}

// Default is registered with the default Prometheus registry.
var Default = NewMetrics(prometheus.DefaultRegisterer)

// RecordLedger adds every execution of l to the action counters.
func (m *Metrics) RecordLedger(l action.Ledger) {
	if m == nil {
		return
	}
	for _, execs := range l {
		for _, e := range execs {
			kind := e.Action.Kind.String()
			if e.TimesRun > 0 {
				m.applied.WithLabelValues(kind).Add(float64(e.TimesRun))
			}
			if e.InvalidExecutions > 0 {
				m.invalid.WithLabelValues(kind).Add(float64(e.InvalidExecutions))
			}
		}
	}
}

// RecordProject counts one finished project.
func (m *Metrics) RecordProject(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.projects.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Tracer returns the named tracer of the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
