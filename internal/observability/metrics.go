// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry returns a private registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Metrics holds the ReconWeb counters.
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	GuardDecisions *prometheus.CounterVec
	TokenRotations prometheus.Counter
	EngineCalls    *prometheus.CounterVec
}

// NewMetrics creates the ReconWeb counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconweb_http_requests_total",
				Help: "HTTP requests served, by route pattern and status code",
			},
			[]string{"route", "status"},
		),
		GuardDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconweb_guard_decisions_total",
				Help: "Session guard outcomes for protected routes",
			},
			[]string{"decision"},
		),
		TokenRotations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconweb_token_rotations_total",
				Help: "Rotating tokens issued",
			},
		),
		EngineCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconweb_engine_calls_total",
				Help: "Calls to the recon-ng API, by operation and outcome",
			},
			[]string{"operation", "status"},
		),
	}

	reg.MustRegister(m.HTTPRequests, m.GuardDecisions, m.TokenRotations, m.EngineCalls)
	return m
}

// RecordRequest counts one served request.
func (m *Metrics) RecordRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordGuardDecision counts one guard outcome.
func (m *Metrics) RecordGuardDecision(decision string) {
	m.GuardDecisions.WithLabelValues(decision).Inc()
}

// RecordTokenRotation counts one issued token.
func (m *Metrics) RecordTokenRotation() {
	m.TokenRotations.Inc()
}

// RecordEngineCall counts one engine call. Its signature matches engine.Observer.
func (m *Metrics) RecordEngineCall(operation, outcome string) {
	m.EngineCalls.WithLabelValues(operation, outcome).Inc()
}
