// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for the authorization server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of the authorization server. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// TokensIssued counts tokens by kind ("access", "refresh", "id") and grant type.
	TokensIssued *prometheus.CounterVec

	// GrantErrors counts failed token requests by grant type and OAuth error code.
	GrantErrors *prometheus.CounterVec

	// ConsentDecisions counts consent outcomes by decision kind.
	ConsentDecisions *prometheus.CounterVec

	// RequestObjects counts request objects by protection ("plain", "signed",
	// "encrypted", "malformed") and result.
	RequestObjects *prometheus.CounterVec

	// GrantLatency observes token endpoint handling time per grant type.
	GrantLatency *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		TokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thv_idp_tokens_issued_total",
			Help: "Total tokens issued by kind and grant type",
		}, []string{"kind", "grant_type"}),

		GrantErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thv_idp_grant_errors_total",
			Help: "Total failed token requests by grant type and error code",
		}, []string{"grant_type", "error"}),

		ConsentDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thv_idp_consent_decisions_total",
			Help: "Total consent decisions by kind",
		}, []string{"decision"}),

		RequestObjects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thv_idp_request_objects_total",
			Help: "Total request objects processed by protection and result",
		}, []string{"protection", "result"}),

		GrantLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thv_idp_grant_duration_seconds",
			Help:    "Duration of token grant handling",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"grant_type"}),
	}
}

// IncTokenIssued records an issued token.
func (m *Metrics) IncTokenIssued(kind, grantType string) {
	if m != nil {
		m.TokensIssued.WithLabelValues(kind, grantType).Inc()
	}
}

// IncGrantError records a failed grant.
func (m *Metrics) IncGrantError(grantType, code string) {
	if m != nil {
		m.GrantErrors.WithLabelValues(grantType, code).Inc()
	}
}

// IncConsentDecision records a consent decision.
func (m *Metrics) IncConsentDecision(decision string) {
	if m != nil {
		m.ConsentDecisions.WithLabelValues(decision).Inc()
	}
}

// IncRequestObject records a processed request object.
func (m *Metrics) IncRequestObject(protection, result string) {
	if m != nil {
		m.RequestObjects.WithLabelValues(protection, result).Inc()
	}
}

// ObserveGrantLatency records how long a grant took.
func (m *Metrics) ObserveGrantLatency(grantType string, d time.Duration) {
	if m != nil {
		m.GrantLatency.WithLabelValues(grantType).Observe(d.Seconds())
	}
}
