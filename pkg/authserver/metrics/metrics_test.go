// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncTokenIssued("access", "authorization_code")
	m.IncTokenIssued("access", "authorization_code")
	m.IncGrantError("refresh_token", "invalid_grant")
	m.IncConsentDecision("recalled")
	m.IncRequestObject("signed", "ok")
	m.ObserveGrantLatency("authorization_code", 10*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.TokensIssued.WithLabelValues("access", "authorization_code")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GrantErrors.WithLabelValues("refresh_token", "invalid_grant")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConsentDecisions.WithLabelValues("recalled")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RequestObjects.WithLabelValues("signed", "ok")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTokenIssued("access", "x")
		m.IncGrantError("x", "y")
		m.IncConsentDecision("x")
		m.IncRequestObject("x", "y")
		m.ObserveGrantLatency("x", time.Second)
	})
}
