// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/handlers"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// newRouter mounts the OAuth, well-known, metrics and health endpoints.
func newRouter(h *handlers.Handler, stor storage.Storage, reg prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)

	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/health", healthHandler(stor))

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func healthHandler(stor storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status, resp := http.StatusOK, healthResponse{Status: "ok"}
		if err := stor.Health(ctx); err != nil {
			logger.Warnw("storage health check failed", "error", err)
			status, resp = http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: "storage unreachable"}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Errorw("failed to encode health response", "error", err)
		}
	}
}
