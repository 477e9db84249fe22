// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/handlers"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// Server is the OpenID Connect authorization server.
type Server interface {
	// Handler returns an http.Handler that serves all endpoints:
	//   - /.well-known/openid-configuration (OIDC Discovery)
	//   - /.well-known/oauth-authorization-server (RFC 8414 OAuth AS Metadata)
	//   - /.well-known/jwks.json (JSON Web Key Set)
	//   - /oauth/authorize (authorization endpoint and consent form)
	//   - /oauth/token (token endpoint)
	//   - /oauth/register (Dynamic Client Registration, RFC 7591)
	//   - /metrics (Prometheus)
	//   - /health
	Handler() http.Handler

	// Storage returns the backing store.
	Storage() storage.Storage

	// Close releases resources held by the server.
	Close() error
}

// Option customizes New. Every option has a production default.
type Option func(*options)

type options struct {
	storage        storage.Storage
	keyProvider    keys.KeyProvider
	authenticator  handlers.Authenticator
	registry       *prometheus.Registry
	tracerProvider trace.TracerProvider
	httpClient     *http.Client
	now            func() time.Time
}

// WithStorage uses stor instead of the backend named in the config. The
// server takes ownership and closes it.
func WithStorage(stor storage.Storage) Option {
	return func(o *options) { o.storage = stor }
}

// WithKeyProvider uses p instead of the keys named in the config.
func WithKeyProvider(p keys.KeyProvider) Option {
	return func(o *options) { o.keyProvider = p }
}

// WithAuthenticator replaces the header authenticator.
func WithAuthenticator(a handlers.Authenticator) Option {
	return func(o *options) { o.authenticator = a }
}

// WithRegistry registers metrics with reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithTracerProvider sets the tracer provider for request processing and
// grant spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithHTTPClient sets the client used to fetch remote JWKS.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates the authorization server described by cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (Server, error) {
	slog.Debug("creating new OAuth authorization server", "issuer", cfg.Issuer)
	return newServer(ctx, cfg, opts...)
}
