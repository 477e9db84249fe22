// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package granter implements the token endpoint grants. A Chain maps each
// grant type to its Handler; Handlers holds the grant implementations and
// the scope and assertion validators they use.
package granter

import (
	"context"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/ory/fosite"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

const tracerName = "github.com/stacklok/toolhive-idp/pkg/authserver/granter"

// Token endpoint form parameters.
const (
	ParamGrantType    = "grant_type"
	ParamScope        = "scope"
	ParamCode         = "code"
	ParamRedirectURI  = "redirect_uri"
	ParamCodeVerifier = "code_verifier"
	ParamRefreshToken = "refresh_token"
	ParamToken        = "token"
	ParamAssertion    = "assertion"
)

// TokenRequest is a parsed token endpoint request.
type TokenRequest struct {
	GrantType    fosite.GrantType
	Scope        []string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	// Token is the access token being chained.
	Token     string
	Assertion string
}

// NewTokenRequest reads a TokenRequest from a token endpoint form.
func NewTokenRequest(form url.Values) *TokenRequest {
	return &TokenRequest{
		GrantType:    fosite.GrantType(form.Get(ParamGrantType)),
		Scope:        server.SplitArguments(form.Get(ParamScope)),
		Code:         form.Get(ParamCode),
		RedirectURI:  form.Get(ParamRedirectURI),
		CodeVerifier: form.Get(ParamCodeVerifier),
		RefreshToken: form.Get(ParamRefreshToken),
		Token:        form.Get(ParamToken),
		Assertion:    form.Get(ParamAssertion),
	}
}

// Handler serves one grant type for an authenticated client.
type Handler func(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error)

// Chain dispatches token requests to the handler of their grant type.
type Chain struct {
	handlers map[fosite.GrantType]Handler

	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainMetrics sets the metrics sink.
func WithChainMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// WithTracerProvider sets the tracer provider for grant spans.
func WithTracerProvider(tp trace.TracerProvider) ChainOption {
	return func(c *Chain) { c.tracer = tp.Tracer(tracerName) }
}

// WithChainLogger sets the logger.
func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates an empty chain.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		handlers: map[fosite.GrantType]Handler{},
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Get(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register sets the handler for grantType, replacing any previous one.
func (c *Chain) Register(grantType fosite.GrantType, h Handler) {
	c.handlers[grantType] = h
}

// GrantTypes returns the registered grant types in sorted order.
func (c *Chain) GrantTypes() []string {
	out := make([]string, 0, len(c.handlers))
	for _, gt := range slices.Sorted(maps.Keys(c.handlers)) {
		out = append(out, string(gt))
	}
	return out
}

// Grant dispatches req to the handler for its grant type.
func (c *Chain) Grant(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (resp *server.TokenResponse, err error) {
	grantType := string(req.GrantType)
	ctx, span := c.tracer.Start(ctx, "granter.Grant",
		trace.WithAttributes(
			attribute.String("oauth.grant_type", grantType),
			attribute.String("oauth.client_id", client.ClientID),
		),
	)
	start := c.now()
	defer func() {
		c.metrics.ObserveGrantLatency(grantType, c.now().Sub(start))
		if err != nil {
			code := server.ErrorCode(err)
			c.metrics.IncGrantError(grantType, code)
			span.RecordError(err)
			span.SetStatus(codes.Error, code)
			c.logger.Debug("grant failed", "grant_type", grantType, "client_id", client.ClientID, "error", err)
		}
		span.End()
	}()

	h, ok := c.handlers[req.GrantType]
	if !ok {
		return nil, fosite.ErrUnsupportedGrantType.WithHintf("The grant type %q is not supported.", grantType)
	}
	if !client.HasGrantType(grantType) {
		return nil, fosite.ErrUnauthorizedClient.WithHintf("The client is not allowed to use the grant type %q.", grantType)
	}
	return h(ctx, req, client)
}
