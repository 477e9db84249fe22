// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-idp/pkg/authserver/consent"
	"github.com/stacklok/toolhive-idp/pkg/authserver/granter"
	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/handlers"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// server is the internal implementation of the Server interface.
type server struct {
	handler http.Handler
	storage storage.Storage

	// stopKeySets ends the background refresh of remote JWKS.
	stopKeySets context.CancelFunc
}

// newServer wires the pipeline: storage and keys, then the request
// processor, consent engine, issuance service and granter chain, and
// finally the HTTP handlers.
func newServer(ctx context.Context, cfg Config, opts ...Option) (_ *server, retErr error) {
	logger.Debug("initializing OAuth authorization server")

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.now == nil {
		o.now = time.Now
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider := o.keyProvider
	if provider == nil {
		p, err := keys.NewProviderFromConfig(cfg.Keys)
		if err != nil {
			return nil, fmt.Errorf("failed to create key provider: %w", err)
		}
		provider = p
	}
	signingKey, err := provider.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get signing key: %w", err)
	}

	stor := o.storage
	if stor == nil {
		stor, err = NewStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}
	defer func() {
		if retErr != nil {
			_ = stor.Close()
		}
	}()

	// The JWKS cache outlives the construction context.
	keySetCtx, stopKeySets := context.WithCancel(context.WithoutCancel(ctx))
	keySets, err := crypto.NewKeySetResolver(keySetCtx, o.httpClient)
	if err != nil {
		stopKeySets()
		return nil, err
	}
	defer func() {
		if retErr != nil {
			stopKeySets()
		}
	}()

	m := metrics.New(o.registry)
	catalog := scope.NewCatalog(cfg.Scopes...)
	symmetric := crypto.NewSymmetricKeyCache(crypto.DefaultSymmetricCacheTTL)
	signer := crypto.NewServerSigner(provider)

	svc := issuance.NewService(cfg.Issuer, stor, stor, signer,
		issuance.WithSymmetricKeyCache(symmetric),
		issuance.WithKeySetResolver(keySets),
		issuance.WithValidity(cfg.Tokens.AccessTokenLifespan, cfg.Tokens.RefreshTokenLifespan, cfg.Tokens.IDTokenLifespan),
		issuance.WithMetrics(m),
		issuance.WithLogger(logger.Component("issuance")),
		issuance.WithClock(o.now),
	)

	processor := request.NewProcessor(stor, stor,
		request.WithSymmetricKeyCache(symmetric),
		request.WithKeySetResolver(keySets),
		request.WithDecrypter(crypto.NewDecrypter(provider)),
		request.WithNonceLifetime(cfg.Tokens.NonceLifespan),
		request.WithAllowedAudiences(cfg.AllowedAudiences),
		request.WithMetrics(m),
		request.WithTracerProvider(o.tracerProvider),
		request.WithLogger(logger.Component("request")),
		request.WithClock(o.now),
	)

	engine := consent.NewEngine(stor, stor, catalog,
		consent.WithMetrics(m),
		consent.WithLogger(logger.Component("consent")),
		consent.WithClock(o.now),
	)

	validator := granter.StructuredScopeValidator{Catalog: catalog}
	chain := granter.NewChain(
		granter.WithChainMetrics(m),
		granter.WithTracerProvider(o.tracerProvider),
		granter.WithChainLogger(logger.Component("granter")),
	)
	granter.NewHandlers(stor, svc,
		granter.WithScopeValidator(validator),
		granter.WithAssertionValidator(assertionValidator(cfg, signer, keySets, o.now)),
		granter.WithClock(o.now),
	).Register(chain)

	if err := seed(ctx, stor, cfg); err != nil {
		return nil, err
	}

	authenticator := o.authenticator
	if authenticator == nil {
		authenticator = handlers.HeaderAuthenticator{
			UserHeader:     cfg.Authenticator.UserHeader,
			AuthTimeHeader: cfg.Authenticator.AuthTimeHeader,
		}
	}

	h := handlers.NewHandler(handlers.Params{
		Issuer:                    cfg.Issuer,
		Storage:                   stor,
		Processor:                 processor,
		Consent:                   engine,
		Chain:                     chain,
		Issuance:                  svc,
		ScopeValidator:            validator,
		Catalog:                   catalog,
		Keys:                      provider,
		Authenticator:             authenticator,
		AuthorizationCodeLifetime: cfg.Tokens.AuthCodeLifespan,
		TokenRateLimit:            rate.Limit(cfg.RateLimit.RequestsPerSecond),
		TokenRateBurst:            cfg.RateLimit.Burst,
		Now:                       o.now,
	})

	logger.Infow("OAuth authorization server initialized",
		"issuer", cfg.Issuer,
		"storage", cfg.Storage.Type,
		"signingKeyID", signingKey.KeyID,
		"signingAlgorithm", signingKey.Algorithm,
		"grantTypes", chain.GrantTypes(),
	)

	return &server{
		handler:     newRouter(h, stor, o.registry),
		storage:     stor,
		stopKeySets: stopKeySets,
	}, nil
}

// assertionValidator builds the jwt-bearer assertion policy.
func assertionValidator(cfg Config, signer crypto.JWSSigner, keySets granter.KeySetFetcher, now func() time.Time) granter.AssertionValidator {
	audiences := []string{cfg.Issuer, cfg.Issuer + handlers.TokenPath}
	switch cfg.Assertions.Mode {
	case AssertionModeSelf:
		return &granter.SelfAssertionValidator{Issuer: cfg.Issuer, Signer: signer, Audiences: audiences, Now: now}
	case AssertionModeTrustedIssuers:
		issuers := make(map[string]string, len(cfg.Assertions.TrustedIssuers))
		for _, ti := range cfg.Assertions.TrustedIssuers {
			issuers[ti.Issuer] = ti.JWKSURI
		}
		return &granter.WhitelistedIssuerAssertionValidator{Issuers: issuers, KeySets: keySets, Audiences: audiences, Now: now}
	default:
		return granter.NullAssertionValidator{}
	}
}

// Handler returns the HTTP handler that serves all endpoints.
func (s *server) Handler() http.Handler {
	return s.handler
}

// Storage returns the backing store.
func (s *server) Storage() storage.Storage {
	return s.storage
}

// Close releases resources held by the server.
func (s *server) Close() error {
	logger.Debug("closing OAuth authorization server")
	s.stopKeySets()
	if err := s.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
