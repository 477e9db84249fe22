// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-idp/pkg/authserver/consent"
	"github.com/stacklok/toolhive-idp/pkg/authserver/granter"
	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// Defaults applied when Params leaves a value unset.
const (
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
	DefaultTokenRateLimit            = rate.Limit(10)
	DefaultTokenRateBurst            = 20

	// limiterIdleExpiry drops the rate limiter of a client that stopped calling.
	limiterIdleExpiry = 10 * time.Minute
)

// TokenPath is the path of the token endpoint below the issuer.
const TokenPath = "/oauth/token"

// Params carries the dependencies of a Handler.
type Params struct {
	// Issuer is the external base URL of the server, without a trailing slash.
	Issuer string

	Storage        storage.Storage
	Processor      *request.Processor
	Consent        *consent.Engine
	Chain          *granter.Chain
	Issuance       *issuance.Service
	ScopeValidator granter.ScopeValidator
	Catalog        *scope.Catalog
	Keys           keys.KeyProvider
	Authenticator  Authenticator

	AuthorizationCodeLifetime time.Duration

	// TokenRateLimit is the sustained number of token requests per second
	// allowed for one client, with bursts up to TokenRateBurst.
	TokenRateLimit rate.Limit
	TokenRateBurst int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Handler provides HTTP handlers for the OAuth authorization server endpoints.
type Handler struct {
	issuer        string
	storage       storage.Storage
	processor     *request.Processor
	consent       *consent.Engine
	chain         *granter.Chain
	issuance      *issuance.Service
	scopes        granter.ScopeValidator
	catalog       *scope.Catalog
	keys          keys.KeyProvider
	authenticator Authenticator

	codeLifetime time.Duration
	rateLimit    rate.Limit
	rateBurst    int
	limiters     *cache.Cache
	now          func() time.Time
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(p Params) *Handler {
	h := &Handler{
		issuer:        p.Issuer,
		storage:       p.Storage,
		processor:     p.Processor,
		consent:       p.Consent,
		chain:         p.Chain,
		issuance:      p.Issuance,
		scopes:        p.ScopeValidator,
		catalog:       p.Catalog,
		keys:          p.Keys,
		authenticator: p.Authenticator,
		codeLifetime:  p.AuthorizationCodeLifetime,
		rateLimit:     p.TokenRateLimit,
		rateBurst:     p.TokenRateBurst,
		limiters:      cache.New(limiterIdleExpiry, limiterIdleExpiry),
		now:           p.Now,
	}
	if h.scopes == nil {
		h.scopes = granter.PKCEScopeValidator{}
	}
	if h.catalog == nil {
		h.catalog = scope.NewCatalog(scope.DefaultScopes()...)
	}
	if h.authenticator == nil {
		h.authenticator = HeaderAuthenticator{}
	}
	if h.codeLifetime <= 0 {
		h.codeLifetime = DefaultAuthorizationCodeLifetime
	}
	if h.rateLimit <= 0 {
		h.rateLimit = DefaultTokenRateLimit
	}
	if h.rateBurst <= 0 {
		h.rateBurst = DefaultTokenRateBurst
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Routes returns a router with all OAuth/OIDC endpoints registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.OAuthRoutes(r)
	h.WellKnownRoutes(r)
	return r
}

// OAuthRoutes registers OAuth endpoints (authorize, token, register) on the provided router.
func (h *Handler) OAuthRoutes(r chi.Router) {
	r.Get("/oauth/authorize", h.AuthorizeHandler)
	r.Post("/oauth/authorize", h.ConsentHandler)
	r.Post(TokenPath, h.TokenHandler)
	r.Post("/oauth/register", h.RegisterClientHandler)
	r.Get("/oauth/register/{client_id}", h.ReadClientHandler)
}

// WellKnownRoutes registers well-known endpoints (JWKS, OAuth/OIDC discovery) on the provided router.
func (h *Handler) WellKnownRoutes(r chi.Router) {
	r.Get("/.well-known/jwks.json", h.JWKSHandler)
	r.Get("/.well-known/oauth-authorization-server", h.OAuthDiscoveryHandler)
	r.Get("/.well-known/openid-configuration", h.OIDCDiscoveryHandler)
}
