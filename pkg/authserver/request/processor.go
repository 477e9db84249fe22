// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package request turns the parameters of an authorization request, and the
// optional request object they carry, into a server.AuthorizationRequest.
package request

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

const instrumentationName = "github.com/stacklok/toolhive-idp/pkg/authserver/request"

// DefaultNonceLifetime is how long a used nonce blocks replays.
const DefaultNonceLifetime = 5 * time.Minute

// Request object protections, used as metric labels.
const (
	protectionPlain     = "plain"
	protectionSigned    = "signed"
	protectionEncrypted = "encrypted"
	protectionMalformed = "malformed"
)

// KeySetResolver resolves the key set a client published.
type KeySetResolver interface {
	Resolve(ctx context.Context, src crypto.KeySource) (*jose.JSONWebKeySet, error)
}

// Decrypter opens request objects encrypted to the server.
type Decrypter interface {
	Decrypt(ctx context.Context, jwe *jose.JSONWebEncryption) ([]byte, error)
}

// Processor builds authorization requests from incoming parameters.
type Processor struct {
	clients   storage.ClientRegistry
	nonces    storage.NonceStore
	symmetric *crypto.SymmetricKeyCache
	keySets   KeySetResolver
	decrypter Decrypter

	nonceLifetime time.Duration
	audiences     []string
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithSymmetricKeyCache sets the cache used to verify HS* request objects.
func WithSymmetricKeyCache(c *crypto.SymmetricKeyCache) Option {
	return func(p *Processor) { p.symmetric = c }
}

// WithKeySetResolver sets the resolver used to verify asymmetric request objects.
func WithKeySetResolver(r KeySetResolver) Option {
	return func(p *Processor) { p.keySets = r }
}

// WithDecrypter sets the decrypter for encrypted request objects.
func WithDecrypter(d Decrypter) Option {
	return func(p *Processor) { p.decrypter = d }
}

// WithNonceLifetime sets how long a recorded nonce stays live.
func WithNonceLifetime(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.nonceLifetime = d
		}
	}
}

// WithAllowedAudiences sets the resource indicators (RFC 8707) clients may
// request. With none configured every resource parameter is rejected.
func WithAllowedAudiences(audiences []string) Option {
	return func(p *Processor) { p.audiences = audiences }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Processor) { p.tracer = tp.Tracer(instrumentationName) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a Processor.
func NewProcessor(clients storage.ClientRegistry, nonces storage.NonceStore, opts ...Option) *Processor {
	p := &Processor{
		clients:       clients,
		nonces:        nonces,
		symmetric:     crypto.NewSymmetricKeyCache(crypto.DefaultSymmetricCacheTTL),
		nonceLifetime: DefaultNonceLifetime,
		tracer:        otel.GetTracerProvider().Tracer(instrumentationName),
		logger:        logger.Get(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// queryExtensions are copied verbatim from the query into extensions.
var queryExtensions = []string{
	server.ExtPrompt,
	server.ExtNonce,
	server.ExtMaxAge,
	server.ExtDisplay,
	server.ExtCodeChallenge,
	server.ExtCodeChallengeMethod,
	server.ExtResource,
}

// Process builds the authorization request for params and records its nonce.
// Claims of a request object take precedence over query parameters of the
// same name.
func (p *Processor) Process(ctx context.Context, params url.Values) (*server.AuthorizationRequest, error) {
	req, err := p.Prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := p.RecordNonce(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Prepare is Process without recording the nonce. Callers that validate the
// request further call RecordNonce once it passed, so a rejected request does
// not consume its nonce.
func (p *Processor) Prepare(ctx context.Context, params url.Values) (_ *server.AuthorizationRequest, retErr error) {
	ctx, span := p.tracer.Start(ctx, "request.Prepare",
		trace.WithAttributes(attribute.String("oauth.client_id", params.Get("client_id"))))
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, server.ErrorCode(retErr))
		}
		span.End()
	}()

	req := server.NewAuthorizationRequest()
	req.ClientID = params.Get("client_id")
	req.SetScope(server.SplitArguments(params.Get("scope")))
	req.RedirectURI = params.Get("redirect_uri")
	req.State = params.Get("state")
	req.ResponseTypes = server.SplitArguments(params.Get("response_type"))
	for _, key := range queryExtensions {
		req.SetExtension(key, params.Get(key))
	}
	if raw := params.Get("claims"); raw != "" {
		if canonical, ok := CanonicalClaims(raw); ok {
			req.SetExtension(server.ExtClaims, canonical)
		} else {
			p.logger.Warn("dropping invalid claims request", "client_id", req.ClientID)
		}
	}

	var client *storage.ClientRecord
	if raw := params.Get("request"); raw != "" {
		c, err := p.applyRequestObject(ctx, req, raw)
		if err != nil {
			return nil, err
		}
		client = c
	}

	if client == nil {
		if req.ClientID == "" {
			return nil, server.InvalidRequest("The client_id parameter is required.")
		}
		c, err := p.loadClient(ctx, req.ClientID)
		if err != nil {
			return nil, err
		}
		client = c
	}

	if len(req.Scope) == 0 {
		req.SetScope(client.Scope)
	}
	if _, ok := req.MaxAge(); !ok && client.DefaultMaxAge > 0 {
		req.SetExtension(server.ExtMaxAge, strconv.FormatInt(client.DefaultMaxAge, 10))
	}

	if resource := req.Extension(server.ExtResource); resource != "" {
		if err := server.ValidateAudienceURI(resource); err != nil {
			return nil, err
		}
		if err := server.ValidateAudienceAllowed(resource, p.audiences); err != nil {
			return nil, err
		}
	}

	req.SetExtension(server.ExtCSRF, uuid.NewString())
	return req, nil
}

// RecordNonce stores the nonce of req, if any. A nonce already used by the
// same client yields server.ErrNonceReuse.
func (p *Processor) RecordNonce(ctx context.Context, req *server.AuthorizationRequest) error {
	nonce := req.Extension(server.ExtNonce)
	if nonce == "" {
		return nil
	}
	return p.recordNonce(ctx, req.ClientID, nonce)
}

func (p *Processor) loadClient(ctx context.Context, clientID string) (*storage.ClientRecord, error) {
	client, err := p.clients.GetClient(ctx, clientID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, server.InvalidClientf("Client %q is not registered.", clientID)
	}
	if err != nil {
		return nil, server.ServerError("Failed to load client.", err)
	}
	return client, nil
}

func (p *Processor) recordNonce(ctx context.Context, clientID, value string) error {
	now := p.now()
	err := p.nonces.UseNonce(ctx, &storage.Nonce{
		ClientID:   clientID,
		Value:      value,
		UseDate:    now,
		ExpireDate: now.Add(p.nonceLifetime),
	})
	if errors.Is(err, server.ErrNonceReuse) {
		p.logger.Warn("nonce replay rejected", "client_id", clientID)
		return err
	}
	if err != nil {
		return server.ServerError("Failed to record nonce.", err)
	}
	return nil
}

// applyRequestObject verifies raw and merges its claims into req. It
// returns the client it loaded, or nil when the object was ignored.
func (p *Processor) applyRequestObject(ctx context.Context, req *server.AuthorizationRequest, raw string) (*storage.ClientRecord, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") == 4 {
		return p.applyEncrypted(ctx, req, raw)
	}
	return p.applyCompactJWT(ctx, req, raw, protectionSigned)
}

func (p *Processor) applyEncrypted(ctx context.Context, req *server.AuthorizationRequest, raw string) (*storage.ClientRecord, error) {
	jwe, err := crypto.ParseEncrypted(raw)
	if err != nil {
		p.malformed(req, err)
		return nil, nil
	}
	if p.decrypter == nil {
		p.metrics.IncRequestObject(protectionEncrypted, "rejected")
		return nil, server.InvalidClient("Encrypted request objects are not supported.")
	}
	payload, err := p.decrypter.Decrypt(ctx, jwe)
	if err != nil {
		p.metrics.IncRequestObject(protectionEncrypted, "rejected")
		return nil, server.InvalidClientf("The request object could not be decrypted: %s.", err)
	}

	inner := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(inner, "{") {
		return p.applyCompactJWT(ctx, req, inner, protectionEncrypted)
	}

	claims := map[string]any{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		p.malformed(req, err)
		return nil, nil
	}
	client, err := p.requestObjectClient(ctx, req, claims)
	if err != nil {
		return nil, err
	}
	p.applyClaims(req, claims)
	p.metrics.IncRequestObject(protectionEncrypted, "ok")
	return client, nil
}

// applyCompactJWT handles a plain (alg none) or signed request object.
func (p *Processor) applyCompactJWT(
	ctx context.Context, req *server.AuthorizationRequest, raw, protection string,
) (*storage.ClientRecord, error) {
	header, unverified, err := crypto.ParseUnverified(raw)
	if err != nil {
		p.malformed(req, err)
		return nil, nil
	}
	alg, _ := header["alg"].(string)

	client, err := p.requestObjectClient(ctx, req, unverified)
	if err != nil {
		return nil, err
	}

	if alg == crypto.AlgorithmNone {
		if client.RequestObjectSigningAlg != crypto.AlgorithmNone {
			p.metrics.IncRequestObject(protectionPlain, "rejected")
			return nil, server.InvalidClientf("Client %q does not accept unsigned request objects.", client.ClientID)
		}
		p.applyClaims(req, unverified)
		p.metrics.IncRequestObject(protectionPlain, "ok")
		return client, nil
	}

	claims, err := p.verifySigned(ctx, client, raw, alg)
	if err != nil {
		p.metrics.IncRequestObject(protection, "rejected")
		return nil, err
	}
	if err := checkClientID(req, claims); err != nil {
		return nil, err
	}
	p.applyClaims(req, claims)
	p.metrics.IncRequestObject(protection, "ok")
	return client, nil
}

// verifySigned checks raw against the client's registered algorithm and keys
// and returns the verified claim set.
func (p *Processor) verifySigned(ctx context.Context, client *storage.ClientRecord, raw, alg string) (map[string]any, error) {
	registered := jose.SignatureAlgorithm(client.RequestObjectSigningAlg)
	if registered == "" {
		return nil, server.InvalidClientf("Client %q has no registered request object signing algorithm.", client.ClientID)
	}
	if jose.SignatureAlgorithm(alg) != registered {
		return nil, server.InvalidClientf(
			"The request object is signed with %s but client %q registered %s.", alg, client.ClientID, registered)
	}

	jws, err := jose.ParseSigned(raw, []jose.SignatureAlgorithm{registered})
	if err != nil {
		return nil, server.InvalidClientf("The request object could not be parsed: %s.", err)
	}

	var payload []byte
	if crypto.IsSymmetric(registered) {
		payload, err = p.symmetric.Verify(client.ClientSecret, jws)
	} else {
		payload, err = p.verifyAsymmetric(ctx, client, jws)
	}
	if err != nil {
		return nil, server.InvalidClientf("The request object signature is invalid: %s.", err)
	}

	claims := map[string]any{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, server.InvalidClient("The request object payload is not a JSON object.")
	}
	return claims, nil
}

func (p *Processor) verifyAsymmetric(ctx context.Context, client *storage.ClientRecord, jws *jose.JSONWebSignature) ([]byte, error) {
	if p.keySets == nil {
		return nil, crypto.ErrNoKeySource
	}
	set, err := p.keySets.Resolve(ctx, client.KeySource())
	if err != nil {
		return nil, err
	}
	return crypto.VerifyWithKeySet(jws, set)
}

// requestObjectClient loads the client a request object belongs to, taking
// client_id from the query or, failing that, from the object.
func (p *Processor) requestObjectClient(ctx context.Context, req *server.AuthorizationRequest, claims map[string]any) (*storage.ClientRecord, error) {
	if err := checkClientID(req, claims); err != nil {
		return nil, err
	}
	if req.ClientID == "" {
		if id, ok := claims["client_id"].(string); ok {
			req.ClientID = id
		}
	}
	if req.ClientID == "" {
		return nil, server.InvalidClient("The request object does not identify a client.")
	}
	return p.loadClient(ctx, req.ClientID)
}

func checkClientID(req *server.AuthorizationRequest, claims map[string]any) error {
	id, ok := claims["client_id"].(string)
	if ok && req.ClientID != "" && id != req.ClientID {
		return server.InvalidClientf("The request object client_id %q does not match %q.", id, req.ClientID)
	}
	return nil
}

func (p *Processor) malformed(req *server.AuthorizationRequest, err error) {
	p.metrics.IncRequestObject(protectionMalformed, "ignored")
	p.logger.Warn("ignoring malformed request object", "client_id", req.ClientID, "error", err)
}
