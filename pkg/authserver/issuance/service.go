// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package issuance mints, protects and persists the tokens the
// authorization server hands out: access and refresh tokens, ID tokens, and
// the registration and resource tokens used by the server's own APIs.
package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// Default token lifetimes, used when a client does not set its own.
const (
	DefaultAccessTokenValidity  = time.Hour
	DefaultRefreshTokenValidity = 30 * 24 * time.Hour
	DefaultIDTokenValidity      = 10 * time.Minute
)

// Token kinds recorded in metrics.
const (
	kindAccess       = "access"
	kindRefresh      = "refresh"
	kindID           = "id"
	kindRegistration = "registration"
	kindResource     = "resource"
)

// tokenTypeJWT is stored on ID token records.
const tokenTypeJWT = "JWT"

// KeySetResolver resolves the published keys of a client.
type KeySetResolver interface {
	Resolve(ctx context.Context, src crypto.KeySource) (*jose.JSONWebKeySet, error)
}

// TokenOptions tune CreateAccessToken.
type TokenOptions struct {
	// GrantType labels metrics.
	GrantType string

	// Scope overrides the scope of the holder's request.
	Scope []string

	// Refresh mints a new refresh token alongside the access token.
	Refresh bool

	// RefreshToken links an existing refresh token instead of minting one.
	RefreshToken *storage.RefreshToken

	// ReplacesRefreshToken is the id of the refresh token a minted one is
	// swapped in for. The swap fails with storage.ErrNotFound when that
	// token is already gone.
	ReplacesRefreshToken string

	// IDToken builds an ID token for the holder's user and links it from
	// the access token.
	IDToken bool
}

// Service issues tokens.
type Service struct {
	issuer    string
	tokens    storage.TokenStore
	holders   storage.AuthenticationHolderStore
	signer    crypto.JWSSigner
	symmetric *crypto.SymmetricKeyCache
	keySets   KeySetResolver

	accessTokenValidity  time.Duration
	refreshTokenValidity time.Duration
	idTokenValidity      time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSymmetricKeyCache sets the cache used for HMAC-signed ID tokens.
func WithSymmetricKeyCache(c *crypto.SymmetricKeyCache) Option {
	return func(s *Service) { s.symmetric = c }
}

// WithKeySetResolver enables ID token encryption to client key sets.
func WithKeySetResolver(r KeySetResolver) Option {
	return func(s *Service) { s.keySets = r }
}

// WithValidity sets the default lifetimes. Zero values keep the defaults.
func WithValidity(access, refresh, idToken time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTokenValidity = access
		}
		if refresh > 0 {
			s.refreshTokenValidity = refresh
		}
		if idToken > 0 {
			s.idTokenValidity = idToken
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a token issuance service for issuer.
func NewService(
	issuer string,
	tokens storage.TokenStore,
	holders storage.AuthenticationHolderStore,
	signer crypto.JWSSigner,
	opts ...Option,
) *Service {
	s := &Service{
		issuer:               issuer,
		tokens:               tokens,
		holders:              holders,
		signer:               signer,
		symmetric:            crypto.NewSymmetricKeyCache(crypto.DefaultSymmetricCacheTTL),
		accessTokenValidity:  DefaultAccessTokenValidity,
		refreshTokenValidity: DefaultRefreshTokenValidity,
		idTokenValidity:      DefaultIDTokenValidity,
		logger:               logger.Get(),
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issuer returns the iss value of issued tokens.
func (s *Service) Issuer() string {
	return s.issuer
}

func validity(override, fallback time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return fallback
}

// CreateAccessToken mints, signs and persists an access token for holder,
// along with the refresh and ID tokens opts asks for. Every token is built
// before any of them is stored, so a failure while building leaves the store
// untouched. The holder must already be persisted.
func (s *Service) CreateAccessToken(
	ctx context.Context, holder *storage.AuthenticationHolder, client *storage.ClientRecord, opts TokenOptions,
) (*storage.AccessToken, error) {
	scopes := opts.Scope
	if scopes == nil {
		scopes = holder.Request.Scope
	}

	now := s.now()
	token, err := s.mintAccessToken(ctx, client, holder.Subject(), audience(client, &holder.Request), scopes, now,
		validity(client.AccessTokenValidity, s.accessTokenValidity))
	if err != nil {
		return nil, err
	}
	token.AuthenticationHolderID = holder.ID
	token.ApprovedSiteID = holder.Request.Extension(server.ExtApprovedSite)

	refresh := opts.RefreshToken
	var minted *storage.RefreshToken
	if refresh == nil && opts.Refresh {
		minted, err = s.mintRefreshToken(holder, client)
		if err != nil {
			return nil, err
		}
		refresh = minted
	}
	if refresh != nil {
		token.RefreshTokenID = refresh.ID
		token.RefreshTokenValue = refresh.Value
	}

	var idToken *storage.AccessToken
	if opts.IDToken {
		idToken, err = s.buildIDToken(ctx, client, &holder.Request, now, holder.Subject(), token)
		if err != nil {
			return nil, err
		}
		idToken.AuthenticationHolderID = holder.ID
		token.IDTokenID = idToken.ID
		token.IDTokenValue = idToken.Value
	}

	if minted != nil {
		if err := s.saveRefreshToken(ctx, minted, opts.ReplacesRefreshToken); err != nil {
			return nil, err
		}
		s.metrics.IncTokenIssued(kindRefresh, opts.GrantType)
	}
	if idToken != nil {
		if err := s.tokens.SaveAccessToken(ctx, idToken); err != nil {
			return nil, fmt.Errorf("failed to save ID token: %w", err)
		}
		s.metrics.IncTokenIssued(kindID, opts.GrantType)
	}
	if err := s.tokens.SaveAccessToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}
	s.metrics.IncTokenIssued(kindAccess, opts.GrantType)
	logger.Debugw("issued access token", "client_id", client.ClientID, "jti", token.ID)
	return token, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token *storage.RefreshToken, replaces string) error {
	if replaces == "" {
		if err := s.tokens.SaveRefreshToken(ctx, token); err != nil {
			return fmt.Errorf("failed to save refresh token: %w", err)
		}
		return nil
	}
	if err := s.tokens.SwapRefreshToken(ctx, replaces, token); err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return nil
}

// audience is the client, plus the resource server named by an RFC 8707
// resource indicator.
func audience(client *storage.ClientRecord, req *server.AuthorizationRequest) []string {
	aud := []string{client.ClientID}
	if resource := req.Extension(server.ExtResource); resource != "" && resource != client.ClientID {
		aud = append(aud, resource)
	}
	return aud
}

func (s *Service) mintAccessToken(
	ctx context.Context, client *storage.ClientRecord, subject string, aud, scopes []string, now time.Time, ttl time.Duration,
) (*storage.AccessToken, error) {
	jti := uuid.NewString()
	claims := Claims{}.
		With(ClaimIssuer, s.issuer).
		With(ClaimSubject, subject).
		With(ClaimAudience, aud).
		With(ClaimIssuedAt, now.Unix()).
		With(ClaimJWTID, jti).
		With(ClaimScope, strings.Join(scopes, " ")).
		With(ClaimClientID, client.ClientID)

	var expiration time.Time
	if ttl > 0 {
		expiration = now.Add(ttl)
		claims = claims.With(ClaimExpiry, expiration.Unix())
	}

	value, err := s.signServer(ctx, "", claims)
	if err != nil {
		return nil, err
	}
	return &storage.AccessToken{
		ID:         jti,
		Value:      value,
		ClientID:   client.ClientID,
		Scope:      append([]string(nil), scopes...),
		Expiration: expiration,
		TokenType:  storage.TokenTypeBearer,
	}, nil
}

// mintRefreshToken builds a refresh token for holder. The value is an
// unsigned JWT carrying only a random jti and the expiry.
func (s *Service) mintRefreshToken(holder *storage.AuthenticationHolder, client *storage.ClientRecord) (*storage.RefreshToken, error) {
	jti := uuid.NewString()
	claims := map[string]any{ClaimJWTID: jti}

	var expiration time.Time
	if ttl := validity(client.RefreshTokenValidity, s.refreshTokenValidity); ttl > 0 {
		expiration = s.now().Add(ttl)
		claims[ClaimExpiry] = expiration.Unix()
	}

	value, err := crypto.SignUnsecured(claims)
	if err != nil {
		return nil, server.ServerError("Unable to serialize the refresh token.", err)
	}
	return &storage.RefreshToken{
		ID:                     jti,
		Value:                  value,
		ClientID:               client.ClientID,
		Expiration:             expiration,
		AuthenticationHolderID: holder.ID,
	}, nil
}

// CreateIDToken builds, protects and persists an ID token for subject. When
// accessToken is non-nil the ID token record is linked from it and its
// IDTokenValue is set.
func (s *Service) CreateIDToken(
	ctx context.Context,
	client *storage.ClientRecord,
	req *server.AuthorizationRequest,
	issueTime time.Time,
	subject string,
	accessToken *storage.AccessToken,
) (string, error) {
	record, err := s.buildIDToken(ctx, client, req, issueTime, subject, accessToken)
	if err != nil {
		return "", err
	}
	if accessToken != nil {
		record.AuthenticationHolderID = accessToken.AuthenticationHolderID
	}
	if err := s.tokens.SaveAccessToken(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save ID token: %w", err)
	}

	if accessToken != nil {
		accessToken.IDTokenID = record.ID
		accessToken.IDTokenValue = record.Value
		if err := s.tokens.SaveAccessToken(ctx, accessToken); err != nil {
			return "", fmt.Errorf("failed to link ID token: %w", err)
		}
	}
	s.metrics.IncTokenIssued(kindID, "")
	return record.Value, nil
}

// ReissueIDToken builds a fresh ID token for the holder of an existing one,
// with new iat, exp and jti. The result is not persisted.
func (s *Service) ReissueIDToken(
	ctx context.Context,
	client *storage.ClientRecord,
	holder *storage.AuthenticationHolder,
	accessToken *storage.AccessToken,
) (*storage.AccessToken, error) {
	record, err := s.buildIDToken(ctx, client, &holder.Request, s.now(), holder.Subject(), accessToken)
	if err != nil {
		return nil, err
	}
	record.AuthenticationHolderID = holder.ID
	s.metrics.IncTokenIssued(kindID, string(server.GrantTypeJWTBearer))
	return record, nil
}

func (s *Service) buildIDToken(
	ctx context.Context,
	client *storage.ClientRecord,
	req *server.AuthorizationRequest,
	issueTime time.Time,
	subject string,
	accessToken *storage.AccessToken,
) (*storage.AccessToken, error) {
	alg, err := s.idTokenAlgorithm(ctx, client)
	if err != nil {
		return nil, err
	}

	in := &idTokenInput{
		issuer:      s.issuer,
		client:      client,
		req:         req,
		issueTime:   issueTime,
		validity:    validity(client.IDTokenValidity, s.idTokenValidity),
		subject:     subject,
		jti:         uuid.NewString(),
		alg:         alg,
		accessToken: accessToken,
		logger:      s.logger,
	}
	claims := buildIDTokenClaims(in)

	value, err := s.protectIDToken(ctx, client, alg, claims)
	if err != nil {
		return nil, err
	}

	var expiration time.Time
	if in.validity > 0 {
		expiration = issueTime.Add(in.validity)
	}
	return &storage.AccessToken{
		ID:         in.jti,
		Value:      value,
		ClientID:   client.ClientID,
		Scope:      []string{server.ScopeIDToken},
		Expiration: expiration,
		TokenType:  tokenTypeJWT,
	}, nil
}

func (s *Service) idTokenAlgorithm(ctx context.Context, client *storage.ClientRecord) (jose.SignatureAlgorithm, error) {
	if client.IDTokenSignedResponseAlg != "" {
		return jose.SignatureAlgorithm(client.IDTokenSignedResponseAlg), nil
	}
	alg, err := s.signer.DefaultAlgorithm(ctx)
	if err != nil {
		return "", server.ServerError("No signing key is available.", err)
	}
	return alg, nil
}

// protectIDToken encrypts claims to the client when it registered both
// encryption parameters and a key source; otherwise it signs them. The two
// protections are never combined.
func (s *Service) protectIDToken(
	ctx context.Context, client *storage.ClientRecord, alg jose.SignatureAlgorithm, claims Claims,
) (string, error) {
	if client.IDTokenEncryptedResponseAlg != "" && client.IDTokenEncryptedResponseEnc != "" && client.KeySource().HasKeys() {
		return s.encryptIDToken(ctx, client, claims)
	}

	switch {
	case string(alg) == crypto.AlgorithmNone:
		value, err := crypto.SignUnsecured(claims.Map())
		if err != nil {
			return "", server.ServerError("Unable to serialize the ID token.", err)
		}
		return value, nil

	case crypto.IsSymmetric(alg):
		payload, err := json.Marshal(claims)
		if err != nil {
			return "", server.ServerError("Unable to serialize the ID token.", err)
		}
		value, err := s.symmetric.Sign(client.ClientSecret, alg, payload)
		if err != nil {
			return "", server.ServerError("Unable to sign the ID token with the client secret.", err)
		}
		return value, nil

	default:
		return s.signServer(ctx, alg, claims)
	}
}

func (s *Service) encryptIDToken(ctx context.Context, client *storage.ClientRecord, claims Claims) (string, error) {
	if s.keySets == nil {
		return "", server.ServerError("ID token encryption is not available.", nil)
	}
	set, err := s.keySets.Resolve(ctx, client.KeySource())
	if err != nil {
		return "", server.ServerError("Unable to load the client key set for ID token encryption.", err)
	}
	encrypter, err := crypto.NewEncrypter(set,
		jose.KeyAlgorithm(client.IDTokenEncryptedResponseAlg),
		jose.ContentEncryption(client.IDTokenEncryptedResponseEnc))
	if err != nil {
		return "", server.ServerError("No usable client key for ID token encryption.", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", server.ServerError("Unable to serialize the ID token.", err)
	}
	value, err := crypto.Encrypt(encrypter, payload)
	if err != nil {
		return "", server.ServerError("Unable to encrypt the ID token.", err)
	}
	return value, nil
}

func (s *Service) signServer(ctx context.Context, alg jose.SignatureAlgorithm, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", server.ServerError("Unable to serialize the token.", err)
	}
	value, err := s.signer.Sign(ctx, alg, payload)
	if err != nil {
		return "", server.ServerError("Unable to sign the token.", err)
	}
	return value, nil
}

// CreateRegistrationAccessToken mints the token a client uses to manage its
// own registration.
func (s *Service) CreateRegistrationAccessToken(ctx context.Context, client *storage.ClientRecord) (*storage.AccessToken, error) {
	return s.createClientToken(ctx, client, server.ScopeRegistrationToken, kindRegistration)
}

// CreateResourceAccessToken mints the token a protected resource uses to
// call back into the server.
func (s *Service) CreateResourceAccessToken(ctx context.Context, client *storage.ClientRecord) (*storage.AccessToken, error) {
	return s.createClientToken(ctx, client, server.ScopeResourceToken, kindResource)
}

func (s *Service) createClientToken(
	ctx context.Context, client *storage.ClientRecord, reserved, kind string,
) (*storage.AccessToken, error) {
	holder, err := s.clientHolder(ctx, client, reserved)
	if err != nil {
		return nil, err
	}
	token, err := s.mintAccessToken(ctx, client, client.ClientID, []string{client.ClientID}, []string{reserved}, s.now(), 0)
	if err != nil {
		return nil, err
	}
	token.AuthenticationHolderID = holder.ID
	if err := s.tokens.SaveAccessToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save %s token: %w", kind, err)
	}
	s.metrics.IncTokenIssued(kind, "")
	return token, nil
}

// clientHolder persists a holder whose principal is the client itself.
func (s *Service) clientHolder(ctx context.Context, client *storage.ClientRecord, scopes ...string) (*storage.AuthenticationHolder, error) {
	req := server.NewAuthorizationRequest()
	req.ClientID = client.ClientID
	req.SetScope(scopes)
	req.Approved = true

	holder := &storage.AuthenticationHolder{Request: *req}
	if err := s.holders.SaveAuthenticationHolder(ctx, holder); err != nil {
		return nil, fmt.Errorf("failed to save authentication holder: %w", err)
	}
	return holder, nil
}

// RotateRegistrationAccessTokenForClient replaces the client's registration
// token with a new one of the same scope. The old token is revoked in the
// same store transaction that saves the new one.
func (s *Service) RotateRegistrationAccessTokenForClient(
	ctx context.Context, client *storage.ClientRecord,
) (*storage.AccessToken, error) {
	old, err := s.tokens.GetRegistrationAccessTokenForClient(ctx, client.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no registration token to rotate for client %q: %w", client.ClientID, err)
		}
		return nil, fmt.Errorf("failed to load registration token: %w", err)
	}

	replacement, err := s.mintAccessToken(ctx, client, client.ClientID, []string{client.ClientID}, old.Scope, s.now(), 0)
	if err != nil {
		return nil, err
	}
	replacement.AuthenticationHolderID = old.AuthenticationHolderID

	if err := s.tokens.SwapAccessToken(ctx, old.ID, replacement); err != nil {
		return nil, fmt.Errorf("failed to rotate registration token: %w", err)
	}
	s.metrics.IncTokenIssued(kindRegistration, "")
	logger.Infow("rotated registration access token", "client_id", client.ClientID)
	return replacement, nil
}
