// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package granter

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ory/fosite"

	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// Core grant types.
const (
	GrantTypeAuthorizationCode fosite.GrantType = "authorization_code"
	GrantTypeRefreshToken      fosite.GrantType = "refresh_token"
	GrantTypeClientCredentials fosite.GrantType = "client_credentials"
)

// Stores is the storage the grant handlers need.
type Stores interface {
	storage.TokenStore
	storage.AuthorizationCodeStore
	storage.AuthenticationHolderStore
}

// Handlers implements the supported grants.
type Handlers struct {
	stores     Stores
	issuer     *issuance.Service
	scopes     ScopeValidator
	assertions AssertionValidator
	now        func() time.Time
}

// HandlersOption configures Handlers.
type HandlersOption func(*Handlers)

// WithScopeValidator sets the validator for client-chosen scopes.
func WithScopeValidator(v ScopeValidator) HandlersOption {
	return func(h *Handlers) { h.scopes = v }
}

// WithAssertionValidator sets the validator for jwt-bearer assertions.
func WithAssertionValidator(v AssertionValidator) HandlersOption {
	return func(h *Handlers) { h.assertions = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) HandlersOption {
	return func(h *Handlers) { h.now = now }
}

// NewHandlers creates the grant handlers. Without options, scopes are
// validated exactly and jwt-bearer assertions other than ID tokens are
// rejected.
func NewHandlers(stores Stores, issuer *issuance.Service, opts ...HandlersOption) *Handlers {
	h := &Handlers{
		stores:     stores,
		issuer:     issuer,
		scopes:     PKCEScopeValidator{},
		assertions: NullAssertionValidator{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds every grant to c.
func (h *Handlers) Register(c *Chain) {
	c.Register(GrantTypeAuthorizationCode, h.AuthorizationCode)
	c.Register(GrantTypeRefreshToken, h.RefreshToken)
	c.Register(GrantTypeClientCredentials, h.ClientCredentials)
	c.Register(server.GrantTypeChained, h.Chained)
	c.Register(server.GrantTypeJWTBearer, h.JWTBearer)
}

// AuthorizationCode exchanges a one-time code for tokens.
func (h *Handlers) AuthorizationCode(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if req.Code == "" {
		return nil, server.InvalidRequest("The code parameter is required.")
	}

	code, err := h.stores.ConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, server.InvalidGrant("The authorization code is invalid, expired or was already used.")
		}
		return nil, server.ServerError("Unable to redeem the authorization code.", err)
	}
	if !code.Expiration.IsZero() && h.now().After(code.Expiration) {
		return nil, server.InvalidGrant("The authorization code expired.")
	}

	holder, err := h.loadHolder(ctx, code.AuthenticationHolderID)
	if err != nil {
		return nil, err
	}
	if holder.Request.ClientID != client.ClientID {
		return nil, server.InvalidClient("The authorization code was issued to another client.")
	}
	if err := verifyRedirectURI(&holder.Request, req.RedirectURI); err != nil {
		return nil, err
	}
	if err := verifyPKCE(&holder.Request, req.CodeVerifier); err != nil {
		return nil, err
	}

	return h.issue(ctx, holder, client, req.GrantType, holder.Request.Scope)
}

// verifyRedirectURI requires the redirect_uri of the authorization request
// to be repeated exactly. It may be omitted only when the authorization
// request omitted it too.
func verifyRedirectURI(authReq *server.AuthorizationRequest, sent string) error {
	requested := authReq.Extension(server.ExtRequestedRedirectURI)
	switch {
	case requested != "" && sent == requested:
		return nil
	case requested == "" && (sent == "" || sent == authReq.RedirectURI):
		return nil
	}
	return server.RedirectMismatch("The redirect_uri does not match the one used in the authorization request.")
}

func verifyPKCE(authReq *server.AuthorizationRequest, verifier string) error {
	challenge := authReq.Extension(server.ExtCodeChallenge)
	if challenge == "" {
		if verifier != "" {
			return server.InvalidGrant("A code_verifier was sent but the authorization request had no code_challenge.")
		}
		return nil
	}
	if verifier == "" {
		return server.InvalidGrant("The code_verifier parameter is required.")
	}
	if !crypto.VerifyPKCE(authReq.Extension(server.ExtCodeChallengeMethod), challenge, verifier) {
		return server.InvalidGrant("The code_verifier does not match the code_challenge.")
	}
	return nil
}

// RefreshToken issues a new access token for a refresh token, rotating the
// refresh token unless the client reuses it.
func (h *Handlers) RefreshToken(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, server.InvalidRequest("The refresh_token parameter is required.")
	}

	refresh, err := h.stores.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, server.InvalidGrant("The refresh token is invalid or expired.")
		}
		return nil, server.ServerError("Unable to load the refresh token.", err)
	}
	if refresh.ClientID != client.ClientID {
		return nil, server.InvalidGrant("The refresh token was issued to another client.")
	}
	if refresh.IsExpired(h.now()) {
		return nil, server.InvalidGrant("The refresh token expired.")
	}

	holder, err := h.loadHolder(ctx, refresh.AuthenticationHolderID)
	if err != nil {
		return nil, err
	}

	scopes := []string(holder.Request.Scope)
	if len(req.Scope) > 0 {
		if !(scope.Exact{}).Covers(holder.Request.Scope, req.Scope) {
			return nil, server.InvalidScope("The requested scope exceeds the originally granted scope.")
		}
		scopes = req.Scope
	}

	opts := issuance.TokenOptions{
		GrantType:    string(req.GrantType),
		Scope:        scopes,
		RefreshToken: refresh,
		IDToken:      wantsIDToken(holder, scopes),
	}
	if !client.ReuseRefreshToken {
		opts.RefreshToken = nil
		opts.Refresh = true
		opts.ReplacesRefreshToken = refresh.ID
	}

	token, err := h.issuer.CreateAccessToken(ctx, holder, client, opts)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, server.InvalidGrant("The refresh token was already used.")
		}
		return nil, err
	}
	return tokenResponse(token, h.now()), nil
}

// ClientCredentials issues an access token to the client acting for itself.
func (h *Handlers) ClientCredentials(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if client.IsPublic() {
		return nil, server.InvalidClient("Public clients may not use the client_credentials grant.")
	}

	authReq := h.clientRequest(client, req.Scope)
	if err := h.scopes.ValidateScope(client, authReq); err != nil {
		return nil, err
	}

	holder := &storage.AuthenticationHolder{Request: *authReq}
	if err := h.stores.SaveAuthenticationHolder(ctx, holder); err != nil {
		return nil, server.ServerError("Unable to save the authentication.", err)
	}
	// No refresh token: the client can always authenticate again.
	token, err := h.issuer.CreateAccessToken(ctx, holder, client, issuance.TokenOptions{
		GrantType: string(req.GrantType),
		Scope:     authReq.Scope,
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(token, h.now()), nil
}

// Chained exchanges an existing access token for a new one with equal or
// narrower scope. The original token stays valid and the new token shares
// its authentication.
func (h *Handlers) Chained(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if req.Token == "" {
		return nil, server.InvalidRequest("The token parameter is required.")
	}

	incoming, err := h.stores.GetAccessToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			return nil, server.InvalidGrant("The token to chain is invalid or expired.")
		}
		return nil, server.ServerError("Unable to load the token to chain.", err)
	}
	if incoming.IsExpired(h.now()) {
		return nil, server.InvalidGrant("The token to chain expired.")
	}

	requested := req.Scope
	// A request for exactly the client's scope is what a client sends when
	// it asked for nothing in particular.
	if sameSet(requested, client.Scope) {
		requested = nil
	}
	if !(scope.Exact{}).Covers(incoming.Scope, requested) {
		return nil, server.InvalidScope("Invalid scope requested in chained request. Allowed: " +
			strings.Join(incoming.Scope, " ") + ".")
	}
	if len(requested) == 0 {
		requested = incoming.Scope
	}

	holder, err := h.loadHolder(ctx, incoming.AuthenticationHolderID)
	if err != nil {
		return nil, err
	}
	token, err := h.issuer.CreateAccessToken(ctx, holder, client, issuance.TokenOptions{
		GrantType: string(req.GrantType),
		Scope:     requested,
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(token, h.now()), nil
}

// JWTBearer handles RFC 7523 assertions. An assertion that is a previously
// issued ID token is re-issued with fresh timestamps; any other assertion is
// checked by the assertion validator and yields a new access token for its
// subject.
func (h *Handlers) JWTBearer(ctx context.Context, req *TokenRequest, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if req.Assertion == "" {
		return nil, server.InvalidRequest("The assertion parameter is required.")
	}

	stored, err := h.stores.GetAccessToken(ctx, req.Assertion)
	switch {
	case err == nil && stored.HasScope(server.ScopeIDToken):
		return h.rotateIDToken(ctx, stored, client)
	case errors.Is(err, storage.ErrExpired):
		return nil, server.InvalidGrant("The assertion expired.")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, server.ServerError("Unable to look up the assertion.", err)
	}

	claims, err := h.assertions.ValidateAssertion(ctx, req.Assertion)
	if err != nil {
		return nil, fosite.ErrInvalidGrant.WithHint("The assertion is not valid.").WithWrap(err).WithDebug(err.Error())
	}
	if owner, ok := claims.Claims[issuance.ClaimClientID].(string); ok && owner != client.ClientID {
		return nil, server.InvalidGrant("The assertion was issued to another client.")
	}

	authReq := h.clientRequest(client, req.Scope)
	if err := h.scopes.ValidateScope(client, authReq); err != nil {
		return nil, err
	}
	holder := &storage.AuthenticationHolder{
		Request: *authReq,
		User:    &server.Authentication{Subject: claims.Subject, AuthTime: h.now(), Authenticated: true},
	}
	if err := h.stores.SaveAuthenticationHolder(ctx, holder); err != nil {
		return nil, server.ServerError("Unable to save the authentication.", err)
	}
	logger.Debugw("accepted jwt-bearer assertion", "client_id", client.ClientID, "issuer", claims.Issuer)
	return h.issue(ctx, holder, client, req.GrantType, authReq.Scope)
}

func (h *Handlers) rotateIDToken(ctx context.Context, idToken *storage.AccessToken, client *storage.ClientRecord) (*server.TokenResponse, error) {
	if idToken.ClientID != client.ClientID {
		return nil, server.InvalidClient("The ID token was issued to another client.")
	}

	access, err := h.stores.GetAccessTokenForIDToken(ctx, idToken.ID)
	if err != nil {
		return nil, server.InvalidGrant("The ID token is no longer linked to an access token.")
	}
	holder, err := h.loadHolder(ctx, access.AuthenticationHolderID)
	if err != nil {
		return nil, err
	}

	next, err := h.issuer.ReissueIDToken(ctx, client, holder, access)
	if err != nil {
		return nil, err
	}
	if err := h.stores.RotateIDToken(ctx, access.ID, idToken.ID, next); err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			return nil, server.InvalidGrant("The ID token was already rotated.")
		}
		return nil, server.ServerError("Unable to rotate the ID token.", err)
	}

	resp := tokenResponse(access, h.now())
	resp.IDToken = next.Value
	return resp, nil
}

// clientRequest builds the approved request of a grant where the client
// chooses the scope. An empty scope selects the client's registered scope.
func (*Handlers) clientRequest(client *storage.ClientRecord, requested []string) *server.AuthorizationRequest {
	if len(requested) == 0 {
		requested = scope.RemoveReserved(client.Scope)
	}
	req := server.NewAuthorizationRequest()
	req.ClientID = client.ClientID
	req.SetScope(requested)
	req.Approved = true
	return req
}

func (h *Handlers) loadHolder(ctx context.Context, id string) (*storage.AuthenticationHolder, error) {
	holder, err := h.stores.GetAuthenticationHolder(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, server.InvalidGrant("The grant is no longer backed by an authentication.")
		}
		return nil, server.ServerError("Unable to load the authentication.", err)
	}
	return holder, nil
}

// issue mints the access token of an end-user grant, with a refresh token
// when the client may refresh and asked for offline access, and an ID token
// when the scope has openid.
func (h *Handlers) issue(
	ctx context.Context,
	holder *storage.AuthenticationHolder,
	client *storage.ClientRecord,
	grantType fosite.GrantType,
	scopes []string,
) (*server.TokenResponse, error) {
	token, err := h.issuer.CreateAccessToken(ctx, holder, client, issuance.TokenOptions{
		GrantType: string(grantType),
		Scope:     scopes,
		Refresh:   client.HasGrantType(string(GrantTypeRefreshToken)) && slices.Contains(scopes, server.ScopeOfflineAccess),
		IDToken:   wantsIDToken(holder, scopes),
	})
	if err != nil {
		return nil, err
	}
	return tokenResponse(token, h.now()), nil
}

// wantsIDToken reports whether a grant for holder with scopes carries an ID
// token: there is an end-user and openid was granted.
func wantsIDToken(holder *storage.AuthenticationHolder, scopes []string) bool {
	return holder.User != nil && slices.Contains(scopes, server.ScopeOpenID)
}

func tokenResponse(token *storage.AccessToken, now time.Time) *server.TokenResponse {
	resp := &server.TokenResponse{
		AccessToken:  token.Value,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshTokenValue,
		IDToken:      token.IDTokenValue,
		Scope:        strings.Join(token.Scope, " "),
	}
	if !token.Expiration.IsZero() {
		resp.ExpiresIn = int64(token.Expiration.Sub(now).Round(time.Second) / time.Second)
	}
	return resp
}

// sameSet reports whether a and b hold the same values, ignoring order.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}
