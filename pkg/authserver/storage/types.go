// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the persistence interfaces of the authorization
// server and their in-memory and Redis implementations.
package storage

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks -source=types.go Storage,ClientRegistry,TokenStore,ConsentStore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a record exists but is no longer valid.
	ErrExpired = errors.New("expired")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict is returned when a transactional swap lost a race.
	ErrConflict = errors.New("concurrent modification")
)

func generateID() string {
	return uuid.NewString()
}

// TokenTypeBearer is the token_type of every access token issued.
const TokenTypeBearer = "Bearer"

// ClientRecord is a client registration.
type ClientRecord struct {
	ClientID      string   `json:"client_id" mapstructure:"client_id" yaml:"client_id"`
	ClientSecret  string   `json:"client_secret,omitempty" mapstructure:"client_secret" yaml:"client_secret"`
	ClientName    string   `json:"client_name,omitempty" mapstructure:"client_name" yaml:"client_name"`
	Scope         []string `json:"scope" mapstructure:"scope" yaml:"scope"`
	RedirectURIs  []string `json:"redirect_uris" mapstructure:"redirect_uris" yaml:"redirect_uris"`
	GrantTypes    []string `json:"grant_types" mapstructure:"grant_types" yaml:"grant_types"`
	ResponseTypes []string `json:"response_types" mapstructure:"response_types" yaml:"response_types"`

	// RequestObjectSigningAlg must be set for request objects to be
	// accepted. "none" allows unsigned request objects.
	RequestObjectSigningAlg string `json:"request_object_signing_alg,omitempty" mapstructure:"request_object_signing_alg" yaml:"request_object_signing_alg"`
	JWKSURI                 string `json:"jwks_uri,omitempty" mapstructure:"jwks_uri" yaml:"jwks_uri"`
	JWKS                    string `json:"jwks,omitempty" mapstructure:"jwks" yaml:"jwks"`

	IDTokenSignedResponseAlg    string `json:"id_token_signed_response_alg,omitempty" mapstructure:"id_token_signed_response_alg" yaml:"id_token_signed_response_alg"`
	IDTokenEncryptedResponseAlg string `json:"id_token_encrypted_response_alg,omitempty" mapstructure:"id_token_encrypted_response_alg" yaml:"id_token_encrypted_response_alg"`
	IDTokenEncryptedResponseEnc string `json:"id_token_encrypted_response_enc,omitempty" mapstructure:"id_token_encrypted_response_enc" yaml:"id_token_encrypted_response_enc"`

	// DefaultMaxAge in seconds. Zero means none.
	DefaultMaxAge       int64  `json:"default_max_age,omitempty" mapstructure:"default_max_age" yaml:"default_max_age"`
	RequireAuthTime     bool   `json:"require_auth_time,omitempty" mapstructure:"require_auth_time" yaml:"require_auth_time"`
	SubjectType         string `json:"subject_type,omitempty" mapstructure:"subject_type" yaml:"subject_type"`
	SectorIdentifier    string `json:"sector_identifier,omitempty" mapstructure:"sector_identifier" yaml:"sector_identifier"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty" mapstructure:"code_challenge_method" yaml:"code_challenge_method"`

	AccessTokenValidity  time.Duration `json:"access_token_validity,omitempty" mapstructure:"access_token_validity" yaml:"access_token_validity"`
	RefreshTokenValidity time.Duration `json:"refresh_token_validity,omitempty" mapstructure:"refresh_token_validity" yaml:"refresh_token_validity"`
	IDTokenValidity      time.Duration `json:"id_token_validity,omitempty" mapstructure:"id_token_validity" yaml:"id_token_validity"`
	ReuseRefreshToken    bool          `json:"reuse_refresh_token,omitempty" mapstructure:"reuse_refresh_token" yaml:"reuse_refresh_token"`
}

// SubjectTypePairwise selects per-sector subject identifiers.
const SubjectTypePairwise = "pairwise"

// HasGrantType reports whether the client may use grantType. A client with
// no registered grant types may use authorization_code only.
func (c *ClientRecord) HasGrantType(grantType string) bool {
	if len(c.GrantTypes) == 0 {
		return grantType == "authorization_code"
	}
	return slices.Contains(c.GrantTypes, grantType)
}

// IsPublic reports whether the client has no secret.
func (c *ClientRecord) IsPublic() bool {
	return c.ClientSecret == ""
}

// KeySource returns where the client's keys are published.
func (c *ClientRecord) KeySource() crypto.KeySource {
	return crypto.KeySource{JWKS: c.JWKS, JWKSURI: c.JWKSURI}
}

// Clone returns a deep copy of c.
func (c *ClientRecord) Clone() *ClientRecord {
	cp := *c
	cp.Scope = slices.Clone(c.Scope)
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	cp.GrantTypes = slices.Clone(c.GrantTypes)
	cp.ResponseTypes = slices.Clone(c.ResponseTypes)
	return &cp
}

// ApprovedSite is a remembered consent decision.
type ApprovedSite struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	UserID        string     `json:"user_id"`
	AllowedScopes []string   `json:"allowed_scopes"`
	CreationDate  time.Time  `json:"creation_date"`
	AccessDate    time.Time  `json:"access_date"`
	TimeoutDate   *time.Time `json:"timeout_date,omitempty"`
}

// IsExpired reports whether the site timed out before now.
func (s *ApprovedSite) IsExpired(now time.Time) bool {
	return s.TimeoutDate != nil && now.After(*s.TimeoutDate)
}

// WhitelistedSite is an administrator-granted consent for a client.
type WhitelistedSite struct {
	ID            string   `json:"id" mapstructure:"id" yaml:"id"`
	ClientID      string   `json:"client_id" mapstructure:"client_id" yaml:"client_id"`
	AllowedScopes []string `json:"allowed_scopes" mapstructure:"allowed_scopes" yaml:"allowed_scopes"`
	CreatorUserID string   `json:"creator_user_id,omitempty" mapstructure:"creator_user_id" yaml:"creator_user_id"`
}

// AuthenticationHolder binds the request that was authorized to the
// principal that authorized it. User is nil when the client itself is the
// principal.
type AuthenticationHolder struct {
	ID      string                      `json:"id"`
	Request server.AuthorizationRequest `json:"request"`
	User    *server.Authentication      `json:"user,omitempty"`
}

// Subject returns the end-user subject, or the client ID for client-principal holders.
func (h *AuthenticationHolder) Subject() string {
	if h.User == nil {
		return h.Request.ClientID
	}
	return h.User.Subject
}

// AccessToken is an issued access token. ID tokens are persisted in the
// same shape, scoped id_token, and linked from their access token.
type AccessToken struct {
	ID                     string    `json:"id"`
	Value                  string    `json:"value"`
	ClientID               string    `json:"client_id"`
	Scope                  []string  `json:"scope"`
	Expiration             time.Time `json:"expiration,omitzero"`
	TokenType              string    `json:"token_type"`
	AuthenticationHolderID string    `json:"authentication_holder_id"`
	RefreshTokenID         string    `json:"refresh_token_id,omitempty"`
	IDTokenID              string    `json:"id_token_id,omitempty"`
	ApprovedSiteID         string    `json:"approved_site_id,omitempty"`

	// Transient values attached for the token response; never persisted.
	RefreshTokenValue string `json:"-"`
	IDTokenValue      string `json:"-"`
}

// IsExpired reports whether the token expired before now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return !t.Expiration.IsZero() && now.After(t.Expiration)
}

// HasScope reports whether the token carries scope.
func (t *AccessToken) HasScope(scope string) bool {
	return slices.Contains(t.Scope, scope)
}

// RefreshToken is an issued refresh token.
type RefreshToken struct {
	ID                     string    `json:"id"`
	Value                  string    `json:"value"`
	ClientID               string    `json:"client_id"`
	Expiration             time.Time `json:"expiration,omitzero"`
	AuthenticationHolderID string    `json:"authentication_holder_id"`
}

// IsExpired reports whether the token expired before now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.Expiration.IsZero() && now.After(t.Expiration)
}

// AuthorizationCode is a one-time code bound to an authentication holder.
type AuthorizationCode struct {
	Code                   string    `json:"code"`
	AuthenticationHolderID string    `json:"authentication_holder_id"`
	Expiration             time.Time `json:"expiration"`
}

// Nonce is a replay-guard record for an OIDC nonce.
type Nonce struct {
	ClientID   string    `json:"client_id"`
	Value      string    `json:"value"`
	UseDate    time.Time `json:"use_date"`
	ExpireDate time.Time `json:"expire_date"`
}

// ClientRegistry resolves client registrations.
type ClientRegistry interface {
	GetClient(ctx context.Context, clientID string) (*ClientRecord, error)
	RegisterClient(ctx context.Context, client *ClientRecord) error
}

// TokenStore persists access, refresh and ID tokens.
type TokenStore interface {
	SaveAccessToken(ctx context.Context, token *AccessToken) error
	// GetAccessToken looks a token up by its serialized value.
	GetAccessToken(ctx context.Context, value string) (*AccessToken, error)
	GetAccessTokenByID(ctx context.Context, id string) (*AccessToken, error)
	RevokeAccessToken(ctx context.Context, id string) error
	// GetAccessTokenForIDToken returns the access token linked to an ID token record.
	GetAccessTokenForIDToken(ctx context.Context, idTokenID string) (*AccessToken, error)
	GetRegistrationAccessTokenForClient(ctx context.Context, clientID string) (*AccessToken, error)
	// SwapAccessToken revokes oldID and saves replacement in one transaction.
	SwapAccessToken(ctx context.Context, oldID string, replacement *AccessToken) error
	// RotateIDToken saves newIDToken, relinks accessTokenID to it, and
	// revokes oldIDTokenID in one transaction.
	RotateIDToken(ctx context.Context, accessTokenID, oldIDTokenID string, newIDToken *AccessToken) error

	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	GetRefreshToken(ctx context.Context, value string) (*RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	// SwapRefreshToken revokes oldID and saves replacement in one transaction.
	SwapRefreshToken(ctx context.Context, oldID string, replacement *RefreshToken) error
}

// ConsentStore persists approved and whitelisted sites.
type ConsentStore interface {
	GetApprovedSitesByClientAndUser(ctx context.Context, clientID, userID string) ([]*ApprovedSite, error)
	GetApprovedSite(ctx context.Context, id string) (*ApprovedSite, error)
	SaveApprovedSite(ctx context.Context, site *ApprovedSite) error
	RemoveApprovedSite(ctx context.Context, id string) error
	GetWhitelistedSiteByClientID(ctx context.Context, clientID string) (*WhitelistedSite, error)
	SaveWhitelistedSite(ctx context.Context, site *WhitelistedSite) error
}

// NonceStore records nonces. UseNonce must be atomic: of two concurrent
// calls for the same live (client, value) pair exactly one succeeds.
type NonceStore interface {
	UseNonce(ctx context.Context, nonce *Nonce) error
}

// AuthorizationCodeStore persists one-time authorization codes.
// ConsumeAuthorizationCode must be atomic delete-and-return.
type AuthorizationCodeStore interface {
	CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// AuthenticationHolderStore persists authentication holders.
type AuthenticationHolderStore interface {
	SaveAuthenticationHolder(ctx context.Context, holder *AuthenticationHolder) error
	GetAuthenticationHolder(ctx context.Context, id string) (*AuthenticationHolder, error)
	RemoveAuthenticationHolder(ctx context.Context, id string) error
}

// PendingAuthorizationStore keeps authorization requests awaiting consent,
// keyed by their CSRF token.
type PendingAuthorizationStore interface {
	StorePendingAuthorization(ctx context.Context, key string, req *server.AuthorizationRequest) error
	LoadPendingAuthorization(ctx context.Context, key string) (*server.AuthorizationRequest, error)
	DeletePendingAuthorization(ctx context.Context, key string) error
}

// Storage combines every store the authorization server needs.
type Storage interface {
	ClientRegistry
	TokenStore
	ConsentStore
	NonceStore
	AuthorizationCodeStore
	AuthenticationHolderStore
	PendingAuthorizationStore

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
