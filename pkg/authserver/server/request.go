// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ory/fosite"
)

// Extension keys carried on an AuthorizationRequest.
const (
	ExtNonce               = "nonce"
	ExtPrompt              = "prompt"
	ExtMaxAge              = "max_age"
	ExtClaims              = "claims"
	ExtCSRF                = "csrf"
	ExtDisplay             = "display"
	ExtApprovedSite        = "approved_site"
	ExtAuthTime            = "auth_time"
	ExtCodeChallenge       = "code_challenge"
	ExtCodeChallengeMethod = "code_challenge_method"
	ExtResource            = "resource"

	// ExtRequestedRedirectURI holds the redirect_uri exactly as the client
	// sent it. It is absent when the client relied on its single registered
	// URI.
	ExtRequestedRedirectURI = "requested_redirect_uri"
)

// Prompt values (OIDC Core Section 3.1.2.1).
const (
	PromptNone    = "none"
	PromptLogin   = "login"
	PromptConsent = "consent"
)

// Response types understood by the authorization endpoint.
const (
	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
)

// Reserved and well-known scope values.
const (
	ScopeOpenID            = "openid"
	ScopeOfflineAccess     = "offline_access"
	ScopeIDToken           = "id_token"
	ScopeRegistrationToken = "registration_token"
	ScopeResourceToken     = "resource_token"
)

// Extension grant types. The chained grant keeps the underscore spelling used
// by deployed clients.
const (
	GrantTypeChained   fosite.GrantType = "urn:ietf:params:oauth:grant_type:redelegate"
	GrantTypeJWTBearer fosite.GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Authentication is the end-user session state the HTTP edge hands to the core.
type Authentication struct {
	Subject       string    `json:"subject"`
	AuthTime      time.Time `json:"auth_time,omitzero"`
	Authenticated bool      `json:"authenticated"`
}

// IsAuthenticated reports whether a is a live end-user session.
func (a *Authentication) IsAuthenticated() bool {
	return a != nil && a.Authenticated && a.Subject != ""
}

// AuthorizationRequest is the canonical in-memory authorization request.
// It is mutated while being processed and consented, and copied with Clone
// before being handed to the token granters.
type AuthorizationRequest struct {
	ClientID      string            `json:"client_id"`
	Scope         fosite.Arguments  `json:"scope"`
	RedirectURI   string            `json:"redirect_uri,omitempty"`
	State         string            `json:"state,omitempty"`
	ResponseTypes fosite.Arguments  `json:"response_types"`
	Approved      bool              `json:"approved"`
	Extensions    map[string]string `json:"extensions"`
}

// NewAuthorizationRequest returns an empty request with non-nil collections.
func NewAuthorizationRequest() *AuthorizationRequest {
	return &AuthorizationRequest{
		Scope:         fosite.Arguments{},
		ResponseTypes: fosite.Arguments{},
		Extensions:    map[string]string{},
	}
}

// Clone returns a deep copy of r.
func (r *AuthorizationRequest) Clone() *AuthorizationRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Scope = append(fosite.Arguments{}, r.Scope...)
	c.ResponseTypes = append(fosite.Arguments{}, r.ResponseTypes...)
	c.Extensions = maps.Clone(r.Extensions)
	if c.Extensions == nil {
		c.Extensions = map[string]string{}
	}
	return &c
}

// Extension returns the extension value for key, or "".
func (r *AuthorizationRequest) Extension(key string) string {
	if r.Extensions == nil {
		return ""
	}
	return r.Extensions[key]
}

// SetExtension stores value under key. Empty values remove the key.
func (r *AuthorizationRequest) SetExtension(key, value string) {
	if r.Extensions == nil {
		r.Extensions = map[string]string{}
	}
	if value == "" {
		delete(r.Extensions, key)
		return
	}
	r.Extensions[key] = value
}

// SetScope replaces the scope, keeping it non-nil and free of duplicates.
func (r *AuthorizationRequest) SetScope(scopes []string) {
	r.Scope = NormalizeArguments(scopes)
}

// HasPrompt reports whether the prompt extension contains value.
func (r *AuthorizationRequest) HasPrompt(value string) bool {
	return slices.Contains(strings.Fields(r.Extension(ExtPrompt)), value)
}

// MaxAge returns the max_age extension in seconds and whether it was present.
func (r *AuthorizationRequest) MaxAge() (int64, bool) {
	raw := r.Extension(ExtMaxAge)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// AuthTime returns the recorded authentication time, if any.
func (r *AuthorizationRequest) AuthTime() (time.Time, bool) {
	raw := r.Extension(ExtAuthTime)
	if raw == "" {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(v, 0), true
}

// SetAuthTime records t as the authentication time. The zero time is ignored.
func (r *AuthorizationRequest) SetAuthTime(t time.Time) {
	if t.IsZero() {
		return
	}
	r.SetExtension(ExtAuthTime, strconv.FormatInt(t.Unix(), 10))
}

// SplitArguments splits a space-delimited parameter value.
func SplitArguments(value string) fosite.Arguments {
	return NormalizeArguments(strings.Fields(value))
}

// NormalizeArguments removes empty and duplicate entries, preserving order.
// The result is never nil.
func NormalizeArguments(values []string) fosite.Arguments {
	out := make(fosite.Arguments, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// TokenResponse is the JSON body returned by the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
