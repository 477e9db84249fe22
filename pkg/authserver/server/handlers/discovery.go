// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-jose/go-jose/v4"

	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/registration"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// Cache-Control max-age values for discovery endpoints.
const (
	// DefaultJWKSCacheMaxAge is the Cache-Control max-age for the JWKS endpoint (1 hour).
	// This balances caching efficiency with timely key rotation propagation.
	DefaultJWKSCacheMaxAge = 3600

	// DefaultDiscoveryCacheMaxAge is the Cache-Control max-age for the discovery endpoint (1 hour).
	DefaultDiscoveryCacheMaxAge = 3600
)

// AuthorizationServerMetadata is the OAuth 2.0 Authorization Server
// Metadata document (RFC 8414).
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	ResponseModesSupported            []string `json:"response_modes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}

// OIDCDiscoveryDocument extends the RFC 8414 metadata with the OpenID
// Connect Discovery 1.0 provider metadata.
type OIDCDiscoveryDocument struct {
	AuthorizationServerMetadata

	SubjectTypesSupported                     []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported          []string `json:"id_token_signing_alg_values_supported"`
	IDTokenEncryptionAlgValuesSupported       []string `json:"id_token_encryption_alg_values_supported,omitempty"`
	IDTokenEncryptionEncValuesSupported       []string `json:"id_token_encryption_enc_values_supported,omitempty"`
	RequestParameterSupported                 bool     `json:"request_parameter_supported"`
	RequestObjectSigningAlgValuesSupported    []string `json:"request_object_signing_alg_values_supported,omitempty"`
	RequestObjectEncryptionAlgValuesSupported []string `json:"request_object_encryption_alg_values_supported,omitempty"`
	RequestObjectEncryptionEncValuesSupported []string `json:"request_object_encryption_enc_values_supported,omitempty"`
	ClaimsParameterSupported                  bool     `json:"claims_parameter_supported"`
	ClaimsSupported                           []string `json:"claims_supported,omitempty"`
}

var supportedResponseTypes = []string{
	"code",
	"token",
	"id_token",
	"code token",
	"code id_token",
	"id_token token",
	"code id_token token",
}

var supportedClaims = []string{
	"iss", "sub", "aud", "exp", "iat", "auth_time", "nonce", "at_hash",
}

// publicJWKS converts the provider's public keys to a JWK set.
func (h *Handler) publicJWKS(ctx context.Context) (*jose.JSONWebKeySet, error) {
	pubs, err := h.keys.PublicKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load public keys: %w", err)
	}
	set := &jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(pubs))}
	for _, pub := range pubs {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub.PublicKey,
			KeyID:     pub.KeyID,
			Algorithm: pub.Algorithm,
			Use:       pub.Use,
		})
	}
	return set, nil
}

// keyAlgorithms collects the algorithms of the published keys with use.
func keyAlgorithms(set *jose.JSONWebKeySet, use string) []string {
	var algs []string
	for _, key := range set.Keys {
		if key.Use == use && key.Algorithm != "" && !slices.Contains(algs, key.Algorithm) {
			algs = append(algs, key.Algorithm)
		}
	}
	return algs
}

func signatureAlgorithmNames(algs []jose.SignatureAlgorithm) []string {
	out := make([]string, len(algs))
	for i, a := range algs {
		out[i] = string(a)
	}
	return out
}

// JWKSHandler handles GET /.well-known/jwks.json requests.
// It returns the public keys used for verifying JWTs and encrypting request objects.
func (h *Handler) JWKSHandler(w http.ResponseWriter, r *http.Request) {
	set, err := h.publicJWKS(r.Context())
	if err != nil {
		logger.Errorw("no public JWKS available", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeCacheable(w, set, DefaultJWKSCacheMaxAge)
}

// buildOAuthMetadata constructs the base OAuth 2.0 Authorization Server Metadata (RFC 8414).
// This is shared between the OAuth AS metadata endpoint and the OIDC discovery endpoint.
func (h *Handler) buildOAuthMetadata() AuthorizationServerMetadata {
	return AuthorizationServerMetadata{
		Issuer:                 h.issuer,
		AuthorizationEndpoint:  h.issuer + "/oauth/authorize",
		TokenEndpoint:          h.issuer + TokenPath,
		JWKSURI:                h.issuer + "/.well-known/jwks.json",
		RegistrationEndpoint:   h.issuer + "/oauth/register",
		ScopesSupported:        scope.Values(h.catalog.Unrestricted()),
		ResponseTypesSupported: supportedResponseTypes,
		ResponseModesSupported: []string{"query", "fragment"},
		GrantTypesSupported:    append(h.chain.GrantTypes(), registration.GrantTypeImplicit),
		TokenEndpointAuthMethodsSupported: []string{
			registration.AuthMethodClientSecretBasic,
			registration.AuthMethodClientSecretPost,
			registration.AuthMethodNone,
		},
		CodeChallengeMethodsSupported: []string{crypto.PKCEChallengeMethodS256, crypto.PKCEChallengeMethodPlain},
	}
}

// OAuthDiscoveryHandler handles GET /.well-known/oauth-authorization-server requests.
// It returns the OAuth 2.0 Authorization Server Metadata per RFC 8414.
func (h *Handler) OAuthDiscoveryHandler(w http.ResponseWriter, _ *http.Request) {
	writeCacheable(w, h.buildOAuthMetadata(), DefaultDiscoveryCacheMaxAge)
}

// OIDCDiscoveryHandler handles GET /.well-known/openid-configuration requests.
// It returns the OIDC discovery document describing the authorization server capabilities.
func (h *Handler) OIDCDiscoveryHandler(w http.ResponseWriter, r *http.Request) {
	set, err := h.publicJWKS(r.Context())
	if err != nil {
		logger.Errorw("failed to build discovery document", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	signingAlgs := keyAlgorithms(set, keys.UseSignature)
	if len(signingAlgs) == 0 {
		// OIDC Core Section 15.1 requires RS256 support to be advertised.
		signingAlgs = []string{string(jose.RS256)}
	}
	symmetric := signatureAlgorithmNames(crypto.SymmetricAlgorithms)

	keyAlgs := make([]string, len(crypto.KeyAlgorithms))
	for i, a := range crypto.KeyAlgorithms {
		keyAlgs[i] = string(a)
	}
	encs := make([]string, len(crypto.ContentEncryptions))
	for i, e := range crypto.ContentEncryptions {
		encs[i] = string(e)
	}

	discovery := OIDCDiscoveryDocument{
		AuthorizationServerMetadata: h.buildOAuthMetadata(),

		SubjectTypesSupported:               []string{"public", "pairwise"},
		IDTokenSigningAlgValuesSupported:    append(append(slices.Clone(signingAlgs), symmetric...), crypto.AlgorithmNone),
		IDTokenEncryptionAlgValuesSupported: keyAlgs,
		IDTokenEncryptionEncValuesSupported: encs,
		RequestParameterSupported:           true,
		RequestObjectSigningAlgValuesSupported: append(append(
			signatureAlgorithmNames(crypto.AsymmetricAlgorithms), symmetric...), crypto.AlgorithmNone),
		RequestObjectEncryptionAlgValuesSupported: keyAlgorithms(set, keys.UseEncryption),
		RequestObjectEncryptionEncValuesSupported: encs,
		ClaimsParameterSupported:                  true,
		ClaimsSupported:                           supportedClaims,
	}
	writeCacheable(w, discovery, DefaultDiscoveryCacheMaxAge)
}

func writeCacheable(w http.ResponseWriter, v any, maxAge int) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorw("failed to encode discovery response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, _ = w.Write(data)
}
