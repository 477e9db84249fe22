// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registration provides OAuth 2.0 Dynamic Client Registration (DCR)
// per RFC 7591: request validation, redirect URI policy and the mapping of a
// validated request onto a client record.
package registration

import (
	"crypto/rand"
	"net/url"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// DCR error codes per RFC 7591 Section 3.2.2
const (
	// DCRErrorInvalidRedirectURI indicates that the value of one or more
	// redirect_uris is invalid.
	DCRErrorInvalidRedirectURI = "invalid_redirect_uri"

	// DCRErrorInvalidClientMetadata indicates that the value of one of the
	// client metadata fields is invalid and the server has rejected this request.
	DCRErrorInvalidClientMetadata = "invalid_client_metadata"
)

// Validation limits to prevent DoS attacks via excessively large requests.
const (
	// MaxRedirectURICount is the maximum number of redirect URIs allowed per client.
	MaxRedirectURICount = 10

	// MaxClientNameLength is the maximum allowed length for a client name.
	MaxClientNameLength = 256

	// MaxRedirectURILength is the maximum allowed length of one redirect URI.
	MaxRedirectURILength = 2048
)

// Token endpoint authentication methods.
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

// Grant types a client may register for.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeImplicit          = "implicit"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeClientCredentials = "client_credentials"
)

// DCRRequest represents an OAuth 2.0 Dynamic Client Registration request
// per RFC 7591 Section 2, with the OIDC registration metadata the server
// honours.
type DCRRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`

	// Scope is a space-delimited list.
	Scope string `json:"scope,omitempty"`

	JWKSURI                     string `json:"jwks_uri,omitempty"`
	RequestObjectSigningAlg     string `json:"request_object_signing_alg,omitempty"`
	IDTokenSignedResponseAlg    string `json:"id_token_signed_response_alg,omitempty"`
	IDTokenEncryptedResponseAlg string `json:"id_token_encrypted_response_alg,omitempty"`
	IDTokenEncryptedResponseEnc string `json:"id_token_encrypted_response_enc,omitempty"`
	SubjectType                 string `json:"subject_type,omitempty"`
	SectorIdentifierURI         string `json:"sector_identifier_uri,omitempty"`
	DefaultMaxAge               int64  `json:"default_max_age,omitempty"`
	RequireAuthTime             bool   `json:"require_auth_time,omitempty"`
	CodeChallengeMethod         string `json:"code_challenge_method,omitempty"`
}

// DCRResponse represents a successful OAuth 2.0 Dynamic Client Registration
// response per RFC 7591 Section 3.2.1 and RFC 7592 Section 3.
type DCRResponse struct {
	DCRRequest

	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret,omitempty"`
	ClientIDIssuedAt      int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`

	RegistrationAccessToken string `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string `json:"registration_client_uri,omitempty"`
}

// DCRError represents an OAuth 2.0 Dynamic Client Registration error
// response per RFC 7591 Section 3.2.2.
type DCRError struct {
	// Error is a single ASCII error code from the defined set.
	Error string `json:"error"`

	// ErrorDescription is a human-readable text providing additional information.
	ErrorDescription string `json:"error_description,omitempty"`
}

// Policy bounds what a registration may request.
type Policy struct {
	// Scopes available to self-registered clients. Requested scopes outside
	// this set are dropped.
	Scopes []string

	// DefaultScopes are granted when the request names none.
	DefaultScopes []string
}

var allowedGrantTypes = []string{
	GrantTypeAuthorizationCode,
	GrantTypeImplicit,
	GrantTypeRefreshToken,
	GrantTypeClientCredentials,
}

var allowedResponseTypes = []string{
	server.ResponseTypeCode,
	server.ResponseTypeToken,
	server.ResponseTypeIDToken,
}

var allowedAuthMethods = []string{
	AuthMethodNone,
	AuthMethodClientSecretBasic,
	AuthMethodClientSecretPost,
}

func invalidMetadata(description string) *DCRError {
	return &DCRError{Error: DCRErrorInvalidClientMetadata, ErrorDescription: description}
}

// ValidateDCRRequest validates a DCR request according to RFC 7591 and
// policy. It returns the validated request with defaults applied.
func ValidateDCRRequest(req *DCRRequest, policy Policy) (*DCRRequest, *DCRError) {
	out := *req

	if len(out.ClientName) > MaxClientNameLength {
		return nil, invalidMetadata("client_name too long (maximum 256 characters)")
	}

	if out.TokenEndpointAuthMethod == "" {
		out.TokenEndpointAuthMethod = AuthMethodClientSecretBasic
	}
	if !slices.Contains(allowedAuthMethods, out.TokenEndpointAuthMethod) {
		return nil, invalidMetadata("unsupported token_endpoint_auth_method: " + out.TokenEndpointAuthMethod)
	}

	grantTypes, dcrErr := validateGrantTypes(out.GrantTypes, out.TokenEndpointAuthMethod)
	if dcrErr != nil {
		return nil, dcrErr
	}
	out.GrantTypes = grantTypes

	responseTypes, dcrErr := validateResponseTypes(out.ResponseTypes, grantTypes)
	if dcrErr != nil {
		return nil, dcrErr
	}
	out.ResponseTypes = responseTypes

	if dcrErr := validateRedirectURIs(out.RedirectURIs, grantTypes); dcrErr != nil {
		return nil, dcrErr
	}

	out.Scope = strings.Join(filterScopes(server.SplitArguments(out.Scope), policy), " ")

	if dcrErr := validateIDTokenMetadata(&out); dcrErr != nil {
		return nil, dcrErr
	}
	return &out, nil
}

func validateGrantTypes(grantTypes []string, authMethod string) ([]string, *DCRError) {
	if len(grantTypes) == 0 {
		grantTypes = []string{GrantTypeAuthorizationCode}
	}
	for _, gt := range grantTypes {
		if !slices.Contains(allowedGrantTypes, gt) {
			return nil, invalidMetadata("unsupported grant_type: " + gt)
		}
	}
	if authMethod == AuthMethodNone && slices.Contains(grantTypes, GrantTypeClientCredentials) {
		return nil, invalidMetadata("client_credentials requires a confidential client")
	}
	return slices.Clone(grantTypes), nil
}

// validateResponseTypes checks each response_types entry, which may combine
// several space-separated values, against the registered grant types.
func validateResponseTypes(responseTypes, grantTypes []string) ([]string, *DCRError) {
	if len(responseTypes) == 0 {
		if !slices.Contains(grantTypes, GrantTypeAuthorizationCode) {
			return nil, nil
		}
		responseTypes = []string{server.ResponseTypeCode}
	}
	for _, entry := range responseTypes {
		values := strings.Fields(entry)
		if len(values) == 0 {
			return nil, invalidMetadata("empty response_type")
		}
		for _, v := range values {
			if !slices.Contains(allowedResponseTypes, v) {
				return nil, invalidMetadata("unsupported response_type: " + entry)
			}
			if v == server.ResponseTypeCode && !slices.Contains(grantTypes, GrantTypeAuthorizationCode) {
				return nil, invalidMetadata("response_type code requires the authorization_code grant")
			}
			if v != server.ResponseTypeCode && !slices.Contains(grantTypes, GrantTypeImplicit) {
				return nil, invalidMetadata("response_type " + v + " requires the implicit grant")
			}
		}
	}
	return slices.Clone(responseTypes), nil
}

func validateRedirectURIs(uris, grantTypes []string) *DCRError {
	redirecting := slices.Contains(grantTypes, GrantTypeAuthorizationCode) ||
		slices.Contains(grantTypes, GrantTypeImplicit)
	if len(uris) == 0 {
		if redirecting {
			return &DCRError{Error: DCRErrorInvalidRedirectURI, ErrorDescription: "redirect_uris is required"}
		}
		return nil
	}
	if len(uris) > MaxRedirectURICount {
		return &DCRError{Error: DCRErrorInvalidRedirectURI, ErrorDescription: "too many redirect_uris (maximum 10)"}
	}
	for _, uri := range uris {
		if err := ValidateRedirectURI(uri); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRedirectURI validates a redirect URI per RFC 8252: HTTPS is
// allowed for any host, HTTP only for loopback hosts. Fragments and
// private-use schemes are rejected.
func ValidateRedirectURI(uri string) *DCRError {
	invalid := func(description string) *DCRError {
		return &DCRError{Error: DCRErrorInvalidRedirectURI, ErrorDescription: description + ": " + uri}
	}

	if len(uri) > MaxRedirectURILength {
		return invalid("redirect_uri too long")
	}
	parsed, err := url.Parse(uri)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return invalid("redirect_uri must be an absolute URL")
	}
	if parsed.Fragment != "" {
		return invalid("redirect_uri must not contain a fragment")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if request.IsLoopbackHost(parsed.Hostname()) {
			return nil
		}
		return invalid("http redirect_uri is only allowed for loopback hosts")
	default:
		return invalid("unsupported redirect_uri scheme")
	}
}

func filterScopes(requested []string, policy Policy) []string {
	if len(requested) == 0 {
		return slices.Clone(policy.DefaultScopes)
	}
	kept := make([]string, 0, len(requested))
	for _, s := range requested {
		if slices.Contains(policy.Scopes, s) {
			kept = append(kept, s)
		}
	}
	return kept
}

func validateIDTokenMetadata(req *DCRRequest) *DCRError {
	for field, alg := range map[string]string{
		"request_object_signing_alg":   req.RequestObjectSigningAlg,
		"id_token_signed_response_alg": req.IDTokenSignedResponseAlg,
	} {
		if alg != "" && !isSignatureAlgorithm(alg) {
			return invalidMetadata("unsupported " + field + ": " + alg)
		}
	}

	alg, enc := req.IDTokenEncryptedResponseAlg, req.IDTokenEncryptedResponseEnc
	if alg == "" && enc != "" {
		return invalidMetadata("id_token_encrypted_response_enc requires id_token_encrypted_response_alg")
	}
	if alg != "" {
		if !slices.Contains(crypto.KeyAlgorithms, jose.KeyAlgorithm(alg)) {
			return invalidMetadata("unsupported id_token_encrypted_response_alg: " + alg)
		}
		if enc == "" {
			req.IDTokenEncryptedResponseEnc = string(jose.A128CBC_HS256)
		} else if !slices.Contains(crypto.ContentEncryptions, jose.ContentEncryption(enc)) {
			return invalidMetadata("unsupported id_token_encrypted_response_enc: " + enc)
		}
		if req.JWKSURI == "" {
			return invalidMetadata("id_token encryption requires jwks_uri")
		}
	}

	if req.JWKSURI != "" {
		if u, err := url.Parse(req.JWKSURI); err != nil || u.Scheme != "https" {
			return invalidMetadata("jwks_uri must be an https URL")
		}
	}

	switch req.SubjectType {
	case "", "public":
	case storage.SubjectTypePairwise:
		if req.SectorIdentifierURI != "" {
			if u, err := url.Parse(req.SectorIdentifierURI); err != nil || u.Scheme != "https" {
				return invalidMetadata("sector_identifier_uri must be an https URL")
			}
		}
	default:
		return invalidMetadata("unsupported subject_type: " + req.SubjectType)
	}

	switch req.CodeChallengeMethod {
	case "", crypto.PKCEChallengeMethodS256, crypto.PKCEChallengeMethodPlain:
	default:
		return invalidMetadata("unsupported code_challenge_method: " + req.CodeChallengeMethod)
	}
	if req.DefaultMaxAge < 0 {
		return invalidMetadata("default_max_age must not be negative")
	}
	return nil
}

func isSignatureAlgorithm(alg string) bool {
	sig := jose.SignatureAlgorithm(alg)
	return alg == crypto.AlgorithmNone || crypto.IsSymmetric(sig) || slices.Contains(crypto.AsymmetricAlgorithms, sig)
}

// NewClientRecord builds the client record for a validated request. A
// secret is generated unless the client authenticates with "none".
func NewClientRecord(req *DCRRequest) *storage.ClientRecord {
	client := &storage.ClientRecord{
		ClientID:                    uuid.NewString(),
		ClientName:                  req.ClientName,
		Scope:                       server.SplitArguments(req.Scope),
		RedirectURIs:                slices.Clone(req.RedirectURIs),
		GrantTypes:                  slices.Clone(req.GrantTypes),
		ResponseTypes:               slices.Clone(req.ResponseTypes),
		RequestObjectSigningAlg:     req.RequestObjectSigningAlg,
		JWKSURI:                     req.JWKSURI,
		IDTokenSignedResponseAlg:    req.IDTokenSignedResponseAlg,
		IDTokenEncryptedResponseAlg: req.IDTokenEncryptedResponseAlg,
		IDTokenEncryptedResponseEnc: req.IDTokenEncryptedResponseEnc,
		DefaultMaxAge:               req.DefaultMaxAge,
		RequireAuthTime:             req.RequireAuthTime,
		SubjectType:                 req.SubjectType,
		SectorIdentifier:            req.SectorIdentifierURI,
		CodeChallengeMethod:         req.CodeChallengeMethod,
	}
	if req.TokenEndpointAuthMethod != AuthMethodNone {
		client.ClientSecret = rand.Text()
	}
	return client
}

// NewResponse describes client as a registration response.
func NewResponse(client *storage.ClientRecord, authMethod string) *DCRResponse {
	if authMethod == "" {
		authMethod = AuthMethodClientSecretBasic
		if client.IsPublic() {
			authMethod = AuthMethodNone
		}
	}
	return &DCRResponse{
		DCRRequest: DCRRequest{
			RedirectURIs:                slices.Clone(client.RedirectURIs),
			ClientName:                  client.ClientName,
			TokenEndpointAuthMethod:     authMethod,
			GrantTypes:                  slices.Clone(client.GrantTypes),
			ResponseTypes:               slices.Clone(client.ResponseTypes),
			Scope:                       strings.Join(client.Scope, " "),
			JWKSURI:                     client.JWKSURI,
			RequestObjectSigningAlg:     client.RequestObjectSigningAlg,
			IDTokenSignedResponseAlg:    client.IDTokenSignedResponseAlg,
			IDTokenEncryptedResponseAlg: client.IDTokenEncryptedResponseAlg,
			IDTokenEncryptedResponseEnc: client.IDTokenEncryptedResponseEnc,
			SubjectType:                 client.SubjectType,
			SectorIdentifierURI:         client.SectorIdentifier,
			DefaultMaxAge:               client.DefaultMaxAge,
			RequireAuthTime:             client.RequireAuthTime,
			CodeChallengeMethod:         client.CodeChallengeMethod,
		},
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
	}
}
