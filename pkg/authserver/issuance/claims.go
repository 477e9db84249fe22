// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package issuance

import (
	"encoding/json"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// Registered JWT claim names used in issued tokens.
const (
	ClaimIssuer   = "iss"
	ClaimSubject  = "sub"
	ClaimAudience = "aud"
	ClaimExpiry   = "exp"
	ClaimIssuedAt = "iat"
	ClaimJWTID    = "jti"
	ClaimAuthTime = "auth_time"
	ClaimNonce    = "nonce"
	ClaimAtHash   = "at_hash"
	ClaimScope    = "scope"
	ClaimClientID = "client_id"
)

// Claims is an immutable JWT claim set. With returns a modified copy.
type Claims struct {
	values map[string]any
}

// With returns a copy of c with key set to value.
func (c Claims) With(key string, value any) Claims {
	next := make(map[string]any, len(c.values)+1)
	maps.Copy(next, c.values)
	next[key] = value
	return Claims{values: next}
}

// Get returns the value of key.
func (c Claims) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the claim names in sorted order.
func (c Claims) Keys() []string {
	return slices.Sorted(maps.Keys(c.values))
}

// Map returns a copy of the claims as a map.
func (c Claims) Map() map[string]any {
	return maps.Clone(c.values)
}

// MarshalJSON implements json.Marshaler.
func (c Claims) MarshalJSON() ([]byte, error) {
	if c.values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.values)
}

// idTokenInput is everything the claim steps read.
type idTokenInput struct {
	issuer      string
	client      *storage.ClientRecord
	req         *server.AuthorizationRequest
	issueTime   time.Time
	validity    time.Duration
	subject     string
	jti         string
	alg         jose.SignatureAlgorithm
	accessToken *storage.AccessToken
	logger      *slog.Logger
}

type claimStep func(Claims, *idTokenInput) Claims

// idTokenSteps run in order to build the ID token claim set.
var idTokenSteps = []claimStep{
	authTimeStep,
	timesStep,
	identityStep,
	nonceStep,
	atHashStep,
}

func buildIDTokenClaims(in *idTokenInput) Claims {
	c := Claims{}
	for _, step := range idTokenSteps {
		c = step(c, in)
	}
	return c
}

// authTimeStep adds auth_time when max_age was requested, the claims
// request asks for it, or the client requires it.
func authTimeStep(c Claims, in *idTokenInput) Claims {
	_, maxAge := in.req.MaxAge()
	requested, _ := request.ClaimRequested(in.req.Extension(server.ExtClaims), ClaimAuthTime)
	if !maxAge && !requested && !in.client.RequireAuthTime {
		return c
	}
	authTime, ok := in.req.AuthTime()
	if !ok {
		in.logger.Warn("auth_time required but not recorded on the request; omitting claim",
			"client_id", in.client.ClientID)
		return c
	}
	return c.With(ClaimAuthTime, authTime.Unix())
}

func timesStep(c Claims, in *idTokenInput) Claims {
	c = c.With(ClaimIssuedAt, in.issueTime.Unix())
	if in.validity > 0 {
		c = c.With(ClaimExpiry, in.issueTime.Add(in.validity).Unix())
	}
	return c
}

func identityStep(c Claims, in *idTokenInput) Claims {
	return c.
		With(ClaimIssuer, in.issuer).
		With(ClaimSubject, subjectFor(in.client, in.subject)).
		With(ClaimAudience, []string{in.client.ClientID}).
		With(ClaimJWTID, in.jti)
}

func nonceStep(c Claims, in *idTokenInput) Claims {
	if nonce := in.req.Extension(server.ExtNonce); nonce != "" {
		return c.With(ClaimNonce, nonce)
	}
	return c
}

func atHashStep(c Claims, in *idTokenInput) Claims {
	if in.accessToken == nil || !slices.Contains(in.req.ResponseTypes, server.ResponseTypeToken) {
		return c
	}
	return c.With(ClaimAtHash, crypto.TokenHash(in.alg, in.accessToken.Value))
}

// subjectFor returns the subject presented to client. Pairwise clients get
// a stable name-based UUID per sector.
func subjectFor(client *storage.ClientRecord, subject string) string {
	if client.SubjectType != storage.SubjectTypePairwise {
		return subject
	}
	sector := sectorOf(client)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sector+"|"+subject)).String()
}

// sectorOf returns the sector identifier, falling back to the host of the
// first redirect URI.
func sectorOf(client *storage.ClientRecord) string {
	if client.SectorIdentifier != "" {
		if u, err := url.Parse(client.SectorIdentifier); err == nil && u.Host != "" {
			return u.Host
		}
		return client.SectorIdentifier
	}
	for _, uri := range client.RedirectURIs {
		if u, err := url.Parse(uri); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return client.ClientID
}
