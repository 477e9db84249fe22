// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package granter

//go:generate mockgen -destination=mocks/mock_assertion.go -package=mocks -source=assertion.go AssertionValidator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
)

var (
	// ErrAssertionRejected is returned by validators that accept no assertions.
	ErrAssertionRejected = errors.New("assertion rejected")

	// ErrUntrustedIssuer is returned when an assertion's issuer is not trusted.
	ErrUntrustedIssuer = errors.New("untrusted assertion issuer")

	// ErrAudienceMismatch is returned when an assertion's aud does not name
	// this authorization server.
	ErrAudienceMismatch = errors.New("assertion audience does not identify this server")
)

// AssertionClaims are the validated claims of a JWT bearer assertion.
type AssertionClaims struct {
	Issuer   string
	Subject  string
	Audience []string
	Expiry   time.Time
	Claims   jwt.MapClaims
}

// AssertionValidator validates JWT bearer assertions.
type AssertionValidator interface {
	ValidateAssertion(ctx context.Context, assertion string) (*AssertionClaims, error)
}

// NullAssertionValidator rejects every assertion.
type NullAssertionValidator struct{}

// ValidateAssertion implements AssertionValidator.
func (NullAssertionValidator) ValidateAssertion(context.Context, string) (*AssertionClaims, error) {
	return nil, ErrAssertionRejected
}

// SelfAssertionValidator accepts assertions this server signed itself.
// Tokens the server issued to clients carry the client as audience and are
// therefore never accepted.
type SelfAssertionValidator struct {
	Issuer string
	Signer crypto.JWSSigner
	// Audiences are the aud values that identify this server, typically the
	// issuer and the token endpoint URL. At least one must be present.
	Audiences []string
	Now       func() time.Time
}

// ValidateAssertion implements AssertionValidator.
func (v *SelfAssertionValidator) ValidateAssertion(ctx context.Context, assertion string) (*AssertionClaims, error) {
	payload, err := v.Signer.Verify(ctx, assertion)
	if err != nil {
		return nil, fmt.Errorf("assertion signature: %w", err)
	}
	claims, err := checkAssertionClaims(payload, clock(v.Now), v.Audiences)
	if err != nil {
		return nil, err
	}
	if claims.Issuer != v.Issuer {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedIssuer, claims.Issuer)
	}
	return claims, nil
}

// KeySetFetcher fetches a remote JSON Web Key Set.
type KeySetFetcher interface {
	Fetch(ctx context.Context, uri string) (*jose.JSONWebKeySet, error)
}

// WhitelistedIssuerAssertionValidator accepts assertions from a fixed set
// of issuers, verified against each issuer's published JWKS.
type WhitelistedIssuerAssertionValidator struct {
	// Issuers maps a trusted issuer to its JWKS URI.
	Issuers map[string]string
	KeySets KeySetFetcher
	// Audiences are the aud values that identify this server.
	Audiences []string
	Now       func() time.Time
}

// ValidateAssertion implements AssertionValidator.
func (v *WhitelistedIssuerAssertionValidator) ValidateAssertion(ctx context.Context, assertion string) (*AssertionClaims, error) {
	_, unverified, err := crypto.ParseUnverified(assertion)
	if err != nil {
		return nil, fmt.Errorf("malformed assertion: %w", err)
	}
	issuer, err := unverified.GetIssuer()
	if err != nil || issuer == "" {
		return nil, fmt.Errorf("%w: assertion has no issuer", ErrUntrustedIssuer)
	}
	uri, ok := v.Issuers[issuer]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedIssuer, issuer)
	}

	set, err := v.KeySets.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keys for issuer %q: %w", issuer, err)
	}
	jws, err := jose.ParseSigned(assertion, crypto.AsymmetricAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("malformed assertion: %w", err)
	}
	payload, err := crypto.VerifyWithKeySet(jws, set)
	if err != nil {
		return nil, fmt.Errorf("assertion signature: %w", err)
	}
	return checkAssertionClaims(payload, clock(v.Now), v.Audiences)
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// checkAssertionClaims decodes payload and requires a subject, an unexpired
// exp and an aud naming one of audiences.
func checkAssertionClaims(payload []byte, now time.Time, audiences []string) (*AssertionClaims, error) {
	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("malformed assertion claims: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("assertion has no valid exp")
	}
	if now.After(exp.Time) {
		return nil, jwt.ErrTokenExpired
	}
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil && now.Before(nbf.Time) {
		return nil, jwt.ErrTokenNotValidYet
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, errors.New("assertion has no subject")
	}
	aud, err := claims.GetAudience()
	if err != nil || !slices.ContainsFunc(aud, func(a string) bool { return slices.Contains(audiences, a) }) {
		return nil, fmt.Errorf("%w: %v", ErrAudienceMismatch, []string(aud))
	}
	iss, _ := claims.GetIssuer()

	return &AssertionClaims{
		Issuer:   iss,
		Subject:  sub,
		Audience: aud,
		Expiry:   exp.Time,
		Claims:   claims,
	}, nil
}
