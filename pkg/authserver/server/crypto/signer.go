// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package crypto holds the JOSE primitives of the authorization server:
// signing with the server key or a client secret, encrypting to a client key
// set, decrypting request objects, and the PKCE helpers.
package crypto

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
)

// AlgorithmNone marks an unsigned JWT.
const AlgorithmNone = "none"

var (
	// ErrUnsupportedAlgorithm is returned when no key can serve an algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrKeyNotFound is returned when no key verifies a token.
	ErrKeyNotFound = errors.New("no matching key")
)

// AsymmetricAlgorithms are the JWS algorithms verified with public keys.
var AsymmetricAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
}

// SymmetricAlgorithms are the JWS algorithms keyed by a client secret.
var SymmetricAlgorithms = []jose.SignatureAlgorithm{jose.HS256, jose.HS384, jose.HS512}

// IsSymmetric reports whether alg is an HMAC algorithm.
func IsSymmetric(alg jose.SignatureAlgorithm) bool {
	for _, a := range SymmetricAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}

//go:generate mockgen -destination=mocks/mock_signer.go -package=mocks -source=signer.go JWSSigner

// JWSSigner signs and verifies JWTs with the server's own keys.
type JWSSigner interface {
	// Sign serializes payload as a compact JWS. An empty alg selects the
	// default algorithm of the current signing key.
	Sign(ctx context.Context, alg jose.SignatureAlgorithm, payload []byte) (string, error)

	// Verify checks a compact JWS against the published server keys and
	// returns its payload.
	Verify(ctx context.Context, token string) ([]byte, error)

	// DefaultAlgorithm returns the algorithm of the current signing key.
	DefaultAlgorithm(ctx context.Context) (jose.SignatureAlgorithm, error)
}

// ServerSigner is the JWSSigner backed by a keys.KeyProvider.
type ServerSigner struct {
	provider keys.KeyProvider
}

// NewServerSigner creates a signer over provider.
func NewServerSigner(provider keys.KeyProvider) *ServerSigner {
	return &ServerSigner{provider: provider}
}

// DefaultAlgorithm implements JWSSigner.
func (s *ServerSigner) DefaultAlgorithm(ctx context.Context) (jose.SignatureAlgorithm, error) {
	key, err := s.provider.SigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get signing key: %w", err)
	}
	return jose.SignatureAlgorithm(key.Algorithm), nil
}

// Sign implements JWSSigner.
func (s *ServerSigner) Sign(ctx context.Context, alg jose.SignatureAlgorithm, payload []byte) (string, error) {
	key, err := s.provider.SigningKey(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get signing key: %w", err)
	}
	if alg == "" {
		alg = jose.SignatureAlgorithm(key.Algorithm)
	}
	if err := keys.ValidateAlgorithmForKey(string(alg), key.Key); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedAlgorithm, err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{
			Algorithm: alg,
			Key:       jose.JSONWebKey{Key: key.Key, KeyID: key.KeyID, Algorithm: string(alg)},
		},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return jws.CompactSerialize()
}

// Verify implements JWSSigner.
func (s *ServerSigner) Verify(ctx context.Context, token string) ([]byte, error) {
	jws, err := jose.ParseSigned(token, AsymmetricAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWS: %w", err)
	}

	pubKeys, err := s.provider.PublicKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public keys: %w", err)
	}

	set := jose.JSONWebKeySet{}
	for _, k := range pubKeys {
		if k.Use != keys.UseSignature {
			continue
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key: k.PublicKey, KeyID: k.KeyID, Algorithm: k.Algorithm, Use: k.Use,
		})
	}
	return VerifyWithKeySet(jws, &set)
}

// VerifyWithKeySet verifies jws against the signature keys of set. When the
// JWS names a key ID only that key is tried.
func VerifyWithKeySet(jws *jose.JSONWebSignature, set *jose.JSONWebKeySet) ([]byte, error) {
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("expected exactly one signature, got %d", len(jws.Signatures))
	}
	header := jws.Signatures[0].Header

	candidates := set.Keys
	if header.KeyID != "" {
		candidates = set.Key(header.KeyID)
	}

	for _, k := range candidates {
		if k.Use != "" && k.Use != keys.UseSignature {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != header.Algorithm {
			continue
		}
		payload, err := jws.Verify(k.Key)
		if err == nil {
			return payload, nil
		}
	}
	return nil, ErrKeyNotFound
}

var _ JWSSigner = (*ServerSigner)(nil)
