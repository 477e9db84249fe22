// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultSymmetricCacheTTL is how long a signer derived from a client secret
// stays cached.
const DefaultSymmetricCacheTTL = 24 * time.Hour

// ErrNoClientSecret is returned when an HMAC operation needs a client secret
// that was not registered.
var ErrNoClientSecret = errors.New("client has no secret")

// SymmetricKeyCache derives HMAC signers from client secrets and caches them.
// Cache keys are digests of the secret and algorithm; secrets are never used
// as map keys directly.
type SymmetricKeyCache struct {
	signers *gocache.Cache
}

// NewSymmetricKeyCache creates a cache with the given entry lifetime.
func NewSymmetricKeyCache(ttl time.Duration) *SymmetricKeyCache {
	if ttl <= 0 {
		ttl = DefaultSymmetricCacheTTL
	}
	return &SymmetricKeyCache{signers: gocache.New(ttl, ttl/2)}
}

func cacheKey(secret string, alg jose.SignatureAlgorithm) string {
	sum := sha256.Sum256([]byte(string(alg) + ":" + secret))
	return hex.EncodeToString(sum[:])
}

func (c *SymmetricKeyCache) signer(secret string, alg jose.SignatureAlgorithm) (jose.Signer, error) {
	if secret == "" {
		return nil, ErrNoClientSecret
	}
	if !IsSymmetric(alg) {
		return nil, fmt.Errorf("%w: %s is not an HMAC algorithm", ErrUnsupportedAlgorithm, alg)
	}

	key := cacheKey(secret, alg)
	if cached, ok := c.signers.Get(key); ok {
		return cached.(jose.Signer), nil
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: []byte(secret)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HMAC signer: %w", err)
	}
	c.signers.Set(key, signer, gocache.DefaultExpiration)
	return signer, nil
}

// Sign serializes payload as a compact JWS keyed by secret.
func (c *SymmetricKeyCache) Sign(secret string, alg jose.SignatureAlgorithm, payload []byte) (string, error) {
	signer, err := c.signer(secret, alg)
	if err != nil {
		return "", err
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return jws.CompactSerialize()
}

// Verify checks an HMAC-protected JWS against secret and returns its payload.
func (*SymmetricKeyCache) Verify(secret string, jws *jose.JSONWebSignature) ([]byte, error) {
	if secret == "" {
		return nil, ErrNoClientSecret
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("expected exactly one signature, got %d", len(jws.Signatures))
	}
	if !IsSymmetric(jose.SignatureAlgorithm(jws.Signatures[0].Header.Algorithm)) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, jws.Signatures[0].Header.Algorithm)
	}
	return jws.Verify([]byte(secret))
}

// Len returns the number of cached signers.
func (c *SymmetricKeyCache) Len() int {
	return c.signers.ItemCount()
}
