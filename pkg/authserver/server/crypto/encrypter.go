// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
)

// KeyAlgorithms are the JWE key management algorithms accepted for request
// objects and used for ID tokens.
var KeyAlgorithms = []jose.KeyAlgorithm{
	jose.RSA_OAEP, jose.RSA_OAEP_256,
	jose.ECDH_ES, jose.ECDH_ES_A128KW, jose.ECDH_ES_A192KW, jose.ECDH_ES_A256KW,
}

// ContentEncryptions are the accepted JWE content encryption methods.
var ContentEncryptions = []jose.ContentEncryption{
	jose.A128GCM, jose.A192GCM, jose.A256GCM,
	jose.A128CBC_HS256, jose.A192CBC_HS384, jose.A256CBC_HS512,
}

// NewEncrypter builds a JWE encrypter to the first key in set usable for alg.
func NewEncrypter(set *jose.JSONWebKeySet, alg jose.KeyAlgorithm, enc jose.ContentEncryption) (jose.Encrypter, error) {
	key, err := selectEncryptionKey(set, alg)
	if err != nil {
		return nil, err
	}

	encrypter, err := jose.NewEncrypter(enc,
		jose.Recipient{Algorithm: alg, Key: key.Key, KeyID: key.KeyID},
		(&jose.EncrypterOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}
	return encrypter, nil
}

func selectEncryptionKey(set *jose.JSONWebKeySet, alg jose.KeyAlgorithm) (*jose.JSONWebKey, error) {
	if set == nil {
		return nil, ErrNoKeySource
	}
	for i := range set.Keys {
		k := &set.Keys[i]
		if k.Use != "" && k.Use != keys.UseEncryption {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != string(alg) {
			continue
		}
		if keyFitsAlgorithm(k.Key, alg) {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: no encryption key for %s", ErrKeyNotFound, alg)
}

func keyFitsAlgorithm(key any, alg jose.KeyAlgorithm) bool {
	switch key.(type) {
	case *rsa.PublicKey:
		return strings.HasPrefix(string(alg), "RSA")
	case *ecdsa.PublicKey:
		return strings.HasPrefix(string(alg), "ECDH-ES")
	default:
		return false
	}
}

// Encrypt serializes payload as a compact JWE.
func Encrypt(encrypter jose.Encrypter, payload []byte) (string, error) {
	jwe, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return jwe.CompactSerialize()
}

// Decrypter opens JWEs addressed to the server's decryption key.
type Decrypter struct {
	provider keys.KeyProvider
}

// NewDecrypter creates a decrypter over provider.
func NewDecrypter(provider keys.KeyProvider) *Decrypter {
	return &Decrypter{provider: provider}
}

// Decrypt decrypts a parsed JWE.
func (d *Decrypter) Decrypt(ctx context.Context, jwe *jose.JSONWebEncryption) ([]byte, error) {
	key, err := d.provider.DecryptionKey(ctx)
	if err != nil {
		return nil, err
	}
	if jwe.Header.KeyID != "" && jwe.Header.KeyID != key.KeyID {
		return nil, fmt.Errorf("%w: unknown key id %q", ErrKeyNotFound, jwe.Header.KeyID)
	}
	payload, err := jwe.Decrypt(key.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return payload, nil
}

// ParseEncrypted parses a compact JWE restricted to the accepted algorithms.
func ParseEncrypted(token string) (*jose.JSONWebEncryption, error) {
	return jose.ParseEncrypted(token, KeyAlgorithms, ContentEncryptions)
}
