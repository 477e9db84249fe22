// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keys provides the server's own key material: the key used to sign
// tokens and the key clients use to encrypt request objects to the server.
// Keys are loaded from PEM files or generated on first use for development.
package keys

import (
	"crypto"
	"errors"
	"time"
)

// DefaultAlgorithm is the default signing algorithm for auto-generated keys.
const DefaultAlgorithm = "ES256"

// DefaultEncryptionAlgorithm is the key management algorithm advertised for
// RSA decryption keys.
const DefaultEncryptionAlgorithm = "RSA-OAEP-256"

// Key use values published in the JWKS.
const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

// ErrNoDecryptionKey is returned when the provider has no decryption key.
var ErrNoDecryptionKey = errors.New("no decryption key configured")

// SigningKeyData represents a signing key with its metadata.
// This contains private key material and should not be exposed externally.
type SigningKeyData struct {
	// KeyID is the unique identifier for this key (RFC 7638 thumbprint).
	KeyID string

	// Algorithm is the signing algorithm (e.g., "ES256", "RS256").
	Algorithm string

	// Key is the private key used for signing.
	Key crypto.Signer

	// CreatedAt is when this key was generated or loaded.
	CreatedAt time.Time
}

// DecryptionKeyData is the private key request objects are encrypted to.
type DecryptionKeyData struct {
	KeyID     string
	Algorithm string
	// Key is an *rsa.PrivateKey or *ecdsa.PrivateKey.
	Key       crypto.Signer
	CreatedAt time.Time
}

// PublicKeyData represents the public portion of a server key.
// This is safe to expose via the JWKS endpoint.
type PublicKeyData struct {
	KeyID     string
	Algorithm string
	// Use is UseSignature or UseEncryption.
	Use       string
	PublicKey crypto.PublicKey
	CreatedAt time.Time
}
