// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
)

// LoadPrivateKey loads a private key from a PEM file.
// Supports RSA (PKCS1 and PKCS8) and ECDSA (SEC1 and PKCS8) formats.
func LoadPrivateKey(keyPath string) (crypto.Signer, error) {
	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 - keyPath is provided by the operator via config
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParsePrivateKeyPEM(keyPEM)
}

// ParsePrivateKeyPEM parses the first PEM block of keyPEM as a private key.
func ParsePrivateKeyPEM(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return rsaKey, nil
	}
	if ecKey, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return ecKey, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("private key does not implement crypto.Signer")
	}
	switch signer.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %T", signer)
	}
}

// DeriveKeyID computes a key ID from the public key using RFC 7638 JWK Thumbprint.
func DeriveKeyID(key crypto.Signer) (string, error) {
	jwk := jose.JSONWebKey{Key: key.Public()}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute key thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(thumbprint), nil
}

// DeriveAlgorithm determines the JWS algorithm for the given key.
func DeriveAlgorithm(key crypto.Signer) (string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return "RS256", nil
	case *ecdsa.PrivateKey:
		return deriveECAlgorithm(k.Curve)
	default:
		return "", fmt.Errorf("unsupported key type: %T", key)
	}
}

func deriveECAlgorithm(curve elliptic.Curve) (string, error) {
	switch curve {
	case elliptic.P256():
		return "ES256", nil
	case elliptic.P384():
		return "ES384", nil
	case elliptic.P521():
		return "ES512", nil
	default:
		return "", fmt.Errorf("unsupported EC curve: %s", curve.Params().Name)
	}
}

// DeriveEncryptionAlgorithm determines the JWE key management algorithm a
// decryption key is published with.
func DeriveEncryptionAlgorithm(key crypto.Signer) (string, error) {
	switch key.(type) {
	case *rsa.PrivateKey:
		return DefaultEncryptionAlgorithm, nil
	case *ecdsa.PrivateKey:
		return "ECDH-ES+A256KW", nil
	default:
		return "", fmt.Errorf("unsupported key type: %T", key)
	}
}

// ValidateAlgorithmForKey checks if the provided algorithm is compatible with the key type.
func ValidateAlgorithmForKey(alg string, key crypto.Signer) error {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		switch alg {
		case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
			return nil
		default:
			return fmt.Errorf("algorithm %s is not compatible with RSA key", alg)
		}
	case *ecdsa.PrivateKey:
		expectedAlg, err := deriveECAlgorithm(k.Curve)
		if err != nil {
			return err
		}
		if alg != expectedAlg {
			return fmt.Errorf("algorithm %s is not compatible with EC key using curve %s (expected %s)",
				alg, k.Curve.Params().Name, expectedAlg)
		}
		return nil
	default:
		return fmt.Errorf("unsupported key type: %T", key)
	}
}

// SigningKeyParams contains the derived or configured parameters for a signing key.
type SigningKeyParams struct {
	Key       crypto.Signer
	KeyID     string
	Algorithm string
}

// DeriveSigningKeyParams derives or validates signing key parameters.
// Empty keyID or algorithm values are derived from the key.
func DeriveSigningKeyParams(key crypto.Signer, keyID, algorithm string) (*SigningKeyParams, error) {
	params := &SigningKeyParams{Key: key, KeyID: keyID, Algorithm: algorithm}

	if params.KeyID == "" {
		derivedID, err := DeriveKeyID(key)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key ID: %w", err)
		}
		params.KeyID = derivedID
	}

	if params.Algorithm == "" {
		derivedAlg, err := DeriveAlgorithm(key)
		if err != nil {
			return nil, fmt.Errorf("failed to derive algorithm: %w", err)
		}
		params.Algorithm = derivedAlg
	} else if err := ValidateAlgorithmForKey(params.Algorithm, key); err != nil {
		return nil, err
	}

	return params, nil
}
