// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=provider.go KeyProvider

// KeyProvider provides the server's signing and decryption keys.
type KeyProvider interface {
	// SigningKey returns the current signing key.
	SigningKey(ctx context.Context) (*SigningKeyData, error)

	// DecryptionKey returns the request-object decryption key.
	// Returns ErrNoDecryptionKey if none is configured.
	DecryptionKey(ctx context.Context) (*DecryptionKeyData, error)

	// PublicKeys returns all public keys for the JWKS endpoint.
	// May return multiple signing keys during rotation periods.
	PublicKeys(ctx context.Context) ([]*PublicKeyData, error)
}

// FileProvider loads keys from PEM files in a directory.
// Keys are loaded once at construction time; changes require restart.
type FileProvider struct {
	signingKey    *SigningKeyData
	allKeys       []*SigningKeyData
	decryptionKey *DecryptionKeyData
}

// NewFileProvider creates a provider that loads keys from a directory.
// All keys are loaded immediately and validated.
func NewFileProvider(cfg Config) (*FileProvider, error) {
	if cfg.SigningKeyFile == "" {
		return nil, fmt.Errorf("signing key file is required")
	}

	signingKey, err := loadSigningKeyFromFile(filepath.Join(cfg.KeyDir, cfg.SigningKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	allKeys := []*SigningKeyData{signingKey}
	for _, filename := range cfg.FallbackKeyFiles {
		key, err := loadSigningKeyFromFile(filepath.Join(cfg.KeyDir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback key %s: %w", filename, err)
		}
		allKeys = append(allKeys, key)
	}

	p := &FileProvider{signingKey: signingKey, allKeys: allKeys}

	if cfg.DecryptionKeyFile != "" {
		p.decryptionKey, err = loadDecryptionKeyFromFile(filepath.Join(cfg.KeyDir, cfg.DecryptionKeyFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load decryption key: %w", err)
		}
	}

	return p, nil
}

func loadSigningKeyFromFile(keyPath string) (*SigningKeyData, error) {
	signer, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}

	params, err := DeriveSigningKeyParams(signer, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to derive key parameters: %w", err)
	}

	return &SigningKeyData{
		KeyID:     params.KeyID,
		Algorithm: params.Algorithm,
		Key:       params.Key,
		CreatedAt: time.Now(),
	}, nil
}

func loadDecryptionKeyFromFile(keyPath string) (*DecryptionKeyData, error) {
	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return newDecryptionKeyData(key)
}

func newDecryptionKeyData(key crypto.Signer) (*DecryptionKeyData, error) {
	kid, err := DeriveKeyID(key)
	if err != nil {
		return nil, err
	}
	alg, err := DeriveEncryptionAlgorithm(key)
	if err != nil {
		return nil, err
	}
	return &DecryptionKeyData{KeyID: kid, Algorithm: alg, Key: key, CreatedAt: time.Now()}, nil
}

// SigningKey returns a copy of the primary signing key.
func (p *FileProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	k := *p.signingKey
	return &k, nil
}

// DecryptionKey returns the decryption key, if one was configured.
func (p *FileProvider) DecryptionKey(_ context.Context) (*DecryptionKeyData, error) {
	if p.decryptionKey == nil {
		return nil, ErrNoDecryptionKey
	}
	k := *p.decryptionKey
	return &k, nil
}

// PublicKeys returns public keys for all loaded signing keys and, when
// present, the decryption key.
func (p *FileProvider) PublicKeys(_ context.Context) ([]*PublicKeyData, error) {
	pubKeys := make([]*PublicKeyData, 0, len(p.allKeys)+1)
	for _, key := range p.allKeys {
		pubKeys = append(pubKeys, signingPublicKey(key))
	}
	if p.decryptionKey != nil {
		pubKeys = append(pubKeys, encryptionPublicKey(p.decryptionKey))
	}
	return pubKeys, nil
}

// GeneratingProvider generates ephemeral keys on first access.
// Suitable for development but NOT recommended for production.
type GeneratingProvider struct {
	algorithm string

	mu            sync.Mutex
	key           *SigningKeyData
	decryptionKey *DecryptionKeyData
}

// NewGeneratingProvider creates a provider that generates ephemeral keys.
// If algorithm is empty, DefaultAlgorithm (ES256) is used.
func NewGeneratingProvider(algorithm string) *GeneratingProvider {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	return &GeneratingProvider{algorithm: algorithm}
}

// SigningKey returns the signing key, generating one if needed.
func (p *GeneratingProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key == nil {
		key, err := p.generateSigningKey()
		if err != nil {
			return nil, err
		}
		slog.Warn("generated ephemeral signing key - tokens will be invalid after restart",
			"algorithm", key.Algorithm,
			"key_id", key.KeyID,
		)
		p.key = key
	}

	k := *p.key
	return &k, nil
}

// DecryptionKey returns an RSA decryption key, generating one if needed.
func (p *GeneratingProvider) DecryptionKey(_ context.Context) (*DecryptionKeyData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.decryptionKey == nil {
		rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate decryption key: %w", err)
		}
		key, err := newDecryptionKeyData(rsaKey)
		if err != nil {
			return nil, err
		}
		p.decryptionKey = key
	}

	k := *p.decryptionKey
	return &k, nil
}

// PublicKeys returns the public signing and encryption keys.
func (p *GeneratingProvider) PublicKeys(ctx context.Context) ([]*PublicKeyData, error) {
	key, err := p.SigningKey(ctx)
	if err != nil {
		return nil, err
	}
	dec, err := p.DecryptionKey(ctx)
	if err != nil {
		return nil, err
	}
	return []*PublicKeyData{signingPublicKey(key), encryptionPublicKey(dec)}, nil
}

func (p *GeneratingProvider) generateSigningKey() (*SigningKeyData, error) {
	privateKey, err := generatePrivateKey(p.algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	keyID, err := DeriveKeyID(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key ID: %w", err)
	}

	return &SigningKeyData{
		KeyID:     keyID,
		Algorithm: p.algorithm,
		Key:       privateKey,
		CreatedAt: time.Now(),
	}, nil
}

// generatePrivateKey creates a new private key for the specified algorithm.
func generatePrivateKey(algorithm string) (crypto.Signer, error) {
	switch algorithm {
	case "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512":
		return rsa.GenerateKey(rand.Reader, 2048)
	default:
		return nil, fmt.Errorf("unsupported algorithm for key generation: %s", algorithm)
	}
}

func signingPublicKey(key *SigningKeyData) *PublicKeyData {
	return &PublicKeyData{
		KeyID:     key.KeyID,
		Algorithm: key.Algorithm,
		Use:       UseSignature,
		PublicKey: key.Key.Public(),
		CreatedAt: key.CreatedAt,
	}
}

func encryptionPublicKey(key *DecryptionKeyData) *PublicKeyData {
	return &PublicKeyData{
		KeyID:     key.KeyID,
		Algorithm: key.Algorithm,
		Use:       UseEncryption,
		PublicKey: key.Key.Public(),
		CreatedAt: key.CreatedAt,
	}
}

// Compile-time interface checks.
var (
	_ KeyProvider = (*FileProvider)(nil)
	_ KeyProvider = (*GeneratingProvider)(nil)
)
