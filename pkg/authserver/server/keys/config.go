// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

// Config holds configuration for creating a KeyProvider.
type Config struct {
	// KeyDir is the directory containing PEM-encoded private key files.
	// All key filenames are relative to this directory.
	KeyDir string `mapstructure:"key_dir" yaml:"key_dir"`

	// SigningKeyFile is the filename of the primary signing key.
	// If empty with KeyDir set, NewProviderFromConfig returns an error.
	SigningKeyFile string `mapstructure:"signing_key_file" yaml:"signing_key_file"`

	// FallbackKeyFiles are additional keys published in the JWKS for
	// verification of tokens signed before a rotation. They never sign.
	FallbackKeyFiles []string `mapstructure:"fallback_key_files" yaml:"fallback_key_files"`

	// DecryptionKeyFile is the key clients encrypt request objects to.
	// Optional; without it encrypted request objects are rejected.
	DecryptionKeyFile string `mapstructure:"decryption_key_file" yaml:"decryption_key_file"`

	// Algorithm is the signing algorithm for generated keys.
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

// NewProviderFromConfig creates a KeyProvider based on the configuration.
//
// Behavior:
//   - If KeyDir is set: load keys from the directory
//   - Otherwise: return a GeneratingProvider (ephemeral keys for development)
func NewProviderFromConfig(cfg Config) (KeyProvider, error) {
	if cfg.KeyDir != "" {
		return NewFileProvider(cfg)
	}
	return NewGeneratingProvider(cfg.Algorithm), nil
}
