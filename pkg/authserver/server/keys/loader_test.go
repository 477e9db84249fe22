// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrivateKey(t *testing.T) {
	t.Parallel()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rsaPKCS8, err := x509.MarshalPKCS8PrivateKey(rsaKey)
	require.NoError(t, err)
	ecSEC1, err := x509.MarshalECPrivateKey(ecKey)
	require.NoError(t, err)
	edPKCS8, err := x509.MarshalPKCS8PrivateKey(edKey)
	require.NoError(t, err)

	tests := []struct {
		name    string
		pemType string
		der     []byte
		wantAlg string
		wantErr bool
	}{
		{name: "RSA PKCS1", pemType: "RSA PRIVATE KEY", der: x509.MarshalPKCS1PrivateKey(rsaKey), wantAlg: "RS256"},
		{name: "RSA PKCS8", pemType: "PRIVATE KEY", der: rsaPKCS8, wantAlg: "RS256"},
		{name: "EC SEC1", pemType: "EC PRIVATE KEY", der: ecSEC1, wantAlg: "ES384"},
		{name: "Ed25519 is rejected", pemType: "PRIVATE KEY", der: edPKCS8, wantErr: true},
		{name: "garbage", pemType: "PRIVATE KEY", der: []byte("nope"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			file := writePEM(t, dir, "key.pem", tt.pemType, tt.der)

			key, err := LoadPrivateKey(filepath.Join(dir, file))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			alg, err := DeriveAlgorithm(key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlg, alg)
		})
	}
}

func TestDeriveSigningKeyParams(t *testing.T) {
	t.Parallel()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	t.Run("derives id and algorithm", func(t *testing.T) {
		t.Parallel()
		params, err := DeriveSigningKeyParams(ecKey, "", "")
		require.NoError(t, err)
		assert.Equal(t, "ES256", params.Algorithm)

		kid, err := DeriveKeyID(ecKey)
		require.NoError(t, err)
		assert.Equal(t, kid, params.KeyID)
	})

	t.Run("keeps configured values", func(t *testing.T) {
		t.Parallel()
		params, err := DeriveSigningKeyParams(ecKey, "my-key", "ES256")
		require.NoError(t, err)
		assert.Equal(t, "my-key", params.KeyID)
	})

	t.Run("rejects incompatible algorithm", func(t *testing.T) {
		t.Parallel()
		_, err := DeriveSigningKeyParams(ecKey, "", "RS256")
		require.Error(t, err)
	})
}
