// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys/mocks"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestServerSigner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("sign and verify with default algorithm", func(t *testing.T) {
		t.Parallel()
		signer := NewServerSigner(keys.NewGeneratingProvider("ES256"))

		alg, err := signer.DefaultAlgorithm(ctx)
		require.NoError(t, err)
		assert.Equal(t, jose.ES256, alg)

		token, err := signer.Sign(ctx, "", []byte(`{"sub":"alice"}`))
		require.NoError(t, err)

		payload, err := signer.Verify(ctx, token)
		require.NoError(t, err)
		assert.JSONEq(t, `{"sub":"alice"}`, string(payload))
	})

	t.Run("rejects algorithm the key cannot serve", func(t *testing.T) {
		t.Parallel()
		signer := NewServerSigner(keys.NewGeneratingProvider("ES256"))

		_, err := signer.Sign(ctx, jose.RS256, []byte(`{}`))
		require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("rejects token signed by another key", func(t *testing.T) {
		t.Parallel()
		other := NewServerSigner(keys.NewGeneratingProvider("ES256"))
		token, err := other.Sign(ctx, "", []byte(`{}`))
		require.NoError(t, err)

		_, err = NewServerSigner(keys.NewGeneratingProvider("ES256")).Verify(ctx, token)
		require.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("propagates provider failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockKeyProvider(ctrl)
		provider.EXPECT().SigningKey(gomock.Any()).Return(nil, errors.New("boom"))

		_, err := NewServerSigner(provider).Sign(ctx, "", []byte(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestSymmetricKeyCache(t *testing.T) {
	t.Parallel()

	cache := NewSymmetricKeyCache(0)

	token, err := cache.Sign(testSecret, jose.HS256, []byte(`{"iss":"client"}`))
	require.NoError(t, err)
	_, err = cache.Sign(testSecret, jose.HS256, []byte(`{"iss":"client"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	jws, err := jose.ParseSigned(token, SymmetricAlgorithms)
	require.NoError(t, err)

	payload, err := cache.Verify(testSecret, jws)
	require.NoError(t, err)
	assert.JSONEq(t, `{"iss":"client"}`, string(payload))

	_, err = cache.Verify(testSecret+"x", jws)
	require.Error(t, err)

	_, err = cache.Sign("", jose.HS256, nil)
	require.ErrorIs(t, err, ErrNoClientSecret)

	_, err = cache.Sign(testSecret, jose.RS256, nil)
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	provider := keys.NewGeneratingProvider("ES256")
	dec, err := provider.DecryptionKey(ctx)
	require.NoError(t, err)

	set := &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
		{Key: dec.Key.Public(), KeyID: dec.KeyID, Use: keys.UseEncryption},
	}}
	encrypter, err := NewEncrypter(set, jose.RSA_OAEP_256, jose.A128GCM)
	require.NoError(t, err)

	token, err := Encrypt(encrypter, []byte(`{"scope":"openid"}`))
	require.NoError(t, err)

	jwe, err := ParseEncrypted(token)
	require.NoError(t, err)
	assert.Equal(t, dec.KeyID, jwe.Header.KeyID)

	payload, err := NewDecrypter(provider).Decrypt(ctx, jwe)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scope":"openid"}`, string(payload))

	_, err = NewDecrypter(keys.NewGeneratingProvider("ES256")).Decrypt(ctx, jwe)
	require.Error(t, err)
}

func TestNewEncrypterKeySelection(t *testing.T) {
	t.Parallel()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	set := &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
		{Key: &rsaKey.PublicKey, KeyID: "rsa-sig", Use: keys.UseSignature},
		{Key: &ecKey.PublicKey, KeyID: "ec-enc", Use: keys.UseEncryption},
	}}

	_, err = NewEncrypter(set, jose.ECDH_ES_A256KW, jose.A256GCM)
	require.NoError(t, err)

	_, err = NewEncrypter(set, jose.RSA_OAEP, jose.A256GCM)
	require.ErrorIs(t, err, ErrKeyNotFound)

	_, err = NewEncrypter(nil, jose.RSA_OAEP, jose.A256GCM)
	require.ErrorIs(t, err, ErrNoKeySource)
}

//nolint:paralleltest // subtests share the fetch counter
func TestKeySetResolver(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pub, err := jwk.Import(&rsaKey.PublicKey)
	require.NoError(t, err)
	require.NoError(t, pub.Set(jwk.KeyIDKey, "client-key"))
	jwxSet := jwk.NewSet()
	require.NoError(t, jwxSet.AddKey(pub))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwxSet)
	}))
	t.Cleanup(srv.Close)

	resolver, err := NewKeySetResolver(ctx, srv.Client())
	require.NoError(t, err)

	t.Run("remote", func(t *testing.T) {
		set, err := resolver.Resolve(ctx, KeySource{JWKSURI: srv.URL})
		require.NoError(t, err)
		require.Len(t, set.Key("client-key"), 1)

		_, err = resolver.Resolve(ctx, KeySource{JWKSURI: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, int32(1), hits.Load(), "second lookup must be served from cache")
	})

	t.Run("inline wins", func(t *testing.T) {
		inline, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{Key: &rsaKey.PublicKey, KeyID: "inline"}}})
		require.NoError(t, err)

		set, err := resolver.Resolve(ctx, KeySource{JWKS: string(inline), JWKSURI: srv.URL})
		require.NoError(t, err)
		require.Len(t, set.Key("inline"), 1)
	})

	t.Run("no source", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, KeySource{})
		require.ErrorIs(t, err, ErrNoKeySource)
	})
}

func TestTokenHash(t *testing.T) {
	t.Parallel()

	// OIDC Core Appendix A.4 example access token and at_hash for RS256.
	assert.Equal(t, "77QmUPtjPfzWtF2AnpK9RQ",
		TokenHash(jose.RS256, "jHkWEdUXMU1BwAsC4vtUsZwnNvTIxEl0z9K3vx5KF0Y"))
	assert.Len(t, TokenHash(jose.ES384, "token"), 32)
	assert.Len(t, TokenHash(jose.HS512, "token"), 43)
}

func TestUnsecured(t *testing.T) {
	t.Parallel()

	token, err := SignUnsecured(map[string]any{"client_id": "c1"})
	require.NoError(t, err)

	header, claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmNone, header["alg"])
	assert.Equal(t, "c1", claims["client_id"])

	_, _, err = ParseUnverified("not-a-jwt")
	require.Error(t, err)
}
