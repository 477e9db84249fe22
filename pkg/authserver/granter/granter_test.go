// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package granter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-idp/pkg/authserver/granter"
	"github.com/stacklok/toolhive-idp/pkg/authserver/granter/mocks"
	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

const (
	testIssuer   = "https://idp.example.com"
	testRedirect = "https://client.example.org/cb"
)

var allGrants = []string{
	"authorization_code", "refresh_token", "client_credentials",
	string(server.GrantTypeChained), string(server.GrantTypeJWTBearer),
}

type fixture struct {
	store    *storage.MemoryStorage
	provider *keys.GeneratingProvider
	issuer   *issuance.Service
	chain    *granter.Chain
	metrics  *metrics.Metrics
	client   *storage.ClientRecord
}

func newFixture(t *testing.T, opts ...granter.HandlersOption) *fixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	provider := keys.NewGeneratingProvider(keys.DefaultAlgorithm)
	m := metrics.New(prometheus.NewRegistry())
	svc := issuance.NewService(testIssuer, store, store, crypto.NewServerSigner(provider), issuance.WithMetrics(m))

	chain := granter.NewChain(granter.WithChainMetrics(m))
	granter.NewHandlers(store, svc, opts...).Register(chain)

	return &fixture{
		store:    store,
		provider: provider,
		issuer:   svc,
		chain:    chain,
		metrics:  m,
		client: &storage.ClientRecord{
			ClientID:     "client",
			ClientSecret: "secret",
			Scope:        []string{"openid", "profile", "offline_access", "read", "write", "admin"},
			RedirectURIs: []string{testRedirect, "https://client.example.org/alt"},
			GrantTypes:   allGrants,
		},
	}
}

func (f *fixture) grant(t *testing.T, client *storage.ClientRecord, form url.Values) (*server.TokenResponse, error) {
	t.Helper()
	return f.chain.Grant(context.Background(), granter.NewTokenRequest(form), client)
}

func user(subject string) *server.Authentication {
	return &server.Authentication{Subject: subject, AuthTime: time.Now().Add(-time.Minute), Authenticated: true}
}

// seedCode stores a code for an approved request of client by alice.
func (f *fixture) seedCode(t *testing.T, clientID string, scopes []string, mutate func(*server.AuthorizationRequest)) string {
	t.Helper()
	ctx := context.Background()

	req := server.NewAuthorizationRequest()
	req.ClientID = clientID
	req.RedirectURI = testRedirect
	req.ResponseTypes = server.SplitArguments("code")
	req.SetScope(scopes)
	req.Approved = true
	if mutate != nil {
		mutate(req)
	}

	holder := &storage.AuthenticationHolder{Request: *req, User: user("alice")}
	require.NoError(t, f.store.SaveAuthenticationHolder(ctx, holder))

	code := "code-" + holder.ID
	require.NoError(t, f.store.CreateAuthorizationCode(ctx, &storage.AuthorizationCode{
		Code:                   code,
		AuthenticationHolderID: holder.ID,
		Expiration:             time.Now().Add(time.Minute),
	}))
	return code
}

// seedToken issues an access token for alice with scopes.
func (f *fixture) seedToken(t *testing.T, scopes ...string) *storage.AccessToken {
	t.Helper()
	ctx := context.Background()

	req := server.NewAuthorizationRequest()
	req.ClientID = f.client.ClientID
	req.SetScope(scopes)
	req.Approved = true
	holder := &storage.AuthenticationHolder{Request: *req, User: user("alice")}
	require.NoError(t, f.store.SaveAuthenticationHolder(ctx, holder))

	token, err := f.issuer.CreateAccessToken(ctx, holder, f.client, issuance.TokenOptions{})
	require.NoError(t, err)
	return token
}

// withUnusableEncryption asks for encrypted ID tokens, which the fixture's
// issuance service cannot produce.
func withUnusableEncryption(client *storage.ClientRecord) *storage.ClientRecord {
	c := client.Clone()
	c.JWKS = `{"keys":[]}`
	c.IDTokenEncryptedResponseAlg = string(jose.RSA_OAEP_256)
	c.IDTokenEncryptedResponseEnc = string(jose.A128GCM)
	return c
}

func codeForm(code string) url.Values {
	return url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirect},
	}
}

func TestChain_Dispatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Empty(t, cmp.Diff([]string{
		"authorization_code", "client_credentials", "refresh_token",
		string(server.GrantTypeJWTBearer), string(server.GrantTypeChained),
	}, f.chain.GrantTypes()))

	_, err := f.grant(t, f.client, url.Values{"grant_type": {"password"}})
	assert.Equal(t, "unsupported_grant_type", server.ErrorCode(err))

	restricted := f.client.Clone()
	restricted.GrantTypes = []string{"authorization_code"}
	_, err = f.grant(t, restricted, url.Values{"grant_type": {"client_credentials"}})
	assert.Equal(t, "unauthorized_client", server.ErrorCode(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrantErrors.WithLabelValues("password", "unsupported_grant_type")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GrantErrors.WithLabelValues("client_credentials", "unauthorized_client")))
}

func TestAuthorizationCode(t *testing.T) {
	t.Parallel()

	t.Run("issues access, refresh and ID tokens", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "client", []string{"openid", "offline_access"}, nil)

		resp, err := f.grant(t, f.client, codeForm(code))
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.NotEmpty(t, resp.IDToken)
		assert.Equal(t, storage.TokenTypeBearer, resp.TokenType)
		assert.Equal(t, "openid offline_access", resp.Scope)
		assert.InDelta(t, issuance.DefaultAccessTokenValidity.Seconds(), resp.ExpiresIn, 5)
	})

	t.Run("no refresh token without offline_access", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "client", []string{"profile"}, nil)

		resp, err := f.grant(t, f.client, codeForm(code))
		require.NoError(t, err)
		assert.Empty(t, resp.RefreshToken)
		assert.Empty(t, resp.IDToken)
	})

	t.Run("code is single use", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "client", []string{"openid"}, nil)

		_, err := f.grant(t, f.client, codeForm(code))
		require.NoError(t, err)
		_, err = f.grant(t, f.client, codeForm(code))
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})

	t.Run("code of another client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "someone-else", []string{"openid"}, nil)

		_, err := f.grant(t, f.client, codeForm(code))
		assert.Equal(t, "invalid_client", server.ErrorCode(err))
	})

	t.Run("redirect mismatch", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "client", []string{"openid"}, nil)

		form := codeForm(code)
		form.Set("redirect_uri", "https://client.example.org/alt")
		_, err := f.grant(t, f.client, form)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
		assert.ErrorIs(t, err, server.ErrRedirectMismatch)
	})

	t.Run("redirect may be omitted with a single registered uri", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		single := f.client.Clone()
		single.RedirectURIs = []string{testRedirect}
		code := f.seedCode(t, "client", []string{"openid"}, nil)

		form := codeForm(code)
		form.Del("redirect_uri")
		_, err := f.grant(t, single, form)
		require.NoError(t, err)
	})

	t.Run("no token is stored when the ID token fails", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		code := f.seedCode(t, "client", []string{"openid", "offline_access"}, nil)
		before := f.store.Stats()

		_, err := f.grant(t, withUnusableEncryption(f.client), codeForm(code))
		assert.Equal(t, "server_error", server.ErrorCode(err))

		after := f.store.Stats()
		assert.Equal(t, before.AccessTokens, after.AccessTokens)
		assert.Equal(t, before.RefreshTokens, after.RefreshTokens)
	})

	t.Run("redirect required when the authorization request sent it", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		single := f.client.Clone()
		single.RedirectURIs = []string{testRedirect}
		code := f.seedCode(t, "client", []string{"openid"}, func(r *server.AuthorizationRequest) {
			r.SetExtension(server.ExtRequestedRedirectURI, testRedirect)
		})

		form := codeForm(code)
		form.Del("redirect_uri")
		_, err := f.grant(t, single, form)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
		assert.ErrorIs(t, err, server.ErrRedirectMismatch)
	})

	t.Run("unknown code", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.grant(t, f.client, codeForm("nope"))
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})
}

func TestAuthorizationCode_PKCE(t *testing.T) {
	t.Parallel()

	verifier := crypto.GeneratePKCEVerifier()

	tests := []struct {
		name      string
		method    string
		challenge string
		verifier  string
		wantErr   bool
	}{
		{"S256", crypto.PKCEChallengeMethodS256, crypto.ComputePKCEChallenge(verifier), verifier, false},
		{"plain", crypto.PKCEChallengeMethodPlain, verifier, verifier, false},
		{"wrong verifier", crypto.PKCEChallengeMethodS256, crypto.ComputePKCEChallenge(verifier), crypto.GeneratePKCEVerifier(), true},
		{"missing verifier", crypto.PKCEChallengeMethodS256, crypto.ComputePKCEChallenge(verifier), "", true},
		{"verifier without challenge", "", "", verifier, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			code := f.seedCode(t, "client", []string{"openid"}, func(r *server.AuthorizationRequest) {
				r.SetExtension(server.ExtCodeChallenge, tt.challenge)
				r.SetExtension(server.ExtCodeChallengeMethod, tt.method)
			})

			form := codeForm(code)
			if tt.verifier != "" {
				form.Set("code_verifier", tt.verifier)
			}
			_, err := f.grant(t, f.client, form)
			if tt.wantErr {
				assert.Equal(t, "invalid_grant", server.ErrorCode(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	refreshFor := func(t *testing.T, f *fixture, client *storage.ClientRecord) string {
		t.Helper()
		code := f.seedCode(t, client.ClientID, []string{"openid", "offline_access", "read"}, nil)
		resp, err := f.grant(t, client, codeForm(code))
		require.NoError(t, err)
		require.NotEmpty(t, resp.RefreshToken)
		return resp.RefreshToken
	}
	refreshForm := func(token string, scope string) url.Values {
		form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {token}}
		if scope != "" {
			form.Set("scope", scope)
		}
		return form
	}

	t.Run("rotates the refresh token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		old := refreshFor(t, f, f.client)

		resp, err := f.grant(t, f.client, refreshForm(old, ""))
		require.NoError(t, err)
		assert.NotEqual(t, old, resp.RefreshToken)
		assert.NotEmpty(t, resp.IDToken)
		assert.Equal(t, "openid offline_access read", resp.Scope)

		_, err = f.grant(t, f.client, refreshForm(old, ""))
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))

		_, err = f.grant(t, f.client, refreshForm(resp.RefreshToken, ""))
		require.NoError(t, err)
	})

	t.Run("reuse keeps the refresh token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.client.ReuseRefreshToken = true
		old := refreshFor(t, f, f.client)

		resp, err := f.grant(t, f.client, refreshForm(old, "read"))
		require.NoError(t, err)
		assert.Equal(t, old, resp.RefreshToken)
		assert.Equal(t, "read", resp.Scope)
		assert.Empty(t, resp.IDToken, "no ID token without openid")
	})

	t.Run("refresh token survives a failed ID token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		old := refreshFor(t, f, f.client)
		before := f.store.Stats()

		_, err := f.grant(t, withUnusableEncryption(f.client), refreshForm(old, ""))
		assert.Equal(t, "server_error", server.ErrorCode(err))
		assert.Equal(t, before, f.store.Stats())

		_, err = f.grant(t, f.client, refreshForm(old, ""))
		require.NoError(t, err)
	})

	t.Run("scope cannot grow", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		old := refreshFor(t, f, f.client)

		_, err := f.grant(t, f.client, refreshForm(old, "read write"))
		assert.Equal(t, "invalid_scope", server.ErrorCode(err))
	})

	t.Run("token of another client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		old := refreshFor(t, f, f.client)

		other := f.client.Clone()
		other.ClientID = "other"
		_, err := f.grant(t, other, refreshForm(old, ""))
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})
}

func TestClientCredentials(t *testing.T) {
	t.Parallel()

	t.Run("defaults to the client scope", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.client.Scope = append(f.client.Scope, server.ScopeRegistrationToken)

		resp, err := f.grant(t, f.client, url.Values{"grant_type": {"client_credentials"}})
		require.NoError(t, err)
		assert.Equal(t, "openid profile offline_access read write admin", resp.Scope)
		assert.Empty(t, resp.IDToken, "the client is not an end-user")

		stored, err := f.store.GetAccessToken(context.Background(), resp.AccessToken)
		require.NoError(t, err)
		holder, err := f.store.GetAuthenticationHolder(context.Background(), stored.AuthenticationHolderID)
		require.NoError(t, err)
		assert.Nil(t, holder.User)
	})

	t.Run("scope outside the client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.grant(t, f.client, url.Values{"grant_type": {"client_credentials"}, "scope": {"read delete"}})
		assert.Equal(t, "invalid_scope", server.ErrorCode(err))
	})

	t.Run("public client", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		public := f.client.Clone()
		public.ClientSecret = ""
		_, err := f.grant(t, public, url.Values{"grant_type": {"client_credentials"}})
		assert.Equal(t, "invalid_client", server.ErrorCode(err))
	})
}

func TestChained(t *testing.T) {
	t.Parallel()

	chainForm := func(token, scope string) url.Values {
		form := url.Values{"grant_type": {string(server.GrantTypeChained)}, "token": {token}}
		if scope != "" {
			form.Set("scope", scope)
		}
		return form
	}

	tests := []struct {
		name      string
		scope     string
		wantScope string
		wantErr   string
	}{
		{name: "no scope inherits the original", wantScope: "read write"},
		{name: "narrower scope", scope: "read", wantScope: "read"},
		{name: "full client scope inherits the original", scope: "openid profile offline_access read write admin", wantScope: "read write"},
		{name: "scope outside the original", scope: "admin", wantErr: "invalid_scope"},
		{name: "partly outside the original", scope: "read admin", wantErr: "invalid_scope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			original := f.seedToken(t, "read", "write")

			resp, err := f.grant(t, f.client, chainForm(original.Value, tt.scope))
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, server.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScope, resp.Scope)

			ctx := context.Background()
			chained, err := f.store.GetAccessToken(ctx, resp.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, original.AuthenticationHolderID, chained.AuthenticationHolderID)

			_, err = f.store.GetAccessToken(ctx, original.Value)
			assert.NoError(t, err, "the original token stays valid")
		})
	}

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.grant(t, f.client, chainForm("not-a-token", ""))
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})
}

func TestJWTBearer_IDTokenRotation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	code := f.seedCode(t, "client", []string{"openid"}, nil)
	first, err := f.grant(t, f.client, codeForm(code))
	require.NoError(t, err)
	require.NotEmpty(t, first.IDToken)

	form := url.Values{"grant_type": {string(server.GrantTypeJWTBearer)}, "assertion": {first.IDToken}}

	other := f.client.Clone()
	other.ClientID = "other"
	_, err = f.grant(t, other, form)
	assert.Equal(t, "invalid_client", server.ErrorCode(err))

	rotated, err := f.grant(t, f.client, form)
	require.NoError(t, err)
	assert.Equal(t, first.AccessToken, rotated.AccessToken)
	require.NotEmpty(t, rotated.IDToken)
	assert.NotEqual(t, first.IDToken, rotated.IDToken)

	_, err = f.store.GetAccessToken(ctx, first.IDToken)
	assert.ErrorIs(t, err, storage.ErrNotFound, "the old ID token is revoked")

	access, err := f.store.GetAccessToken(ctx, first.AccessToken)
	require.NoError(t, err)
	newRecord, err := f.store.GetAccessToken(ctx, rotated.IDToken)
	require.NoError(t, err)
	assert.Equal(t, newRecord.ID, access.IDTokenID)

	// The old ID token is unknown now, so it falls through to the assertion
	// validator, which rejects everything by default.
	_, err = f.grant(t, f.client, form)
	assert.Equal(t, "invalid_grant", server.ErrorCode(err))
}

func TestJWTBearer_Assertion(t *testing.T) {
	t.Parallel()

	form := url.Values{
		"grant_type": {string(server.GrantTypeJWTBearer)},
		"assertion":  {"header.payload.signature"},
		"scope":      {"openid read"},
	}

	t.Run("validated assertion", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		validator := mocks.NewMockAssertionValidator(ctrl)
		validator.EXPECT().ValidateAssertion(gomock.Any(), "header.payload.signature").
			Return(&granter.AssertionClaims{Issuer: "https://partner.example.com", Subject: "bob"}, nil)

		f := newFixture(t, granter.WithAssertionValidator(validator))
		resp, err := f.grant(t, f.client, form)
		require.NoError(t, err)
		assert.Equal(t, "openid read", resp.Scope)
		assert.NotEmpty(t, resp.IDToken)

		payload, err := crypto.NewServerSigner(f.provider).Verify(context.Background(), resp.AccessToken)
		require.NoError(t, err)
		var claims map[string]any
		require.NoError(t, json.Unmarshal(payload, &claims))
		assert.Equal(t, "bob", claims["sub"])
	})

	t.Run("rejected assertion", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		validator := mocks.NewMockAssertionValidator(ctrl)
		validator.EXPECT().ValidateAssertion(gomock.Any(), gomock.Any()).Return(nil, errors.New("bad signature"))

		f := newFixture(t, granter.WithAssertionValidator(validator))
		_, err := f.grant(t, f.client, form)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})

	t.Run("scope outside the client", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		validator := mocks.NewMockAssertionValidator(ctrl)
		validator.EXPECT().ValidateAssertion(gomock.Any(), gomock.Any()).
			Return(&granter.AssertionClaims{Subject: "bob"}, nil)

		f := newFixture(t, granter.WithAssertionValidator(validator))
		bad := url.Values{"grant_type": form["grant_type"], "assertion": form["assertion"], "scope": {"delete"}}
		_, err := f.grant(t, f.client, bad)
		assert.Equal(t, "invalid_scope", server.ErrorCode(err))
	})

	t.Run("access token of another client", func(t *testing.T) {
		t.Parallel()
		self := &granter.SelfAssertionValidator{
			Issuer:    testIssuer,
			Audiences: []string{testIssuer, testIssuer + "/oauth/token"},
		}
		f := newFixture(t, granter.WithAssertionValidator(self))
		self.Signer = crypto.NewServerSigner(f.provider)
		stolen := f.seedToken(t, "openid", "read")

		attacker := f.client.Clone()
		attacker.ClientID = "attacker"
		resp, err := f.grant(t, attacker, url.Values{
			"grant_type": {string(server.GrantTypeJWTBearer)},
			"assertion":  {stolen.Value},
			"scope":      {"openid read"},
		})
		assert.Nil(t, resp)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})

	t.Run("assertion bound to another client", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		validator := mocks.NewMockAssertionValidator(ctrl)
		validator.EXPECT().ValidateAssertion(gomock.Any(), gomock.Any()).
			Return(&granter.AssertionClaims{
				Issuer:  testIssuer,
				Subject: "alice",
				Claims:  map[string]any{"client_id": "client"},
			}, nil)

		f := newFixture(t, granter.WithAssertionValidator(validator))
		other := f.client.Clone()
		other.ClientID = "other"
		_, err := f.grant(t, other, form)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
	})

	t.Run("null validator", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.grant(t, f.client, form)
		assert.Equal(t, "invalid_grant", server.ErrorCode(err))
		assert.ErrorIs(t, err, granter.ErrAssertionRejected)
	})
}

func signedAssertion(t *testing.T, provider keys.KeyProvider, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	token, err := crypto.NewServerSigner(provider).Sign(context.Background(), "", payload)
	require.NoError(t, err)
	return token
}

func TestSelfAssertionValidator(t *testing.T) {
	t.Parallel()

	provider := keys.NewGeneratingProvider(keys.DefaultAlgorithm)
	v := &granter.SelfAssertionValidator{
		Issuer:    testIssuer,
		Signer:    crypto.NewServerSigner(provider),
		Audiences: []string{testIssuer, testIssuer + "/oauth/token"},
	}
	exp := time.Now().Add(time.Minute).Unix()

	tests := []struct {
		name    string
		claims  map[string]any
		valid   bool
		wantErr error
	}{
		{name: "valid", claims: map[string]any{"iss": testIssuer, "sub": "alice", "aud": testIssuer, "exp": exp}, valid: true},
		{name: "token endpoint audience", claims: map[string]any{"iss": testIssuer, "sub": "alice", "aud": []string{"other", testIssuer + "/oauth/token"}, "exp": exp}, valid: true},
		{name: "foreign issuer", claims: map[string]any{"iss": "https://evil.example.com", "sub": "alice", "aud": testIssuer, "exp": exp}, wantErr: granter.ErrUntrustedIssuer},
		{name: "no audience", claims: map[string]any{"iss": testIssuer, "sub": "alice", "exp": exp}, wantErr: granter.ErrAudienceMismatch},
		{name: "client audience", claims: map[string]any{"iss": testIssuer, "sub": "alice", "aud": []string{"client"}, "client_id": "client", "exp": exp}, wantErr: granter.ErrAudienceMismatch},
		{name: "expired", claims: map[string]any{"iss": testIssuer, "sub": "alice", "aud": testIssuer, "exp": time.Now().Add(-time.Minute).Unix()}},
		{name: "no exp", claims: map[string]any{"iss": testIssuer, "sub": "alice", "aud": testIssuer}},
		{name: "no subject", claims: map[string]any{"iss": testIssuer, "aud": testIssuer, "exp": exp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := v.ValidateAssertion(context.Background(), signedAssertion(t, provider, tt.claims))
			if tt.valid {
				require.NoError(t, err)
				assert.Equal(t, "alice", claims.Subject)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("issued access token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		token := f.seedToken(t, "openid", "read")
		self := &granter.SelfAssertionValidator{
			Issuer:    testIssuer,
			Signer:    crypto.NewServerSigner(f.provider),
			Audiences: []string{testIssuer, testIssuer + "/oauth/token"},
		}
		_, err := self.ValidateAssertion(context.Background(), token.Value)
		assert.ErrorIs(t, err, granter.ErrAudienceMismatch)
	})

	t.Run("no configured audience", func(t *testing.T) {
		t.Parallel()
		bare := &granter.SelfAssertionValidator{Issuer: testIssuer, Signer: crypto.NewServerSigner(provider)}
		_, err := bare.ValidateAssertion(context.Background(),
			signedAssertion(t, provider, map[string]any{"iss": testIssuer, "sub": "alice", "aud": testIssuer, "exp": exp}))
		assert.ErrorIs(t, err, granter.ErrAudienceMismatch)
	})

	t.Run("signed by another key", func(t *testing.T) {
		t.Parallel()
		stranger := keys.NewGeneratingProvider(keys.DefaultAlgorithm)
		_, err := v.ValidateAssertion(context.Background(),
			signedAssertion(t, stranger, map[string]any{"iss": testIssuer, "sub": "alice", "aud": testIssuer, "exp": exp}))
		require.Error(t, err)
	})
}

func TestWhitelistedIssuerAssertionValidator(t *testing.T) {
	t.Parallel()

	partner := keys.NewGeneratingProvider("RS256")
	pubs, err := partner.PublicKeys(context.Background())
	require.NoError(t, err)
	set := jose.JSONWebKeySet{}
	for _, k := range pubs {
		if k.Use == keys.UseSignature {
			set.Keys = append(set.Keys, jose.JSONWebKey{Key: k.PublicKey, KeyID: k.KeyID, Algorithm: k.Algorithm, Use: k.Use})
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	resolver, err := crypto.NewKeySetResolver(ctx, srv.Client())
	require.NoError(t, err)

	const partnerIssuer = "https://partner.example.com"
	v := &granter.WhitelistedIssuerAssertionValidator{
		Issuers:   map[string]string{partnerIssuer: srv.URL + "/jwks.json"},
		KeySets:   resolver,
		Audiences: []string{testIssuer, testIssuer + "/oauth/token"},
	}
	exp := time.Now().Add(time.Minute).Unix()

	claims, err := v.ValidateAssertion(ctx,
		signedAssertion(t, partner, map[string]any{"iss": partnerIssuer, "sub": "bob", "aud": testIssuer + "/oauth/token", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, partnerIssuer, claims.Issuer)

	_, err = v.ValidateAssertion(ctx,
		signedAssertion(t, partner, map[string]any{"iss": "https://unknown.example.com", "sub": "bob", "aud": testIssuer, "exp": exp}))
	assert.ErrorIs(t, err, granter.ErrUntrustedIssuer)

	impostor := keys.NewGeneratingProvider("RS256")
	_, err = v.ValidateAssertion(ctx,
		signedAssertion(t, impostor, map[string]any{"iss": partnerIssuer, "sub": "bob", "aud": testIssuer, "exp": exp}))
	assert.ErrorIs(t, err, crypto.ErrKeyNotFound)

	_, err = v.ValidateAssertion(ctx,
		signedAssertion(t, partner, map[string]any{"iss": partnerIssuer, "sub": "bob", "aud": "https://elsewhere.example.com", "exp": exp}))
	assert.ErrorIs(t, err, granter.ErrAudienceMismatch)
}

func TestScopeValidators(t *testing.T) {
	t.Parallel()

	client := &storage.ClientRecord{ClientID: "client", Scope: []string{"openid", "files"}}
	request := func(method string, scopes ...string) *server.AuthorizationRequest {
		r := server.NewAuthorizationRequest()
		r.ClientID = "client"
		r.ResponseTypes = server.SplitArguments("code")
		r.SetScope(scopes)
		r.SetExtension(server.ExtCodeChallengeMethod, method)
		return r
	}
	catalog := scope.NewCatalog(scope.SystemScope{Value: "openid"}, scope.SystemScope{Value: "files", Structured: true})

	t.Run("pkce", func(t *testing.T) {
		t.Parallel()
		v := granter.PKCEScopeValidator{}
		require.NoError(t, v.ValidateScope(client, request("", "openid")))
		assert.Equal(t, "invalid_scope", server.ErrorCode(v.ValidateScope(client, request("", "openid", "email"))))
		assert.Equal(t, "invalid_scope", server.ErrorCode(v.ValidateScope(client, request("", "files:/tmp"))))

		strict := client.Clone()
		strict.CodeChallengeMethod = crypto.PKCEChallengeMethodS256
		require.NoError(t, v.ValidateScope(strict, request("S256", "openid")))
		assert.Equal(t, "invalid_request", server.ErrorCode(v.ValidateScope(strict, request("plain", "openid"))))
		assert.Equal(t, "invalid_request", server.ErrorCode(v.ValidateScope(strict, request("", "openid"))))

		tokenOnly := request("", "openid")
		tokenOnly.ResponseTypes = server.SplitArguments("token")
		require.NoError(t, v.ValidateScope(strict, tokenOnly))
	})

	t.Run("structured", func(t *testing.T) {
		t.Parallel()
		v := granter.StructuredScopeValidator{Catalog: catalog}
		require.NoError(t, v.ValidateScope(client, request("", "openid", "files:/home/alice")))
		assert.Equal(t, "invalid_scope", server.ErrorCode(v.ValidateScope(client, request("", "email"))))
	})
}
