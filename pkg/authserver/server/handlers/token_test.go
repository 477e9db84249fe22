// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

func TestTokenHandler_ClientAuthentication(t *testing.T) {
	t.Parallel()

	clientCredentials := url.Values{"grant_type": {"client_credentials"}, "scope": {"read"}}

	tests := []struct {
		name       string
		form       url.Values
		basicID    string
		basicPass  string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "client_secret_basic",
			form:       clientCredentials,
			basicID:    testClientID,
			basicPass:  testClientSecret,
			wantStatus: http.StatusOK,
		},
		{
			name: "client_secret_post",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_id":     {testClientID},
				"client_secret": {testClientSecret},
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret",
			form:       clientCredentials,
			basicID:    testClientID,
			basicPass:  "nope",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_client",
		},
		{
			name:       "unknown client",
			form:       clientCredentials,
			basicID:    "nobody",
			basicPass:  "x",
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_client",
		},
		{
			name:       "no credentials",
			form:       clientCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_client",
		},
		{
			name: "secret missing for confidential client",
			form: url.Values{
				"grant_type": {"client_credentials"},
				"client_id":  {testClientID},
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_client",
		},
		{
			name: "two authentication methods",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_secret": {testClientSecret},
			},
			basicID:    testClientID,
			basicPass:  testClientSecret,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name: "public client with a secret",
			form: url.Values{
				"grant_type":    {"authorization_code"},
				"code":          {"whatever"},
				"client_id":     {testPublicClientID},
				"client_secret": {"guess"},
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_client",
		},
		{
			name: "public client authenticates with its id",
			form: url.Values{
				"grant_type": {"authorization_code"},
				"code":       {"unknown"},
				"client_id":  {testPublicClientID},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_grant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			rec := f.token(t, tt.form, tt.basicID, tt.basicPass)
			require.Equal(t, tt.wantStatus, rec.Code, "body: %s", rec.Body.String())
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
			if tt.wantCode == "" {
				return
			}
			assert.Equal(t, tt.wantCode, decodeJSON[errorResponse](t, rec).Error)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestTokenHandler_FormEncodedBasicCredentials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// A colon in the client ID only survives Basic auth when form-encoded.
	const clientID, secret = "svc:reporting", "s3cr3t/+&"
	require.NoError(t, f.store.RegisterClient(context.Background(), &storage.ClientRecord{
		ClientID:     clientID,
		ClientSecret: secret,
		Scope:        []string{"read"},
		GrantTypes:   []string{"client_credentials"},
	}))

	rec := f.token(t, url.Values{"grant_type": {"client_credentials"}}, clientID, secret)
	assert.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func TestTokenHandler_ClientCredentialsResponse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.token(t, url.Values{"grant_type": {"client_credentials"}, "scope": {"read write"}}, testClientID, testClientSecret)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeJSON[server.TokenResponse](t, rec)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "read write", resp.Scope)
	assert.Positive(t, resp.ExpiresIn)
	assert.Empty(t, resp.RefreshToken)
	assert.Empty(t, resp.IDToken)
}

func TestTokenHandler_GrantErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		form     url.Values
		wantCode string
	}{
		{name: "unsupported grant", form: url.Values{"grant_type": {"password"}}, wantCode: "unsupported_grant_type"},
		{name: "scope outside client", form: url.Values{"grant_type": {"client_credentials"}, "scope": {"admin"}}, wantCode: "invalid_scope"},
		{name: "unknown refresh token", form: url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"nope"}}, wantCode: "invalid_grant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			rec := f.token(t, tt.form, testClientID, testClientSecret)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", rec.Body.String())
			body := decodeJSON[errorResponse](t, rec)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.NotEmpty(t, body.ErrorDescription)
		})
	}
}

func TestTokenHandler_RateLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(p *Params) {
		p.TokenRateLimit = rate.Every(24 * time.Hour)
		p.TokenRateBurst = 1
	})

	form := url.Values{"grant_type": {"client_credentials"}}
	require.Equal(t, http.StatusOK, f.token(t, form, testClientID, testClientSecret).Code)

	rec := f.token(t, form, testClientID, testClientSecret)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "temporarily_unavailable", decodeJSON[errorResponse](t, rec).Error)

	// Buckets are per client: the public client is unaffected.
	rec = f.token(t, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {"unknown"},
		"client_id":  {testPublicClientID},
	}, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_RefreshFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got, _ := redirectParams(t, f.consentTo(t, codeRequest(testClientID, "openid", "offline_access"), ""))
	rec := f.token(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {got.Get("code")},
		"redirect_uri": {testRedirect},
	}, testClientID, testClientSecret)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	first := decodeJSON[server.TokenResponse](t, rec)
	require.NotEmpty(t, first.RefreshToken)

	rec = f.token(t, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	}, testClientID, testClientSecret)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	second := decodeJSON[server.TokenResponse](t, rec)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken, "refresh tokens rotate")
	assert.NotEmpty(t, second.IDToken)
}

func TestTokenHandler_RedirectURIMustBeRepeated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("sent at authorization", func(t *testing.T) {
		t.Parallel()
		got, _ := redirectParams(t, f.consentTo(t, codeRequest(testClientID, "openid"), ""))
		rec := f.token(t, url.Values{
			"grant_type": {"authorization_code"},
			"code":       {got.Get("code")},
		}, testClientID, testClientSecret)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_grant", decodeJSON[errorResponse](t, rec).Error)
	})

	t.Run("omitted at authorization", func(t *testing.T) {
		t.Parallel()
		params := codeRequest(testClientID, "openid")
		params.Del("redirect_uri")
		got, _ := redirectParams(t, f.consentTo(t, params, ""))
		rec := f.token(t, url.Values{
			"grant_type": {"authorization_code"},
			"code":       {got.Get("code")},
		}, testClientID, testClientSecret)
		assert.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	})
}
