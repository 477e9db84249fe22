// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/stacklok/toolhive-idp/pkg/authserver/consent"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/handlers"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

const (
	e2eClientID     = "e2e-app"
	e2eClientSecret = "e2e-secret"
	e2eRedirectURI  = "https://app.example.com/callback"
	e2eSubject      = "alice"
)

// e2eServer starts the authorization server on a loopback listener whose
// URL is also its issuer.
func e2eServer(t *testing.T) *httptest.Server {
	t.Helper()

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	cfg := Config{
		Issuer: ts.URL,
		Clients: []storage.ClientRecord{{
			ClientID:     e2eClientID,
			ClientSecret: e2eClientSecret,
			ClientName:   "End to end",
			RedirectURIs: []string{e2eRedirectURI},
			GrantTypes:   []string{"authorization_code", "refresh_token"},
			Scope:        []string{"openid", "profile", "offline_access"},
		}},
	}
	srv, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	handler = srv.Handler()

	return ts
}

// browser does not follow redirects so the test can read the callback.
func browser() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// approve opens authURL as the end-user, approves every requested scope on
// the consent page and returns the callback parameters.
func approve(t *testing.T, ts *httptest.Server, authURL string) url.Values {
	t.Helper()
	client := browser()

	req, err := http.NewRequest(http.MethodGet, authURL, nil)
	require.NoError(t, err)
	req.Header.Set(handlers.DefaultUserHeader, e2eSubject)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page handlers.ConsentPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, "End to end", page.ClientName)

	form := url.Values{
		consent.FormCSRF:     {page.CSRF},
		consent.FormApproval: {"true"},
	}
	for _, s := range page.Scopes {
		form.Set(consent.FormScopePrefix+s.Value, "on")
	}
	req, err = http.NewRequest(http.MethodPost, ts.URL+"/oauth/authorize", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(handlers.DefaultUserHeader, e2eSubject)
	resp2, err := client.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusFound, resp2.StatusCode)

	loc, err := url.Parse(resp2.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(loc.String(), e2eRedirectURI), "redirected to %s", loc)
	return loc.Query()
}

func TestIntegration_AuthorizationCodeFlowWithPKCE(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := e2eServer(t)

	provider, err := oidc.NewProvider(ctx, ts.URL)
	require.NoError(t, err, "discovery document must name its own issuer")
	verifier := provider.Verifier(&oidc.Config{ClientID: e2eClientID})

	conf := &oauth2.Config{
		ClientID:     e2eClientID,
		ClientSecret: e2eClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  e2eRedirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess},
	}

	state, nonce := uuid.NewString(), uuid.NewString()
	pkce := oauth2.GenerateVerifier()
	callback := approve(t, ts, conf.AuthCodeURL(state, oauth2.S256ChallengeOption(pkce), oidc.Nonce(nonce)))
	require.Equal(t, state, callback.Get("state"))
	require.NotEmpty(t, callback.Get("code"))

	tok, err := conf.Exchange(ctx, callback.Get("code"), oauth2.VerifierOption(pkce))
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	require.NotEmpty(t, tok.RefreshToken, "offline_access yields a refresh token")

	rawIDToken, ok := tok.Extra("id_token").(string)
	require.True(t, ok, "an id_token is returned for the openid scope")
	idToken, err := verifier.Verify(ctx, rawIDToken)
	require.NoError(t, err)
	assert.Equal(t, e2eSubject, idToken.Subject)
	assert.Equal(t, nonce, idToken.Nonce)
	assert.Equal(t, ts.URL, idToken.Issuer)

	// The code is single use.
	_, err = conf.Exchange(ctx, callback.Get("code"), oauth2.VerifierOption(pkce))
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	// Refresh rotates both tokens.
	refreshed, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken}).Token()
	require.NoError(t, err)
	assert.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)
}

func TestIntegration_PKCEMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ts := e2eServer(t)

	provider, err := oidc.NewProvider(ctx, ts.URL)
	require.NoError(t, err)
	conf := &oauth2.Config{
		ClientID:     e2eClientID,
		ClientSecret: e2eClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  e2eRedirectURI,
		Scopes:       []string{oidc.ScopeOpenID},
	}

	callback := approve(t, ts, conf.AuthCodeURL("st", oauth2.S256ChallengeOption(oauth2.GenerateVerifier())))

	_, err = conf.Exchange(ctx, callback.Get("code"), oauth2.VerifierOption(oauth2.GenerateVerifier()))
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
}
