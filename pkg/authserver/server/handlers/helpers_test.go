// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-idp/pkg/authserver/consent"
	"github.com/stacklok/toolhive-idp/pkg/authserver/granter"
	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

const (
	testIssuer         = "https://idp.example.com"
	testRedirect       = "https://client.example.org/cb"
	testNativeRedirect = "http://127.0.0.1:9000/cb"
	testClientID       = "web-client"
	testClientSecret   = "web-secret"
	testPublicClientID = "native-client"
	testUser           = "alice"
)

type fixture struct {
	store    *storage.MemoryStorage
	provider *keys.GeneratingProvider
	handler  *Handler
	router   http.Handler
}

// newFixture wires a Handler over memory storage with a confidential and a
// public client registered. mutate may adjust the Params before construction.
func newFixture(t *testing.T, mutate ...func(*Params)) *fixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	t.Cleanup(func() { _ = store.Close() })

	provider := keys.NewGeneratingProvider(keys.DefaultAlgorithm)
	catalog := scope.NewCatalog(append(scope.DefaultScopes(),
		scope.SystemScope{Value: "read", Description: "read your files"},
		scope.SystemScope{Value: "write", Description: "change your files"},
		scope.SystemScope{Value: "files", Description: "a folder", Structured: true, StructuredParamDescription: "folder path"},
	)...)

	svc := issuance.NewService(testIssuer, store, store, crypto.NewServerSigner(provider),
		issuance.WithSymmetricKeyCache(crypto.NewSymmetricKeyCache(crypto.DefaultSymmetricCacheTTL)))
	chain := granter.NewChain()
	granter.NewHandlers(store, svc).Register(chain)

	p := Params{
		Issuer:    testIssuer,
		Storage:   store,
		Processor: request.NewProcessor(store, store),
		Consent:   consent.NewEngine(store, store, catalog),
		Chain:     chain,
		Issuance:  svc,
		Catalog:   catalog,
		Keys:      provider,

		ScopeValidator: granter.StructuredScopeValidator{Catalog: catalog},
	}
	for _, m := range mutate {
		m(&p)
	}
	h := NewHandler(p)

	ctx := context.Background()
	require.NoError(t, store.RegisterClient(ctx, &storage.ClientRecord{
		ClientID:      testClientID,
		ClientSecret:  testClientSecret,
		ClientName:    "Web Client",
		Scope:         []string{"openid", "profile", "email", "offline_access", "read", "write", "files"},
		RedirectURIs:  []string{testRedirect},
		GrantTypes:    []string{"authorization_code", "refresh_token", "client_credentials", "implicit"},
		ResponseTypes: []string{"code", "token", "id_token token", "code id_token"},
	}))
	require.NoError(t, store.RegisterClient(ctx, &storage.ClientRecord{
		ClientID:     testPublicClientID,
		Scope:        []string{"openid", "profile"},
		RedirectURIs: []string{testNativeRedirect},
	}))

	return &fixture{store: store, provider: provider, handler: h, router: h.Routes()}
}

// withUser sets the proxy identity headers for subject, authenticated a
// minute ago.
func withUser(r *http.Request, subject string) {
	if subject == "" {
		return
	}
	r.Header.Set(DefaultUserHeader, subject)
	r.Header.Set(DefaultAuthTimeHeader, strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10))
}

func (f *fixture) authorize(t *testing.T, params url.Values, subject string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+params.Encode(), nil)
	withUser(r, subject)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) postConsent(t *testing.T, form url.Values, subject string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	withUser(r, subject)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

// token posts form to the token endpoint, authenticating with HTTP Basic
// when clientID is set.
func (f *fixture) token(t *testing.T, form url.Values, clientID, secret string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		r.SetBasicAuth(url.QueryEscape(clientID), url.QueryEscape(secret))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func codeRequest(clientID string, scopes ...string) url.Values {
	return url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {testRedirect},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {"af0ifjsldkj"},
	}
}

// redirectParams parses the response parameters of a redirect, from the
// fragment when there is one and from the query otherwise.
func redirectParams(t *testing.T, rec *httptest.ResponseRecorder) (url.Values, bool) {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code, "body: %s", rec.Body.String())
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	if loc.Fragment != "" {
		values, err := url.ParseQuery(loc.Fragment)
		require.NoError(t, err)
		return values, true
	}
	return loc.Query(), false
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// consentTo walks a request through the consent page and approves every
// listed scope.
func (f *fixture) consentTo(t *testing.T, params url.Values, remember string) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.authorize(t, params, testUser)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	page := decodeJSON[ConsentPage](t, rec)

	form := url.Values{
		consent.FormCSRF:     {page.CSRF},
		consent.FormApproval: {"true"},
	}
	if remember != "" {
		form.Set(consent.FormRemember, remember)
	}
	for _, s := range page.Scopes {
		form.Set(consent.FormScopePrefix+s.Value, "on")
	}
	return f.postConsent(t, form, testUser)
}
