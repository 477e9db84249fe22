// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ory/fosite"

	"github.com/stacklok/toolhive-idp/pkg/authserver/consent"
	"github.com/stacklok/toolhive-idp/pkg/authserver/issuance"
	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// grantTypeImplicit labels tokens issued from the authorization endpoint.
const grantTypeImplicit = "implicit"

// ConsentPage describes the consent form the user agent must render. The
// form is posted back to POST /oauth/authorize with the field names of the
// consent package.
type ConsentPage struct {
	ClientID    string         `json:"client_id"`
	ClientName  string         `json:"client_name,omitempty"`
	RedirectURI string         `json:"redirect_uri"`
	Scopes      []ConsentScope `json:"scopes"`
	CSRF        string         `json:"csrf"`
	State       string         `json:"state,omitempty"`
	Action      string         `json:"action"`
}

// ConsentScope is one requested scope on the consent page.
type ConsentScope struct {
	Value            string `json:"value"`
	Description      string `json:"description,omitempty"`
	Structured       bool   `json:"structured,omitempty"`
	ParamDescription string `json:"param_description,omitempty"`
	Param            string `json:"param,omitempty"`
}

// AuthorizeHandler handles GET /oauth/authorize requests.
// Errors found before the redirect URI is verified are rendered as JSON and
// never sent to the redirect URI.
func (h *Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	req, err := h.processor.Prepare(ctx, r.URL.Query())
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	client, err := h.storage.GetClient(ctx, req.ClientID)
	if err != nil {
		writeOAuthError(w, clientLookupError(req.ClientID, err))
		return
	}
	redirectURI, err := request.ResolveRedirectURI(client, req.RedirectURI)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	req.SetExtension(server.ExtRequestedRedirectURI, req.RedirectURI)
	req.RedirectURI = redirectURI

	if err := h.validateAuthorizeRequest(client, req, user); err != nil {
		redirectError(w, r, req, err)
		return
	}
	if err := h.processor.RecordNonce(ctx, req); err != nil {
		writeOAuthError(w, err)
		return
	}

	decision, err := h.consent.CheckForPreApproval(ctx, req, user)
	if err != nil {
		redirectError(w, r, req, server.ServerError("Unable to evaluate consent.", err))
		return
	}
	if decision.IsApproved() {
		h.respond(w, r, client, req, user)
		return
	}
	if req.HasPrompt(server.PromptNone) {
		redirectError(w, r, req, fosite.ErrConsentRequired.WithHint("The user has not approved this client."))
		return
	}

	csrf := req.Extension(server.ExtCSRF)
	if err := h.storage.StorePendingAuthorization(ctx, csrf, req); err != nil {
		redirectError(w, r, req, server.ServerError("Unable to store the authorization request.", err))
		return
	}
	logger.Debugw("authorization request awaits consent", "client_id", client.ClientID)
	writeJSON(w, http.StatusOK, h.consentPage(client, req), true)
}

// ConsentHandler handles POST /oauth/authorize, the submitted consent form.
func (h *Handler) ConsentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, server.InvalidRequest("The consent form could not be parsed."))
		return
	}

	csrf := r.PostForm.Get(consent.FormCSRF)
	if csrf == "" {
		writeOAuthError(w, server.InvalidRequest("The csrf field is required."))
		return
	}
	req, err := h.storage.LoadPendingAuthorization(ctx, csrf)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			writeOAuthError(w, server.InvalidRequest("The authorization request is unknown or has expired."))
			return
		}
		writeOAuthError(w, server.ServerError("Unable to load the authorization request.", err))
		return
	}
	client, err := h.storage.GetClient(ctx, req.ClientID)
	if err != nil {
		writeOAuthError(w, clientLookupError(req.ClientID, err))
		return
	}

	approved, err := h.consent.UpdateAfterApproval(ctx, req, r.PostForm, user)
	if err != nil {
		redirectError(w, r, req, server.ServerError("Unable to record consent.", err))
		return
	}
	if approved.Approved {
		h.forgetPending(ctx, csrf)
		h.respond(w, r, client, approved, user)
		return
	}
	if consent.EvaluateForm(req, r.PostForm, user).Kind == consent.Denied {
		h.forgetPending(ctx, csrf)
		redirectError(w, r, req, fosite.ErrAccessDenied.WithHint("The user denied the request."))
		return
	}
	writeJSON(w, http.StatusOK, h.consentPage(client, req), true)
}

// authenticate resolves the end-user, answering login_required when there
// is no session.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*server.Authentication, bool) {
	user, err := h.authenticator.Authenticate(r)
	if err != nil {
		writeOAuthError(w, server.InvalidRequest("The user session could not be read."))
		return nil, false
	}
	if !user.IsAuthenticated() {
		writeOAuthError(w, fosite.ErrLoginRequired.WithHint("The user must authenticate first."))
		return nil, false
	}
	return user, true
}

func (h *Handler) forgetPending(ctx context.Context, csrf string) {
	if err := h.storage.DeletePendingAuthorization(ctx, csrf); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Warnw("failed to delete pending authorization", "error", err)
	}
}

func clientLookupError(clientID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return server.InvalidClientf("Client %q is not registered.", clientID)
	}
	return server.ServerError("Unable to load the client.", err)
}

func (h *Handler) validateAuthorizeRequest(
	client *storage.ClientRecord, req *server.AuthorizationRequest, user *server.Authentication,
) error {
	if len(req.ResponseTypes) == 0 {
		return server.InvalidRequest("The response_type parameter is required.")
	}
	if !responseTypeAllowed(client, req.ResponseTypes) {
		return fosite.ErrUnsupportedResponseType.WithHintf(
			"Client %q may not use response_type %q.", client.ClientID, strings.Join(req.ResponseTypes, " "))
	}
	if slices.Contains(req.ResponseTypes, server.ResponseTypeIDToken) {
		if !slices.Contains(req.Scope, server.ScopeOpenID) {
			return server.InvalidScope("The id_token response type requires the openid scope.")
		}
		if req.Extension(server.ExtNonce) == "" {
			return server.InvalidRequest("The nonce parameter is required for the id_token response type.")
		}
	}
	if err := h.scopes.ValidateScope(client, req); err != nil {
		return err
	}
	if maxAge, ok := req.MaxAge(); ok && !user.AuthTime.IsZero() {
		if h.now().Sub(user.AuthTime) > time.Duration(maxAge)*time.Second {
			return fosite.ErrLoginRequired.WithHint("The authentication is older than max_age.")
		}
	}
	return nil
}

// responseTypeAllowed matches the requested response types against the
// client's registrations, each of which may combine several values. A
// client without registrations may use the code flow only.
func responseTypeAllowed(client *storage.ClientRecord, requested []string) bool {
	if len(client.ResponseTypes) == 0 {
		return len(requested) == 1 && requested[0] == server.ResponseTypeCode
	}
	want := slices.Sorted(slices.Values(requested))
	for _, registered := range client.ResponseTypes {
		have := slices.Sorted(slices.Values(strings.Fields(registered)))
		if slices.Equal(want, have) {
			return true
		}
	}
	return false
}

func (h *Handler) consentPage(client *storage.ClientRecord, req *server.AuthorizationRequest) *ConsentPage {
	page := &ConsentPage{
		ClientID:    client.ClientID,
		ClientName:  client.ClientName,
		RedirectURI: req.RedirectURI,
		Scopes:      make([]ConsentScope, 0, len(req.Scope)),
		CSRF:        req.Extension(server.ExtCSRF),
		State:       req.State,
		Action:      h.issuer + "/oauth/authorize",
	}
	for _, value := range req.Scope {
		base, param, _ := h.catalog.Split(value)
		entry := ConsentScope{Value: base, Param: param}
		if s, ok := h.catalog.Get(base); ok {
			entry.Description = s.Description
			entry.Structured = s.Structured
			entry.ParamDescription = s.StructuredParamDescription
		}
		page.Scopes = append(page.Scopes, entry)
	}
	return page
}

// respond issues the authorization response for an approved request: a
// code, implicit tokens, or both.
func (h *Handler) respond(
	w http.ResponseWriter, r *http.Request,
	client *storage.ClientRecord, req *server.AuthorizationRequest, user *server.Authentication,
) {
	ctx := r.Context()
	params, err := h.authorizationResponse(ctx, client, req, user)
	if err != nil {
		redirectError(w, r, req, err)
		return
	}
	logger.Debugw("authorization granted",
		"client_id", client.ClientID,
		"response_type", strings.Join(req.ResponseTypes, " "),
	)
	redirectResponse(w, r, req, params)
}

func (h *Handler) authorizationResponse(
	ctx context.Context, client *storage.ClientRecord, req *server.AuthorizationRequest, user *server.Authentication,
) (url.Values, error) {
	holder := &storage.AuthenticationHolder{Request: *req.Clone(), User: user}
	if err := h.storage.SaveAuthenticationHolder(ctx, holder); err != nil {
		return nil, server.ServerError("Unable to save the authorization.", err)
	}

	now := h.now()
	params := url.Values{}
	wantsIDToken := slices.Contains(req.ResponseTypes, server.ResponseTypeIDToken)

	// The code is stored only once every token was built.
	switch {
	case slices.Contains(req.ResponseTypes, server.ResponseTypeToken):
		access, err := h.issuance.CreateAccessToken(ctx, holder, client, issuance.TokenOptions{
			GrantType: grantTypeImplicit,
			IDToken:   wantsIDToken,
		})
		if err != nil {
			return nil, err
		}
		params.Set("access_token", access.Value)
		params.Set("token_type", access.TokenType)
		if !access.Expiration.IsZero() {
			params.Set("expires_in", strconv.FormatInt(int64(access.Expiration.Sub(now).Seconds()), 10))
		}
		params.Set("scope", strings.Join(access.Scope, " "))
		if access.IDTokenValue != "" {
			params.Set("id_token", access.IDTokenValue)
		}

	case wantsIDToken:
		idToken, err := h.issuance.CreateIDToken(ctx, client, &holder.Request, now, user.Subject, nil)
		if err != nil {
			return nil, err
		}
		params.Set("id_token", idToken)
	}

	if slices.Contains(req.ResponseTypes, server.ResponseTypeCode) {
		code := &storage.AuthorizationCode{
			Code:                   rand.Text(),
			AuthenticationHolderID: holder.ID,
			Expiration:             now.Add(h.codeLifetime),
		}
		if err := h.storage.CreateAuthorizationCode(ctx, code); err != nil {
			return nil, server.ServerError("Unable to save the authorization code.", err)
		}
		params.Set("code", code.Code)
	}
	return params, nil
}
