// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/ory/fosite"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// errorResponse is the RFC 6749 Section 5.2 error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeJSON writes v as a JSON body. Responses carrying credentials must be
// written with noStore set.
func writeJSON(w http.ResponseWriter, status int, v any, noStore bool) {
	w.Header().Set("Content-Type", "application/json")
	if noStore {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
	}
	w.WriteHeader(status)
	// Headers are already written; an encoding failure can only be logged.
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("failed to encode response", "error", err)
	}
}

// writeOAuthError renders err as a JSON OAuth error with its status code.
func writeOAuthError(w http.ResponseWriter, err error) {
	e := server.AsRFC6749(err)
	status := server.StatusCode(e)
	logError(err, e, status)

	if e.ErrorField == fosite.ErrInvalidClient.ErrorField {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
	}
	writeJSON(w, status, errorResponse{
		Error:            e.ErrorField,
		ErrorDescription: server.ErrorDescription(e),
	}, true)
}

func logError(err error, e *fosite.RFC6749Error, status int) {
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "error", err, "code", e.ErrorField)
		return
	}
	logger.Debugw("request rejected", "error", err, "code", e.ErrorField)
}

// usesFragment reports whether a response to responseTypes travels in the
// URI fragment. Only the plain code flow answers in the query.
func usesFragment(responseTypes []string) bool {
	return slices.Contains(responseTypes, server.ResponseTypeToken) ||
		slices.Contains(responseTypes, server.ResponseTypeIDToken)
}

// buildRedirect appends params to redirectURI, in the fragment or the query.
func buildRedirect(redirectURI string, params url.Values, fragment bool) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect_uri: %w", err)
	}
	if fragment {
		u.Fragment, u.RawFragment = "", ""
		return u.String() + "#" + params.Encode(), nil
	}
	q := u.Query()
	for key, values := range params {
		q[key] = values
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redirectResponse sends the user agent back to the client with params.
func redirectResponse(w http.ResponseWriter, r *http.Request, req *server.AuthorizationRequest, params url.Values) {
	if req.State != "" {
		params.Set("state", req.State)
	}
	target, err := buildRedirect(req.RedirectURI, params, usesFragment(req.ResponseTypes))
	if err != nil {
		writeOAuthError(w, server.ServerError("Unable to build the redirect.", err))
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// redirectError sends an OAuth error to the client's redirect URI.
func redirectError(w http.ResponseWriter, r *http.Request, req *server.AuthorizationRequest, err error) {
	e := server.AsRFC6749(err)
	logError(err, e, server.StatusCode(e))

	params := url.Values{}
	params.Set("error", e.ErrorField)
	if desc := server.ErrorDescription(e); desc != "" {
		params.Set("error_description", desc)
	}
	redirectResponse(w, r, req, params)
}
