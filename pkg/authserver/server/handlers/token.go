// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/ory/fosite"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/stacklok/toolhive-idp/pkg/authserver/granter"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// TokenHandler handles POST /oauth/token requests.
// It authenticates the client, applies the per-client rate limit and hands
// the request to the granter chain.
func (h *Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, server.InvalidRequest("The request body could not be parsed."))
		return
	}

	client, err := h.authenticateClient(ctx, r)
	if err != nil {
		writeOAuthError(w, err)
		return
	}

	if !h.limiter(client.ClientID).Allow() {
		logger.Warnw("token request rate limited", "client_id", client.ClientID)
		e := fosite.ErrTemporarilyUnavailable.WithHint("Too many token requests.")
		e.CodeField = http.StatusTooManyRequests
		writeOAuthError(w, e)
		return
	}

	resp, err := h.chain.Grant(ctx, granter.NewTokenRequest(r.PostForm), client)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp, true)
}

// authenticateClient implements client_secret_basic, client_secret_post and,
// for public clients, none.
func (h *Handler) authenticateClient(ctx context.Context, r *http.Request) (*storage.ClientRecord, error) {
	clientID, secret, basic := r.BasicAuth()
	if basic {
		if r.PostForm.Has("client_secret") {
			return nil, server.InvalidRequest("Only one client authentication method may be used.")
		}
		// RFC 6749 Section 2.3.1 form-encodes the credentials.
		var err error
		if clientID, err = url.QueryUnescape(clientID); err != nil {
			return nil, server.InvalidClient("The client_id in the Authorization header is malformed.")
		}
		if secret, err = url.QueryUnescape(secret); err != nil {
			return nil, server.InvalidClient("The client_secret in the Authorization header is malformed.")
		}
	} else {
		clientID = r.PostForm.Get("client_id")
		secret = r.PostForm.Get("client_secret")
	}
	if clientID == "" {
		return nil, server.InvalidClient("Client authentication is required.")
	}

	client, err := h.storage.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, server.InvalidClient("Client authentication failed.")
		}
		return nil, server.ServerError("Unable to load the client.", err)
	}

	if client.IsPublic() {
		if secret != "" {
			return nil, server.InvalidClient("Client authentication failed.")
		}
		return client, nil
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(client.ClientSecret)) != 1 {
		return nil, server.InvalidClient("Client authentication failed.")
	}
	return client, nil
}

// limiter returns the token bucket of clientID, creating it on first use.
// Each use slides the bucket's expiry so only idle clients are evicted.
func (h *Handler) limiter(clientID string) *rate.Limiter {
	l := rate.NewLimiter(h.rateLimit, h.rateBurst)
	if existing, ok := h.limiters.Get(clientID); ok {
		l = existing.(*rate.Limiter)
	} else if err := h.limiters.Add(clientID, l, cache.DefaultExpiration); err != nil {
		// A concurrent request created the bucket first.
		if existing, ok := h.limiters.Get(clientID); ok {
			l = existing.(*rate.Limiter)
		}
	}
	h.limiters.Set(clientID, l, cache.DefaultExpiration)
	return l
}
