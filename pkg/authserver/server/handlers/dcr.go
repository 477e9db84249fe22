// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/registration"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// maxDCRBodySize is the maximum allowed size for DCR request bodies (64KB).
const maxDCRBodySize = 64 * 1024

// RegisterClientHandler handles POST /oauth/register requests.
// It implements RFC 7591 Dynamic Client Registration and returns a
// registration access token for RFC 7592 reads.
func (h *Handler) RegisterClientHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	req.Body = http.MaxBytesReader(w, req.Body, maxDCRBodySize)

	// RFC 7591 requires application/json
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		writeDCRError(w, http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "Content-Type must be application/json",
		})
		return
	}

	var dcrReq registration.DCRRequest
	if err := json.NewDecoder(req.Body).Decode(&dcrReq); err != nil {
		writeDCRError(w, http.StatusBadRequest, &registration.DCRError{
			Error:            registration.DCRErrorInvalidClientMetadata,
			ErrorDescription: "invalid JSON request body",
		})
		return
	}

	validated, dcrErr := registration.ValidateDCRRequest(&dcrReq, registration.Policy{
		Scopes:        scope.Values(h.catalog.Unrestricted()),
		DefaultScopes: scope.Values(h.catalog.Defaults()),
	})
	if dcrErr != nil {
		writeDCRError(w, http.StatusBadRequest, dcrErr)
		return
	}

	client := registration.NewClientRecord(validated)
	if err := h.storage.RegisterClient(ctx, client); err != nil {
		logger.Errorw("failed to register client", "error", err)
		writeDCRError(w, http.StatusInternalServerError, &registration.DCRError{
			Error:            "server_error",
			ErrorDescription: "failed to register client",
		})
		return
	}

	token, err := h.issuance.CreateRegistrationAccessToken(ctx, client)
	if err != nil {
		logger.Errorw("failed to issue registration access token", "client_id", client.ClientID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, &registration.DCRError{
			Error:            "server_error",
			ErrorDescription: "failed to issue registration access token",
		})
		return
	}

	logger.Debugw("registered new DCR client",
		"client_id", client.ClientID,
		"client_name", client.ClientName,
	)

	resp := registration.NewResponse(client, validated.TokenEndpointAuthMethod)
	resp.ClientIDIssuedAt = h.now().Unix()
	resp.RegistrationAccessToken = token.Value
	resp.RegistrationClientURI = h.registrationClientURI(client.ClientID)
	writeJSON(w, http.StatusCreated, resp, true)
}

// ReadClientHandler handles GET /oauth/register/{client_id} requests
// (RFC 7592 Section 2.1). Each read rotates the registration access token.
func (h *Handler) ReadClientHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	clientID := chi.URLParam(req, "client_id")

	value, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || value == "" {
		writeBearerError(w, "invalid_request", "a registration access token is required")
		return
	}
	token, err := h.storage.GetAccessToken(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
			writeBearerError(w, "invalid_token", "the registration access token is not valid")
			return
		}
		logger.Errorw("failed to load registration access token", "error", err)
		writeDCRError(w, http.StatusInternalServerError, &registration.DCRError{Error: "server_error"})
		return
	}
	if token.ClientID != clientID || !token.HasScope(server.ScopeRegistrationToken) || token.IsExpired(h.now()) {
		writeBearerError(w, "invalid_token", "the registration access token is not valid for this client")
		return
	}

	client, err := h.storage.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeBearerError(w, "invalid_token", "the client no longer exists")
			return
		}
		logger.Errorw("failed to load client", "client_id", clientID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, &registration.DCRError{Error: "server_error"})
		return
	}

	rotated, err := h.issuance.RotateRegistrationAccessTokenForClient(ctx, client)
	if err != nil {
		logger.Errorw("failed to rotate registration access token", "client_id", clientID, "error", err)
		writeDCRError(w, http.StatusInternalServerError, &registration.DCRError{Error: "server_error"})
		return
	}

	resp := registration.NewResponse(client, "")
	resp.RegistrationAccessToken = rotated.Value
	resp.RegistrationClientURI = h.registrationClientURI(clientID)
	writeJSON(w, http.StatusOK, resp, true)
}

func (h *Handler) registrationClientURI(clientID string) string {
	return h.issuer + "/oauth/register/" + clientID
}

// writeDCRError writes a DCR error response per RFC 7591 Section 3.2.2.
func writeDCRError(w http.ResponseWriter, statusCode int, dcrErr *registration.DCRError) {
	writeJSON(w, statusCode, dcrErr, true)
}

// writeBearerError answers 401 with an RFC 6750 challenge.
func writeBearerError(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="oauth", error="`+code+`"`)
	writeJSON(w, http.StatusUnauthorized, registration.DCRError{Error: code, ErrorDescription: description}, true)
}
