// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ory/fosite"
)

// Sentinel errors for failure kinds that share an OAuth error code with
// others and must still be told apart by callers.
var (
	// ErrRedirectMismatch is returned when a redirect_uri does not match the
	// registered or originally used value.
	ErrRedirectMismatch = errors.New("redirect_uri mismatch")

	// ErrNonceReuse is returned when a (client, nonce) pair is presented again
	// before the stored record expired.
	ErrNonceReuse = errors.New("nonce already used")
)

// InvalidClient returns an invalid_client error carrying hint.
func InvalidClient(hint string) error {
	return fosite.ErrInvalidClient.WithHint(hint)
}

// InvalidClientf returns an invalid_client error with a formatted hint.
func InvalidClientf(format string, args ...any) error {
	return fosite.ErrInvalidClient.WithHintf(format, args...)
}

// InvalidRequest returns an invalid_request error carrying hint.
func InvalidRequest(hint string) error {
	return fosite.ErrInvalidRequest.WithHint(hint)
}

// InvalidScope returns an invalid_scope error carrying hint.
func InvalidScope(hint string) error {
	return fosite.ErrInvalidScope.WithHint(hint)
}

// InvalidGrant returns an invalid_grant error carrying hint.
func InvalidGrant(hint string) error {
	return fosite.ErrInvalidGrant.WithHint(hint)
}

// RedirectMismatch returns an invalid_grant error that also matches
// ErrRedirectMismatch.
func RedirectMismatch(hint string) error {
	return fmt.Errorf("%w: %w", ErrRedirectMismatch, fosite.ErrInvalidGrant.WithHint(hint))
}

// NonceReuse returns an invalid_request error that also matches ErrNonceReuse.
func NonceReuse(clientID string) error {
	return fmt.Errorf("%w: %w", ErrNonceReuse,
		fosite.ErrInvalidRequest.WithHintf("The nonce has already been used by client %q.", clientID))
}

// ServerError returns a server_error wrapping cause. The cause is kept as
// debug information and never rendered to clients.
func ServerError(hint string, cause error) error {
	e := fosite.ErrServerError.WithHint(hint)
	if cause != nil {
		e = e.WithWrap(cause).WithDebug(cause.Error())
	}
	return e
}

// AsRFC6749 extracts the OAuth error from err. Errors that carry no OAuth
// error are reported as server_error.
func AsRFC6749(err error) *fosite.RFC6749Error {
	var rfcErr *fosite.RFC6749Error
	if errors.As(err, &rfcErr) {
		return rfcErr
	}
	return &fosite.RFC6749Error{
		ErrorField:       "server_error",
		DescriptionField: "The authorization server encountered an unexpected condition that prevented it from fulfilling the request.",
		CodeField:        http.StatusInternalServerError,
	}
}

// ErrorCode returns the OAuth error code of err.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	return AsRFC6749(err).ErrorField
}

// ErrorDescription joins the description and hint of an OAuth error.
func ErrorDescription(e *fosite.RFC6749Error) string {
	parts := make([]string, 0, 2)
	if e.DescriptionField != "" {
		parts = append(parts, e.DescriptionField)
	}
	if e.HintField != "" {
		parts = append(parts, e.HintField)
	}
	return strings.Join(parts, " ")
}

// StatusCode returns the HTTP status for an OAuth error, defaulting to 500.
func StatusCode(e *fosite.RFC6749Error) int {
	if e.CodeField == 0 {
		return http.StatusInternalServerError
	}
	return e.CodeField
}
