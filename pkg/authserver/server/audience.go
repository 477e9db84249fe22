// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"
	"net/url"
	"slices"

	"github.com/ory/fosite"
)

// ErrInvalidTarget is the RFC 8707 error for a resource parameter that is
// malformed or names a resource server this issuer does not serve.
var ErrInvalidTarget = &fosite.RFC6749Error{
	ErrorField:       "invalid_target",
	DescriptionField: "The requested resource is invalid, unknown, or malformed.",
	CodeField:        http.StatusBadRequest,
}

// ValidateAudienceURI checks that resource is an absolute http(s) URI
// without a fragment (RFC 8707 Section 2). An empty resource is valid.
func ValidateAudienceURI(resource string) error {
	if resource == "" {
		return nil
	}

	u, err := url.Parse(resource)
	switch {
	case err != nil:
		return ErrInvalidTarget.WithHintf("The resource parameter is not a valid URI: %s", err.Error())
	case !u.IsAbs() || u.Host == "":
		return ErrInvalidTarget.WithHint("The resource parameter must be an absolute URI.")
	case u.Fragment != "":
		return ErrInvalidTarget.WithHint("The resource parameter must not contain a fragment.")
	case u.Scheme != "http" && u.Scheme != "https":
		return ErrInvalidTarget.WithHint("The resource parameter must use the http or https scheme.")
	}
	return nil
}

// ValidateAudienceAllowed checks resource against the configured audiences
// by exact match. No configured audiences means no resource is accepted.
func ValidateAudienceAllowed(resource string, allowed []string) error {
	if resource == "" || slices.Contains(allowed, resource) {
		return nil
	}
	if len(allowed) == 0 {
		return ErrInvalidTarget.WithHint("This server accepts no resource parameter.")
	}
	return ErrInvalidTarget.WithHintf("Resource %q is not a registered audience.", resource)
}
