// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
)

// Headers read by HeaderAuthenticator when no override is configured.
const (
	DefaultUserHeader     = "X-Forwarded-User"
	DefaultAuthTimeHeader = "X-Forwarded-Auth-Time"
)

// Authenticator resolves the end-user behind an HTTP request. It returns a
// nil Authentication when the request carries no session.
type Authenticator interface {
	Authenticate(r *http.Request) (*server.Authentication, error)
}

// HeaderAuthenticator trusts identity headers set by a fronting proxy. The
// auth time header holds Unix seconds.
type HeaderAuthenticator struct {
	UserHeader     string
	AuthTimeHeader string
}

// Authenticate implements Authenticator.
func (a HeaderAuthenticator) Authenticate(r *http.Request) (*server.Authentication, error) {
	userHeader, timeHeader := a.UserHeader, a.AuthTimeHeader
	if userHeader == "" {
		userHeader = DefaultUserHeader
	}
	if timeHeader == "" {
		timeHeader = DefaultAuthTimeHeader
	}

	subject := r.Header.Get(userHeader)
	if subject == "" {
		return nil, nil
	}

	auth := &server.Authentication{Subject: subject, Authenticated: true}
	if raw := r.Header.Get(timeHeader); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed %s header: %w", timeHeader, err)
		}
		auth.AuthTime = time.Unix(secs, 0)
	}
	return auth, nil
}
