// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// ResolveRedirectURI returns the redirect URI to answer to. requested must
// match a registered URI exactly, except that a registered loopback URI
// accepts any port (RFC 8252 Section 7.3). An empty value resolves to the
// only registered URI when there is exactly one.
func ResolveRedirectURI(client *storage.ClientRecord, requested string) (string, error) {
	if requested == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], nil
		}
		return "", fmt.Errorf("%w: %w", server.ErrRedirectMismatch,
			server.InvalidRequest("The redirect_uri parameter is required when the client registered more than one."))
	}
	for _, registered := range client.RedirectURIs {
		if requested == registered || matchesAsLoopback(requested, registered) {
			return requested, nil
		}
	}
	return "", fmt.Errorf("%w: %w", server.ErrRedirectMismatch,
		server.InvalidRequest("The redirect_uri does not match any registered redirect URI."))
}

// matchesAsLoopback applies the RFC 8252 loopback rules: both URIs use http
// on the same loopback host with identical path and query. The port may differ.
func matchesAsLoopback(requestedURI, registeredURI string) bool {
	requested, err := url.Parse(requestedURI)
	if err != nil {
		return false
	}
	registered, err := url.Parse(registeredURI)
	if err != nil {
		return false
	}

	if requested.Scheme != "http" || registered.Scheme != "http" {
		return false
	}
	if !IsLoopbackHost(requested.Hostname()) || !hostnamesMatch(requested.Hostname(), registered.Hostname()) {
		return false
	}
	return requested.Path == registered.Path && requested.RawQuery == registered.RawQuery
}

// IsLoopbackHost reports whether hostname is "localhost" or a loopback IP.
func IsLoopbackHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// hostnamesMatch compares localhost case-insensitively and IPs exactly, so a
// client registered with 127.0.0.1 does not match localhost.
func hostnamesMatch(requested, registered string) bool {
	if strings.EqualFold(requested, "localhost") && strings.EqualFold(registered, "localhost") {
		return true
	}
	return requested == registered
}
