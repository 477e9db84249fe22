// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/crypto"
)

// URLParams are the parameters of a client-side authorization URL.
type URLParams struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	Nonce       string
	// Options are extra parameters, appended in key order. Keys that collide
	// with the fields above are ignored.
	Options map[string]string
}

var coreParams = []string{"response_type", "client_id", "scope", "redirect_uri", "nonce", "state", "request"}

func (p *URLParams) ordered() [][2]string {
	pairs := [][2]string{
		{"response_type", server.ResponseTypeCode},
		{"client_id", p.ClientID},
		{"scope", strings.Join(p.Scopes, " ")},
		{"redirect_uri", p.RedirectURI},
	}
	if p.Nonce != "" {
		pairs = append(pairs, [2]string{"nonce", p.Nonce})
	}
	if p.State != "" {
		pairs = append(pairs, [2]string{"state", p.State})
	}
	for _, k := range slices.Sorted(maps.Keys(p.Options)) {
		if slices.Contains(coreParams, k) {
			continue
		}
		pairs = append(pairs, [2]string{k, p.Options[k]})
	}
	return pairs
}

func encodePairs(pairs [][2]string) string {
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

func appendQuery(endpoint, query string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid authorization endpoint %q: absolute URL required", endpoint)
	}
	sep := "?"
	if u.RawQuery != "" {
		sep = "&"
	}
	return endpoint + sep + query, nil
}

// BuildAuthorizationURL renders a plain authorization URL. Parameters appear
// in the order response_type, client_id, scope, redirect_uri, nonce, state,
// followed by the sorted options.
func BuildAuthorizationURL(endpoint string, params URLParams) (string, error) {
	return appendQuery(endpoint, encodePairs(params.ordered()))
}

// BuildSignedAuthorizationURL carries the parameters inside a request object
// signed by signer. response_type, client_id and scope are repeated in the
// query as OpenID Connect requires.
func BuildSignedAuthorizationURL(
	ctx context.Context, signer crypto.JWSSigner, alg jose.SignatureAlgorithm, endpoint string, params URLParams,
) (string, error) {
	claims := map[string]any{}
	for _, kv := range params.ordered() {
		claims[kv[0]] = kv[1]
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode request object: %w", err)
	}
	jws, err := signer.Sign(ctx, alg, payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign request object: %w", err)
	}

	query := encodePairs([][2]string{
		{"response_type", server.ResponseTypeCode},
		{"client_id", params.ClientID},
		{"scope", strings.Join(params.Scopes, " ")},
		{"request", jws},
	})
	return appendQuery(endpoint, query)
}
