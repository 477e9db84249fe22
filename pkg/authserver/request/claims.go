// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package request

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
)

// CanonicalClaims validates a claims request and re-serializes it with
// sorted keys and no insignificant whitespace.
func CanonicalClaims(raw string) (string, bool) {
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return "", false
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// claimString renders a JWT claim value as the equivalent query parameter.
func claimString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// applyClaims overwrites req with every standard claim present in claims.
func (p *Processor) applyClaims(req *server.AuthorizationRequest, claims map[string]any) {
	overwrite := func(name, current, incoming string, set func(string)) {
		if current != "" && current != incoming {
			p.logger.Info("request object overrides query parameter",
				"client_id", req.ClientID, "parameter", name)
		}
		set(incoming)
	}

	if v, ok := claimValue(claims, "response_type"); ok {
		overwrite("response_type", strings.Join(req.ResponseTypes, " "), v, func(s string) {
			req.ResponseTypes = server.SplitArguments(s)
		})
	}
	if v, ok := claimValue(claims, "redirect_uri"); ok {
		overwrite("redirect_uri", req.RedirectURI, v, func(s string) { req.RedirectURI = s })
	}
	if v, ok := claimValue(claims, "state"); ok {
		overwrite("state", req.State, v, func(s string) { req.State = s })
	}
	for _, ext := range []string{server.ExtNonce, server.ExtDisplay, server.ExtPrompt, server.ExtMaxAge, server.ExtResource} {
		if v, ok := claimValue(claims, ext); ok {
			overwrite(ext, req.Extension(ext), v, func(s string) { req.SetExtension(ext, s) })
		}
	}
	if v, ok := claimValue(claims, "scope"); ok {
		overwrite("scope", strings.Join(req.Scope, " "), v, func(s string) {
			req.SetScope(server.SplitArguments(s))
		})
	}
	if raw, ok := claims["claims"]; ok {
		p.applyClaimsRequest(req, raw)
	}
}

func claimValue(claims map[string]any, name string) (string, bool) {
	v, ok := claims[name]
	if !ok {
		return "", false
	}
	return claimString(v)
}

// applyClaimsRequest accepts the claims member either as a JSON object or as
// a string holding one.
func (p *Processor) applyClaimsRequest(req *server.AuthorizationRequest, raw any) {
	var encoded string
	switch t := raw.(type) {
	case string:
		encoded = t
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return
		}
		encoded = string(b)
	default:
		p.logger.Warn("dropping claims request of unexpected type", "client_id", req.ClientID)
		return
	}

	canonical, ok := CanonicalClaims(encoded)
	if !ok {
		p.logger.Warn("dropping invalid claims request", "client_id", req.ClientID)
		return
	}
	if current := req.Extension(server.ExtClaims); current != "" && current != canonical {
		p.logger.Info("request object overrides query parameter", "client_id", req.ClientID, "parameter", "claims")
	}
	req.SetExtension(server.ExtClaims, canonical)
}

// ClaimRequested reports whether the claims request asks for claim in the
// ID token, and whether it marks it essential.
func ClaimRequested(claimsRequest, claim string) (requested, essential bool) {
	if claimsRequest == "" {
		return false, false
	}
	member := gjson.Get(claimsRequest, "id_token."+claim)
	if !member.Exists() {
		return false, false
	}
	return true, member.Get("essential").Bool()
}
