// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package consent implements trust-on-first-use consent: a user approves a
// client once, optionally remembering the decision, and later requests
// covered by that approval pass without interaction.
package consent

import (
	"crypto/subtle"
	"net/url"
	"time"

	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// Kind classifies a consent decision.
type Kind string

const (
	// NeedsInteraction means the user must be shown the consent page.
	NeedsInteraction Kind = "needs_interaction"
	// AutoApproved means a whitelist entry covers the request.
	AutoApproved Kind = "auto_approved"
	// Recalled means a remembered approval covers the request.
	Recalled Kind = "recalled"
	// Approved means the user approved on the consent page.
	Approved Kind = "approved"
	// Denied means the user rejected on the consent page.
	Denied Kind = "denied"
)

// Consent form fields.
const (
	FormCSRF          = "csrf"
	FormApproval      = "user_oauth_approval"
	FormRemember      = "remember"
	FormScopePrefix   = "scope_"
	FormScopeParamPfx = "scopeparam_"
)

// Remember values of the consent form.
const (
	RememberNone    = "none"
	RememberOneHour = "one-hour"
	RememberForever = "until-revoked"
)

// Decision is the outcome of a consent evaluation.
type Decision struct {
	Kind Kind

	// Site is the approved site that was recalled or will be created.
	Site *storage.ApprovedSite

	// Whitelist is set for AutoApproved decisions.
	Whitelist *storage.WhitelistedSite
}

// IsApproved reports whether the decision lets the request through.
func (d Decision) IsApproved() bool {
	switch d.Kind {
	case AutoApproved, Recalled, Approved:
		return true
	default:
		return false
	}
}

// Evaluate decides pre-approval from stored state without side effects.
// Remembered approvals are considered before the whitelist.
func Evaluate(
	req *server.AuthorizationRequest,
	user *server.Authentication,
	sites []*storage.ApprovedSite,
	whitelist *storage.WhitelistedSite,
	now time.Time,
	matcher scope.Matcher,
) Decision {
	if !user.IsAuthenticated() || req.HasPrompt(server.PromptConsent) {
		return Decision{Kind: NeedsInteraction}
	}

	for _, site := range sites {
		if site.ClientID != req.ClientID || site.UserID != user.Subject || site.IsExpired(now) {
			continue
		}
		if matcher.Covers(site.AllowedScopes, req.Scope) {
			return Decision{Kind: Recalled, Site: site}
		}
	}

	if whitelist != nil && whitelist.ClientID == req.ClientID && matcher.Covers(whitelist.AllowedScopes, req.Scope) {
		return Decision{Kind: AutoApproved, Whitelist: whitelist}
	}

	return Decision{Kind: NeedsInteraction}
}

// EvaluateForm decides a submitted consent form. A form whose CSRF token
// does not match the request, or a user that is not authenticated, yields
// NeedsInteraction rather than an error.
func EvaluateForm(req *server.AuthorizationRequest, form url.Values, user *server.Authentication) Decision {
	if !user.IsAuthenticated() || !csrfMatches(req.Extension(server.ExtCSRF), form.Get(FormCSRF)) {
		return Decision{Kind: NeedsInteraction}
	}
	switch form.Get(FormApproval) {
	case "true":
		return Decision{Kind: Approved}
	case "false":
		return Decision{Kind: Denied}
	default:
		return Decision{Kind: NeedsInteraction}
	}
}

func csrfMatches(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
