// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package granter

import (
	"slices"
	"strings"

	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
)

// ScopeValidator checks the scope of a request against its client.
type ScopeValidator interface {
	ValidateScope(client *storage.ClientRecord, req *server.AuthorizationRequest) error
}

// PKCEScopeValidator requires the requested scope to be a subset of the
// client scope. For code flows of clients that registered a
// code_challenge_method it also requires the request to use that method.
type PKCEScopeValidator struct{}

// ValidateScope implements ScopeValidator.
func (PKCEScopeValidator) ValidateScope(client *storage.ClientRecord, req *server.AuthorizationRequest) error {
	if !(scope.Exact{}).Covers(client.Scope, req.Scope) {
		return invalidScope(client, req.Scope)
	}
	if client.CodeChallengeMethod == "" || !slices.Contains(req.ResponseTypes, server.ResponseTypeCode) {
		return nil
	}
	if method := req.Extension(server.ExtCodeChallengeMethod); method != client.CodeChallengeMethod {
		return server.InvalidRequest("The client must use the code_challenge_method " + client.CodeChallengeMethod + ".")
	}
	return nil
}

// StructuredScopeValidator requires the requested scope to be covered by the
// client scope, where a registered structured scope covers each of its
// parameterized forms.
type StructuredScopeValidator struct {
	Catalog *scope.Catalog
}

// ValidateScope implements ScopeValidator.
func (v StructuredScopeValidator) ValidateScope(client *storage.ClientRecord, req *server.AuthorizationRequest) error {
	if !v.Catalog.Covers(client.Scope, req.Scope) {
		return invalidScope(client, req.Scope)
	}
	return nil
}

func invalidScope(client *storage.ClientRecord, requested []string) error {
	var denied []string
	for _, s := range requested {
		if !slices.Contains(client.Scope, s) {
			denied = append(denied, s)
		}
	}
	return server.InvalidScope("The client may not request the scope(s): " + strings.Join(denied, " ") + ".")
}
