// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers provides HTTP handlers for the OAuth 2.0 / OpenID Connect
// authorization server endpoints.
//
// This package implements the HTTP layer for the authorization server, including:
//   - Authorization endpoint (/oauth/authorize), with the consent form
//   - Token endpoint (/oauth/token)
//   - Dynamic client registration (/oauth/register, RFC 7591 and RFC 7592 read)
//   - OIDC and OAuth discovery (/.well-known/openid-configuration,
//     /.well-known/oauth-authorization-server)
//   - JWKS endpoint (/.well-known/jwks.json)
//
// End-user authentication is delegated to an Authenticator. The handlers never
// render HTML: a request that needs consent is answered with a JSON document
// describing the consent form, which the fronting UI posts back.
package handlers
