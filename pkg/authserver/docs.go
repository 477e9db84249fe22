// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package authserver assembles an OpenID Connect authorization server from
// its parts: the authorization request processor, the consent engine, the
// token granter chain and the token issuance service.
//
// The server supports:
//   - Authorization code, implicit and hybrid flows with PKCE (RFC 7636)
//   - Refresh tokens with rotation
//   - Client credentials, chained (re-delegation) and JWT bearer grants
//   - Signed and encrypted request objects and ID tokens
//   - Dynamic Client Registration (RFC 7591, RFC 7592 read)
//   - OIDC discovery and RFC 8414 metadata
//
// # Usage
//
//	cfg, err := authserver.LoadConfig("/etc/thv-idp/config.yaml")
//	if err != nil {
//	    return err
//	}
//	srv, err := authserver.New(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer srv.Close()
//	http.ListenAndServe(cfg.ListenAddress, srv.Handler())
//
// End-user authentication is delegated: by default the server trusts the
// X-Forwarded-User header set by an authenticating proxy. Supply a
// different handlers.Authenticator with WithAuthenticator.
//
// # Storage
//
// Memory storage is the default. Redis storage is selected with
// storage.type: redis and is required when several replicas share state.
package authserver
