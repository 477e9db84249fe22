// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// ErrNoKeySource is returned when a client registered neither jwks nor jwks_uri.
var ErrNoKeySource = errors.New("client has no key source")

const registrationTimeout = 5 * time.Second

// KeySource is the part of a client registration that locates its keys.
type KeySource struct {
	// JWKS is an inline JSON Web Key Set document.
	JWKS string
	// JWKSURI is a remote JSON Web Key Set location.
	JWKSURI string
}

// HasKeys reports whether src names any key source.
func (src KeySource) HasKeys() bool {
	return src.JWKS != "" || src.JWKSURI != ""
}

// KeySetResolver resolves client key sets. Remote sets are fetched through a
// refreshing jwk.Cache so an authorization request never waits on the
// network once a URI has been seen.
type KeySetResolver struct {
	cache *jwk.Cache

	mu         sync.Mutex
	registered map[string]error
}

// NewKeySetResolver creates a resolver using httpClient for remote fetches.
// The cache background workers stop when ctx is cancelled.
func NewKeySetResolver(ctx context.Context, httpClient *http.Client) (*KeySetResolver, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(httpClient)))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}
	return &KeySetResolver{cache: cache, registered: map[string]error{}}, nil
}

// Resolve returns the key set for src. Inline keys take precedence over a URI.
func (r *KeySetResolver) Resolve(ctx context.Context, src KeySource) (*jose.JSONWebKeySet, error) {
	switch {
	case src.JWKS != "":
		return ParseKeySet([]byte(src.JWKS))
	case src.JWKSURI != "":
		return r.Fetch(ctx, src.JWKSURI)
	default:
		return nil, ErrNoKeySource
	}
}

// Fetch returns the cached key set published at uri.
func (r *KeySetResolver) Fetch(ctx context.Context, uri string) (*jose.JSONWebKeySet, error) {
	if err := r.ensureRegistered(ctx, uri); err != nil {
		return nil, err
	}

	set, err := r.cache.Lookup(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup JWKS: %w", err)
	}

	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JWKS: %w", err)
	}
	return ParseKeySet(data)
}

func (r *KeySetResolver) ensureRegistered(ctx context.Context, uri string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.registered[uri]; ok && err == nil {
		return nil
	}

	regCtx, cancel := context.WithTimeout(ctx, registrationTimeout)
	defer cancel()

	err := r.cache.Register(regCtx, uri)
	if err != nil {
		err = fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	r.registered[uri] = err
	return err
}

// ParseKeySet decodes a JSON Web Key Set document.
func ParseKeySet(data []byte) (*jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return &set, nil
}
