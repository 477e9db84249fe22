// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scope holds the system scope catalog and the structured scope
// matching rules shared by consent and token validation.
//
// A structured scope is registered under its base value ("files") and may be
// requested with a parameter ("files:/home/alice"). An allowance for the bare
// base value covers every parameterized form; an allowance for a
// parameterized value covers only that exact value.
package scope

import (
	"slices"
	"strings"
	"sync"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
)

// Separator joins a structured scope to its parameter.
const Separator = ":"

// SystemScope describes a scope the server knows about.
type SystemScope struct {
	Value                      string `json:"value" mapstructure:"value" yaml:"value"`
	Description                string `json:"description,omitempty" mapstructure:"description" yaml:"description"`
	Icon                       string `json:"icon,omitempty" mapstructure:"icon" yaml:"icon"`
	DefaultScope               bool   `json:"default_scope,omitempty" mapstructure:"default_scope" yaml:"default_scope"`
	Restricted                 bool   `json:"restricted,omitempty" mapstructure:"restricted" yaml:"restricted"`
	Structured                 bool   `json:"structured,omitempty" mapstructure:"structured" yaml:"structured"`
	StructuredParamDescription string `json:"structured_param_description,omitempty" mapstructure:"structured_param_description" yaml:"structured_param_description"`
}

// Matcher decides whether a set of allowed scopes covers a request.
type Matcher interface {
	Covers(allowed, requested []string) bool
}

// reserved scopes are minted by the server and never granted to clients
// through user-facing flows.
var reserved = []string{server.ScopeRegistrationToken, server.ScopeResourceToken, server.ScopeIDToken}

// IsReserved reports whether value is a server-internal scope.
func IsReserved(value string) bool {
	return slices.Contains(reserved, value)
}

// DefaultScopes is the catalog seeded when configuration lists none.
func DefaultScopes() []SystemScope {
	return []SystemScope{
		{Value: server.ScopeOpenID, Description: "log in using your identity", DefaultScope: true},
		{Value: "profile", Description: "basic profile information", DefaultScope: true},
		{Value: "email", Description: "email address", DefaultScope: true},
		{Value: "address", Description: "physical address"},
		{Value: "phone", Description: "telephone number"},
		{Value: server.ScopeOfflineAccess, Description: "offline access"},
	}
}

// Catalog is a concurrency-safe, in-memory registry of system scopes.
type Catalog struct {
	mu     sync.RWMutex
	scopes map[string]SystemScope
}

// NewCatalog returns a catalog holding scopes.
func NewCatalog(scopes ...SystemScope) *Catalog {
	c := &Catalog{scopes: make(map[string]SystemScope, len(scopes))}
	for _, s := range scopes {
		c.scopes[s.Value] = s
	}
	return c
}

// Save adds or replaces a scope.
func (c *Catalog) Save(s SystemScope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[s.Value] = s
}

// Remove deletes a scope.
func (c *Catalog) Remove(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scopes, value)
}

// Get returns the scope registered under value.
func (c *Catalog) Get(value string) (SystemScope, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scopes[value]
	return s, ok
}

// All returns every scope sorted by value.
func (c *Catalog) All() []SystemScope {
	return c.filter(func(SystemScope) bool { return true })
}

// Defaults returns the scopes granted to new clients by default.
func (c *Catalog) Defaults() []SystemScope {
	return c.filter(func(s SystemScope) bool { return s.DefaultScope })
}

// Unrestricted returns the scopes clients may request for themselves.
func (c *Catalog) Unrestricted() []SystemScope {
	return c.filter(func(s SystemScope) bool { return !s.Restricted })
}

func (c *Catalog) filter(keep func(SystemScope) bool) []SystemScope {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SystemScope, 0, len(c.scopes))
	for _, s := range c.scopes {
		if keep(s) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b SystemScope) int { return strings.Compare(a.Value, b.Value) })
	return out
}

// Values returns the Value of each scope.
func Values(scopes []SystemScope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = s.Value
	}
	return out
}

// Split separates value into its base and parameter when the base is a
// registered structured scope. Otherwise base is value and param is empty.
func (c *Catalog) Split(value string) (base, param string, structured bool) {
	b, p, found := strings.Cut(value, Separator)
	if !found {
		if s, ok := c.Get(value); ok && s.Structured {
			return value, "", true
		}
		return value, "", false
	}
	if s, ok := c.Get(b); ok && s.Structured {
		return b, p, true
	}
	return value, "", false
}

// IsStructured reports whether value names a structured scope, with or
// without a parameter.
func (c *Catalog) IsStructured(value string) bool {
	_, _, structured := c.Split(value)
	return structured
}

// Covers reports whether every requested scope is allowed. A bare structured
// allowance covers all of its parameterized forms.
func (c *Catalog) Covers(allowed, requested []string) bool {
	for _, r := range requested {
		if !c.allows(allowed, r) {
			return false
		}
	}
	return true
}

func (c *Catalog) allows(allowed []string, requested string) bool {
	if slices.Contains(allowed, requested) {
		return true
	}
	base, param, structured := c.Split(requested)
	return structured && param != "" && slices.Contains(allowed, base)
}

// RemoveReserved drops server-internal scopes from scopes.
func RemoveReserved(scopes []string) []string {
	return slices.DeleteFunc(slices.Clone(scopes), IsReserved)
}

// RemoveRestrictedAndReserved drops reserved scopes and scopes the catalog
// marks restricted.
func (c *Catalog) RemoveRestrictedAndReserved(scopes []string) []string {
	return slices.DeleteFunc(slices.Clone(scopes), func(v string) bool {
		if IsReserved(v) {
			return true
		}
		base, _, _ := c.Split(v)
		s, ok := c.Get(base)
		return ok && s.Restricted
	})
}

// Exact is a Matcher requiring every requested scope to appear verbatim.
type Exact struct{}

// Covers reports whether requested is a subset of allowed.
func (Exact) Covers(allowed, requested []string) bool {
	for _, r := range requested {
		if !slices.Contains(allowed, r) {
			return false
		}
	}
	return true
}

var (
	_ Matcher = (*Catalog)(nil)
	_ Matcher = Exact{}
)
