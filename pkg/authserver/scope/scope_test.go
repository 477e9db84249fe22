// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *Catalog {
	return NewCatalog(
		SystemScope{Value: "openid", DefaultScope: true},
		SystemScope{Value: "profile", DefaultScope: true},
		SystemScope{Value: "admin", Restricted: true},
		SystemScope{Value: "files", Structured: true, StructuredParamDescription: "path"},
	)
}

func TestCatalog_Covers(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	tests := []struct {
		name      string
		allowed   []string
		requested []string
		want      bool
	}{
		{name: "empty request", allowed: []string{"openid"}, requested: nil, want: true},
		{name: "exact subset", allowed: []string{"openid", "profile"}, requested: []string{"profile"}, want: true},
		{name: "missing scope", allowed: []string{"openid"}, requested: []string{"profile"}, want: false},
		{name: "bare structured covers param", allowed: []string{"files"}, requested: []string{"files:/tmp"}, want: true},
		{name: "param does not cover other param", allowed: []string{"files:/tmp"}, requested: []string{"files:/etc"}, want: false},
		{name: "param covers same param", allowed: []string{"files:/tmp"}, requested: []string{"files:/tmp"}, want: true},
		{name: "param does not cover bare", allowed: []string{"files:/tmp"}, requested: []string{"files"}, want: false},
		{name: "unstructured colon value is literal", allowed: []string{"urn"}, requested: []string{"urn:x"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, c.Covers(tt.allowed, tt.requested))
		})
	}
}

func TestCatalog_Split(t *testing.T) {
	t.Parallel()

	c := testCatalog()

	base, param, ok := c.Split("files:/a:b")
	assert.True(t, ok)
	assert.Equal(t, "files", base)
	assert.Equal(t, "/a:b", param)

	base, param, ok = c.Split("profile:x")
	assert.False(t, ok)
	assert.Equal(t, "profile:x", base)
	assert.Empty(t, param)

	assert.True(t, c.IsStructured("files"))
	assert.False(t, c.IsStructured("openid"))
}

func TestCatalog_Filters(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	assert.Equal(t, []string{"openid", "profile"}, Values(c.Defaults()))
	assert.Equal(t, []string{"files", "openid", "profile"}, Values(c.Unrestricted()))

	c.Save(SystemScope{Value: "email", DefaultScope: true})
	assert.Equal(t, []string{"email", "openid", "profile"}, Values(c.Defaults()))
	c.Remove("email")
	_, ok := c.Get("email")
	assert.False(t, ok)
}

func TestRemoveRestrictedAndReserved(t *testing.T) {
	t.Parallel()

	c := testCatalog()
	in := []string{"openid", "admin", "registration_token", "files:/x", "id_token"}
	assert.Equal(t, []string{"openid", "files:/x"}, c.RemoveRestrictedAndReserved(in))
	assert.Equal(t, []string{"openid", "admin", "files:/x"}, RemoveReserved(in))
	assert.Len(t, in, 5, "input must not be modified")
}

func TestExact_Covers(t *testing.T) {
	t.Parallel()

	assert.True(t, Exact{}.Covers([]string{"a", "b"}, []string{"b"}))
	assert.False(t, Exact{}.Covers([]string{"files"}, []string{"files:/tmp"}))
}
