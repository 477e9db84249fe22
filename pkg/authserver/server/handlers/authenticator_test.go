// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderAuthenticator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		auth         HeaderAuthenticator
		headers      map[string]string
		wantSubject  string
		wantAuthTime time.Time
		wantErr      bool
	}{
		{
			name: "no session",
		},
		{
			name:        "subject only",
			headers:     map[string]string{DefaultUserHeader: "alice"},
			wantSubject: "alice",
		},
		{
			name:         "subject and auth time",
			headers:      map[string]string{DefaultUserHeader: "alice", DefaultAuthTimeHeader: "1700000000"},
			wantSubject:  "alice",
			wantAuthTime: time.Unix(1700000000, 0),
		},
		{
			name:    "malformed auth time",
			headers: map[string]string{DefaultUserHeader: "alice", DefaultAuthTimeHeader: "yesterday"},
			wantErr: true,
		},
		{
			name:         "custom headers",
			auth:         HeaderAuthenticator{UserHeader: "X-Remote-User", AuthTimeHeader: "X-Remote-Auth"},
			headers:      map[string]string{"X-Remote-User": "bob", "X-Remote-Auth": "42", DefaultUserHeader: "mallory"},
			wantSubject:  "bob",
			wantAuthTime: time.Unix(42, 0),
		},
		{
			name:    "default header ignored when overridden",
			auth:    HeaderAuthenticator{UserHeader: "X-Remote-User"},
			headers: map[string]string{DefaultUserHeader: "mallory"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got, err := tt.auth.Authenticate(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantSubject == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantSubject, got.Subject)
			assert.True(t, got.Authenticated)
			assert.True(t, tt.wantAuthTime.Equal(got.AuthTime))
		})
	}
}
