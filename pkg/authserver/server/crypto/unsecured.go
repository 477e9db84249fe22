// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SignUnsecured serializes claims as an unsecured JWT (alg "none").
func SignUnsecured(claims map[string]any) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims(claims))
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return "", fmt.Errorf("failed to serialize unsecured JWT: %w", err)
	}
	return s, nil
}

// ParseUnverified decodes the header and claims of a compact JWS or
// unsecured JWT without checking any signature.
func ParseUnverified(token string) (map[string]any, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, nil, err
	}
	return parsed.Header, claims, nil
}
