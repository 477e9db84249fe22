// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// TokenHash computes an OIDC left-half hash (at_hash, c_hash) of value using
// the hash function of alg's family. Unknown algorithms use SHA-256.
func TokenHash(alg jose.SignatureAlgorithm, value string) string {
	var h hash.Hash
	switch {
	case strings.HasSuffix(string(alg), "384"):
		h = sha512.New384()
	case strings.HasSuffix(string(alg), "512"):
		h = sha512.New()
	default:
		h = sha256.New()
	}
	h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
