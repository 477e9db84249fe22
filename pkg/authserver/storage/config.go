// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import "time"

// Type defines the type of storage backend.
type Type string

const (
	// TypeMemory uses in-memory storage (default).
	TypeMemory Type = "memory"

	// TypeRedis uses a Redis server.
	TypeRedis Type = "redis"

	// DefaultCleanupInterval is how often the background cleanup runs.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultPendingAuthorizationTTL bounds how long a consent page stays valid.
	DefaultPendingAuthorizationTTL = 10 * time.Minute
)

// Config configures the storage backend.
type Config struct {
	// Type specifies the storage backend type. Defaults to memory.
	Type Type `mapstructure:"type" yaml:"type"`

	// Redis configures the Redis backend when Type is redis.
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{Type: TypeMemory}
}
