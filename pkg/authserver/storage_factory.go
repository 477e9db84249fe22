// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"fmt"

	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// NewStorage creates the storage backend described by cfg. Redis is pinged,
// with retries, before it is returned.
func NewStorage(ctx context.Context, cfg storage.Config) (storage.Storage, error) {
	switch cfg.Type {
	case storage.TypeMemory, "":
		logger.Debugw("using in-memory storage")
		return storage.NewMemoryStorage(), nil

	case storage.TypeRedis:
		logger.Debugw("using redis storage", "addr", cfg.Redis.Addr, "sentinel", cfg.Redis.Sentinel != nil)
		stor, err := storage.NewRedisStorage(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return stor, nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
