// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageWithClient(client, "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     RedisConfig
		wantErr string
	}{
		{name: "standalone", cfg: RedisConfig{Addr: "localhost:6379"}},
		{name: "sentinel", cfg: RedisConfig{Sentinel: &SentinelConfig{MasterName: "m", SentinelAddrs: []string{"s:26379"}}}},
		{name: "empty", cfg: RedisConfig{}, wantErr: "either addr or sentinel"},
		{name: "sentinel without master", cfg: RedisConfig{Sentinel: &SentinelConfig{SentinelAddrs: []string{"s"}}}, wantErr: "master name"},
		{name: "sentinel without addrs", cfg: RedisConfig{Sentinel: &SentinelConfig{MasterName: "m"}}, wantErr: "sentinel address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRedisStorage_Connects(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	s, err := NewRedisStorage(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Health(context.Background()))
	assert.Equal(t, DefaultKeyPrefix, s.keyPrefix)
}

func TestNewRedisStorage_GivesUp(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewRedisStorage(ctx, RedisConfig{Addr: addr, ConnectRetries: 1, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestRedisStorage_KeysUseTTL(t *testing.T) {
	t.Parallel()
	s, mr := newTestRedisStorage(t)
	ctx := context.Background()

	token := &AccessToken{Value: "v", ClientID: "c", Expiration: time.Now().Add(time.Minute)}
	require.NoError(t, s.SaveAccessToken(ctx, token))

	key := redisKey("test:", keyTypeAccess, token.ID)
	assert.True(t, mr.Exists(key))
	assert.Positive(t, mr.TTL(key))

	mr.FastForward(2 * time.Minute)
	_, err := s.GetAccessToken(ctx, "v")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorage_TokenValuesAreHashedInKeys(t *testing.T) {
	t.Parallel()
	s, mr := newTestRedisStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAccessToken(ctx, &AccessToken{Value: "secret-token-value", ClientID: "c"}))
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "secret-token-value")
	}
}

func TestRedisStorage_NonceExpiresWithRecord(t *testing.T) {
	t.Parallel()
	s, mr := newTestRedisStorage(t)
	ctx := context.Background()

	n := &Nonce{ClientID: "c", Value: "n", UseDate: time.Now(), ExpireDate: time.Now().Add(time.Minute)}
	require.NoError(t, s.UseNonce(ctx, n))
	require.Error(t, s.UseNonce(ctx, n))

	mr.FastForward(2 * time.Minute)
	n.ExpireDate = time.Now().Add(time.Minute)
	require.NoError(t, s.UseNonce(ctx, n))
}

func TestRedisStorage_PrunesDanglingApprovedSiteIndex(t *testing.T) {
	t.Parallel()
	s, mr := newTestRedisStorage(t)
	ctx := context.Background()

	timeout := time.Now().Add(time.Minute)
	site := &ApprovedSite{ClientID: "c", UserID: "u", TimeoutDate: &timeout, CreationDate: time.Now()}
	require.NoError(t, s.SaveApprovedSite(ctx, site))

	mr.FastForward(2 * time.Minute)
	sites, err := s.GetApprovedSitesByClientAndUser(ctx, "c", "u")
	require.NoError(t, err)
	assert.Empty(t, sites)

	members, err := mr.Members(redisKey("test:", keyTypeApprovedIdx, "c", "u"))
	if err == nil {
		assert.Empty(t, members)
	}
}
