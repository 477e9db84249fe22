// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ory/fosite"
	"github.com/redis/go-redis/v9"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	// DefaultConnectRetries is how many times the initial ping is attempted.
	DefaultConnectRetries = 5

	// DefaultKeyPrefix namespaces every key written by the server.
	DefaultKeyPrefix = "thv:idp:"
)

// RedisConfig holds Redis connection configuration. Either Addr or Sentinel
// must be set.
type RedisConfig struct {
	// Addr is a standalone server address (host:port).
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Sentinel enables failover through Redis Sentinel.
	Sentinel *SentinelConfig `mapstructure:"sentinel" yaml:"sentinel"`

	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`

	// KeyPrefix for multi-tenancy. Defaults to DefaultKeyPrefix.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ConnectRetries int           `mapstructure:"connect_retries" yaml:"connect_retries"`
}

// SentinelConfig contains Redis Sentinel configuration.
type SentinelConfig struct {
	MasterName    string   `mapstructure:"master_name" yaml:"master_name"`
	SentinelAddrs []string `mapstructure:"addrs" yaml:"addrs"`
}

// Validate checks the configuration is usable.
func (c *RedisConfig) Validate() error {
	if c.Sentinel == nil && c.Addr == "" {
		return errors.New("either addr or sentinel configuration is required")
	}
	if c.Sentinel != nil {
		if c.Sentinel.MasterName == "" {
			return errors.New("sentinel master name is required")
		}
		if len(c.Sentinel.SentinelAddrs) == 0 {
			return errors.New("at least one sentinel address is required")
		}
	}
	return nil
}

func (c *RedisConfig) applyDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ConnectRetries <= 0 {
		c.ConnectRetries = DefaultConnectRetries
	}
}

// Key types used to build Redis keys.
const (
	keyTypeClient       = "client"
	keyTypeAccess       = "access"
	keyTypeAccessValue  = "access_value"
	keyTypeIDTokenLink  = "idtoken_link"
	keyTypeRegistration = "registration"
	keyTypeRefresh      = "refresh"
	keyTypeRefreshValue = "refresh_value"
	keyTypeApproved     = "approved"
	keyTypeApprovedIdx  = "approved_idx"
	keyTypeWhitelist    = "whitelist"
	keyTypeNonce        = "nonce"
	keyTypeCode         = "code"
	keyTypeHolder       = "holder"
	keyTypePending      = "pending"
)

func redisKey(prefix, keyType string, parts ...string) string {
	key := prefix + keyType
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// hashKeyPart keeps arbitrary-length token values and nonces out of key names.
func hashKeyPart(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ttlUntil converts an absolute expiry into a Redis TTL. Zero means no expiry.
func ttlUntil(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	if d := time.Until(t); d > time.Millisecond {
		return d
	}
	return time.Millisecond
}

// getter is the read side shared by clients and transactions.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisStorage implements Storage on Redis. Multi-key operations run in
// MULTI/EXEC transactions guarded by WATCH on the keys they read.
type RedisStorage struct {
	client     redis.UniversalClient
	keyPrefix  string
	pendingTTL time.Duration
}

// NewRedisStorage connects to Redis, retrying the initial ping with
// exponential backoff.
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis configuration: %w", err)
	}
	cfg.applyDefaults()

	var client redis.UniversalClient
	if cfg.Sentinel != nil {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.Sentinel.MasterName,
			SentinelAddrs: cfg.Sentinel.SentinelAddrs,
			DB:            cfg.DB,
			Username:      cfg.Username,
			Password:      cfg.Password,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			DB:           cfg.DB,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, client.Ping(ctx).Err()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(cfg.ConnectRetries)), // #nosec G115 -- bounded by applyDefaults
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.Warnf("redis not reachable: %v, retrying in %s", err, d)
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStorageWithClient creates a RedisStorage with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string) *RedisStorage {
	return &RedisStorage{
		client:     client,
		keyPrefix:  keyPrefix,
		pendingTTL: DefaultPendingAuthorizationTTL,
	}
}

// Close closes the Redis client connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Health checks Redis connectivity.
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) key(keyType string, parts ...string) string {
	return redisKey(s.keyPrefix, keyType, parts...)
}

func notFound(what string) error {
	return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint(what+" not found"))
}

// getJSON loads and decodes key into v. A missing key yields ErrNotFound.
func getJSON(ctx context.Context, g getter, key, what string, v any) error {
	data, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound(what)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", what, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return nil
}

// watch runs fn in an optimistic transaction. Losing the race maps to ErrConflict.
func (s *RedisStorage) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	err := s.client.Watch(ctx, fn, keys...)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// -----------------------
// Clients
// -----------------------

// RegisterClient adds or replaces a client registration.
func (s *RedisStorage) RegisterClient(ctx context.Context, client *ClientRecord) error {
	if client == nil || client.ClientID == "" {
		return errors.New("client_id is required")
	}
	data, err := json.Marshal(client)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	return s.client.Set(ctx, s.key(keyTypeClient, client.ClientID), data, 0).Err()
}

// GetClient returns the client registration.
func (s *RedisStorage) GetClient(ctx context.Context, id string) (*ClientRecord, error) {
	var client ClientRecord
	if err := getJSON(ctx, s.client, s.key(keyTypeClient, id), "Client", &client); err != nil {
		return nil, err
	}
	return &client, nil
}

// -----------------------
// Access tokens
// -----------------------

func (s *RedisStorage) loadAccessToken(ctx context.Context, g getter, id string) (*AccessToken, error) {
	var token AccessToken
	if err := getJSON(ctx, g, s.key(keyTypeAccess, id), "Access token", &token); err != nil {
		return nil, err
	}
	if token.IsExpired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Access token expired"))
	}
	return &token, nil
}

// putAccessToken queues the writes for token and its indexes.
func (s *RedisStorage) putAccessToken(ctx context.Context, pipe redis.Pipeliner, token *AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}
	ttl := ttlUntil(token.Expiration)
	pipe.Set(ctx, s.key(keyTypeAccess, token.ID), data, ttl)
	pipe.Set(ctx, s.key(keyTypeAccessValue, hashKeyPart(token.Value)), token.ID, ttl)
	if token.IDTokenID != "" {
		pipe.Set(ctx, s.key(keyTypeIDTokenLink, token.IDTokenID), token.ID, ttl)
	}
	if token.HasScope(server.ScopeRegistrationToken) {
		pipe.Set(ctx, s.key(keyTypeRegistration, token.ClientID), token.ID, ttl)
	}
	return nil
}

// deleteAccessToken queues the deletes for token and its indexes.
func (s *RedisStorage) deleteAccessToken(ctx context.Context, pipe redis.Pipeliner, token *AccessToken) {
	pipe.Del(ctx, s.key(keyTypeAccess, token.ID))
	pipe.Del(ctx, s.key(keyTypeAccessValue, hashKeyPart(token.Value)))
	if token.IDTokenID != "" {
		pipe.Del(ctx, s.key(keyTypeIDTokenLink, token.IDTokenID))
	}
	if token.HasScope(server.ScopeRegistrationToken) {
		pipe.Del(ctx, s.key(keyTypeRegistration, token.ClientID))
	}
}

// SaveAccessToken stores a token, assigning an ID when it has none.
func (s *RedisStorage) SaveAccessToken(ctx context.Context, token *AccessToken) error {
	stored, err := prepareAccessToken(token)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.putAccessToken(ctx, pipe, stored)
	})
	if err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// resolveIndex follows an index key to the ID it stores.
func (s *RedisStorage) resolveIndex(ctx context.Context, key, what string) (string, error) {
	id, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		logger.Debugw(what + " not found")
		return "", notFound(what)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", what, err)
	}
	return id, nil
}

// GetAccessToken looks a token up by value.
func (s *RedisStorage) GetAccessToken(ctx context.Context, value string) (*AccessToken, error) {
	id, err := s.resolveIndex(ctx, s.key(keyTypeAccessValue, hashKeyPart(value)), "Access token")
	if err != nil {
		return nil, err
	}
	return s.loadAccessToken(ctx, s.client, id)
}

// GetAccessTokenByID looks a token up by ID.
func (s *RedisStorage) GetAccessTokenByID(ctx context.Context, id string) (*AccessToken, error) {
	return s.loadAccessToken(ctx, s.client, id)
}

// RevokeAccessToken deletes a token by ID.
func (s *RedisStorage) RevokeAccessToken(ctx context.Context, id string) error {
	return s.watch(ctx, func(tx *redis.Tx) error {
		var token AccessToken
		if err := getJSON(ctx, tx, s.key(keyTypeAccess, id), "Access token", &token); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.deleteAccessToken(ctx, pipe, &token)
			return nil
		})
		return err
	}, s.key(keyTypeAccess, id))
}

// GetAccessTokenForIDToken returns the access token linked to an ID token record.
func (s *RedisStorage) GetAccessTokenForIDToken(ctx context.Context, idTokenID string) (*AccessToken, error) {
	id, err := s.resolveIndex(ctx, s.key(keyTypeIDTokenLink, idTokenID), "Access token for ID token")
	if err != nil {
		return nil, err
	}
	return s.loadAccessToken(ctx, s.client, id)
}

// GetRegistrationAccessTokenForClient returns the client's registration access token.
func (s *RedisStorage) GetRegistrationAccessTokenForClient(ctx context.Context, clientID string) (*AccessToken, error) {
	id, err := s.resolveIndex(ctx, s.key(keyTypeRegistration, clientID), "Registration token")
	if err != nil {
		return nil, err
	}
	return s.loadAccessToken(ctx, s.client, id)
}

// SwapAccessToken revokes oldID and stores replacement in one MULTI/EXEC.
func (s *RedisStorage) SwapAccessToken(ctx context.Context, oldID string, replacement *AccessToken) error {
	stored, err := prepareAccessToken(replacement)
	if err != nil {
		return err
	}
	oldKey := s.key(keyTypeAccess, oldID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		var old AccessToken
		if err := getJSON(ctx, tx, oldKey, "Access token to replace", &old); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.deleteAccessToken(ctx, pipe, &old)
			return s.putAccessToken(ctx, pipe, stored)
		})
		return err
	}, oldKey)
}

// RotateIDToken stores newIDToken, relinks the access token to it and
// revokes the previous ID token record in one MULTI/EXEC.
func (s *RedisStorage) RotateIDToken(ctx context.Context, accessTokenID, oldIDTokenID string, newIDToken *AccessToken) error {
	stored, err := prepareAccessToken(newIDToken)
	if err != nil {
		return err
	}
	accessKey := s.key(keyTypeAccess, accessTokenID)
	oldIDKey := s.key(keyTypeAccess, oldIDTokenID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		var access AccessToken
		if err := getJSON(ctx, tx, accessKey, "Access token", &access); err != nil {
			return err
		}
		if access.IDTokenID != oldIDTokenID {
			return fmt.Errorf("%w: access token %s is no longer linked to ID token %s", ErrConflict, accessTokenID, oldIDTokenID)
		}

		var oldIDToken AccessToken
		err := getJSON(ctx, tx, oldIDKey, "ID token", &oldIDToken)
		hasOld := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if hasOld {
				s.deleteAccessToken(ctx, pipe, &oldIDToken)
			}
			pipe.Del(ctx, s.key(keyTypeIDTokenLink, oldIDTokenID))
			if err := s.putAccessToken(ctx, pipe, stored); err != nil {
				return err
			}
			access.IDTokenID = stored.ID
			return s.putAccessToken(ctx, pipe, &access)
		})
		return err
	}, accessKey, oldIDKey)
}

// -----------------------
// Refresh tokens
// -----------------------

func (s *RedisStorage) putRefreshToken(ctx context.Context, pipe redis.Pipeliner, token *RefreshToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}
	ttl := ttlUntil(token.Expiration)
	pipe.Set(ctx, s.key(keyTypeRefresh, token.ID), data, ttl)
	pipe.Set(ctx, s.key(keyTypeRefreshValue, hashKeyPart(token.Value)), token.ID, ttl)
	return nil
}

func (s *RedisStorage) deleteRefreshToken(ctx context.Context, pipe redis.Pipeliner, token *RefreshToken) {
	pipe.Del(ctx, s.key(keyTypeRefresh, token.ID))
	pipe.Del(ctx, s.key(keyTypeRefreshValue, hashKeyPart(token.Value)))
}

// SaveRefreshToken stores a refresh token, assigning an ID when it has none.
func (s *RedisStorage) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	stored, err := prepareRefreshToken(token)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.putRefreshToken(ctx, pipe, stored)
	})
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken looks a refresh token up by value.
func (s *RedisStorage) GetRefreshToken(ctx context.Context, value string) (*RefreshToken, error) {
	id, err := s.resolveIndex(ctx, s.key(keyTypeRefreshValue, hashKeyPart(value)), "Refresh token")
	if err != nil {
		return nil, err
	}
	var token RefreshToken
	if err := getJSON(ctx, s.client, s.key(keyTypeRefresh, id), "Refresh token", &token); err != nil {
		return nil, err
	}
	if token.IsExpired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Refresh token expired"))
	}
	return &token, nil
}

// RevokeRefreshToken deletes a refresh token by ID.
func (s *RedisStorage) RevokeRefreshToken(ctx context.Context, id string) error {
	key := s.key(keyTypeRefresh, id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		var token RefreshToken
		if err := getJSON(ctx, tx, key, "Refresh token", &token); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.deleteRefreshToken(ctx, pipe, &token)
			return nil
		})
		return err
	}, key)
}

// SwapRefreshToken revokes oldID and stores replacement in one MULTI/EXEC.
func (s *RedisStorage) SwapRefreshToken(ctx context.Context, oldID string, replacement *RefreshToken) error {
	stored, err := prepareRefreshToken(replacement)
	if err != nil {
		return err
	}
	oldKey := s.key(keyTypeRefresh, oldID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		var old RefreshToken
		if err := getJSON(ctx, tx, oldKey, "Refresh token to replace", &old); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.deleteRefreshToken(ctx, pipe, &old)
			return s.putRefreshToken(ctx, pipe, stored)
		})
		return err
	}, oldKey)
}

// -----------------------
// Consent
// -----------------------

// GetApprovedSitesByClientAndUser returns the live approved sites for a
// pair. Index members whose site has expired are pruned.
func (s *RedisStorage) GetApprovedSitesByClientAndUser(ctx context.Context, clientID, userID string) ([]*ApprovedSite, error) {
	idxKey := s.key(keyTypeApprovedIdx, clientID, userID)
	ids, err := s.client.SMembers(ctx, idxKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list approved sites: %w", err)
	}

	now := time.Now()
	sites := make([]*ApprovedSite, 0, len(ids))
	for _, id := range ids {
		site, err := s.GetApprovedSite(ctx, id)
		if errors.Is(err, ErrNotFound) {
			s.client.SRem(ctx, idxKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !site.IsExpired(now) {
			sites = append(sites, site)
		}
	}
	slices.SortFunc(sites, func(a, b *ApprovedSite) int {
		return a.CreationDate.Compare(b.CreationDate)
	})
	return sites, nil
}

// GetApprovedSite returns an approved site by ID.
func (s *RedisStorage) GetApprovedSite(ctx context.Context, id string) (*ApprovedSite, error) {
	var site ApprovedSite
	if err := getJSON(ctx, s.client, s.key(keyTypeApproved, id), "Approved site", &site); err != nil {
		return nil, err
	}
	if site.IsExpired(time.Now()) {
		return nil, notFound("Approved site")
	}
	return &site, nil
}

// SaveApprovedSite inserts or updates an approved site, assigning an ID when it has none.
func (s *RedisStorage) SaveApprovedSite(ctx context.Context, site *ApprovedSite) error {
	if site == nil {
		return errors.New("approved site is nil")
	}
	if site.ID == "" {
		site.ID = generateID()
	}
	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("failed to marshal approved site: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(keyTypeApproved, site.ID), data, ttlUntil(siteExpiry(site)))
		pipe.SAdd(ctx, s.key(keyTypeApprovedIdx, site.ClientID, site.UserID), site.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store approved site: %w", err)
	}
	return nil
}

// RemoveApprovedSite deletes an approved site.
func (s *RedisStorage) RemoveApprovedSite(ctx context.Context, id string) error {
	var site ApprovedSite
	if err := getJSON(ctx, s.client, s.key(keyTypeApproved, id), "Approved site", &site); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(keyTypeApproved, id))
		pipe.SRem(ctx, s.key(keyTypeApprovedIdx, site.ClientID, site.UserID), id)
		return nil
	})
	return err
}

// GetWhitelistedSiteByClientID returns the whitelist entry for a client.
func (s *RedisStorage) GetWhitelistedSiteByClientID(ctx context.Context, clientID string) (*WhitelistedSite, error) {
	var site WhitelistedSite
	if err := getJSON(ctx, s.client, s.key(keyTypeWhitelist, clientID), "Whitelisted site", &site); err != nil {
		return nil, err
	}
	return &site, nil
}

// SaveWhitelistedSite inserts or replaces the whitelist entry for a client.
func (s *RedisStorage) SaveWhitelistedSite(ctx context.Context, site *WhitelistedSite) error {
	if site == nil || site.ClientID == "" {
		return errors.New("whitelisted site requires a client_id")
	}
	if site.ID == "" {
		site.ID = generateID()
	}
	data, err := json.Marshal(site)
	if err != nil {
		return fmt.Errorf("failed to marshal whitelisted site: %w", err)
	}
	return s.client.Set(ctx, s.key(keyTypeWhitelist, site.ClientID), data, 0).Err()
}

// -----------------------
// Nonces
// -----------------------

// UseNonce records a nonce with SET NX so exactly one concurrent caller wins.
func (s *RedisStorage) UseNonce(ctx context.Context, nonce *Nonce) error {
	if nonce == nil || nonce.Value == "" {
		return errors.New("nonce value is required")
	}
	if !nonce.ExpireDate.IsZero() && !time.Now().Before(nonce.ExpireDate) {
		// Already outside the replay window.
		return nil
	}
	data, err := json.Marshal(nonce)
	if err != nil {
		return fmt.Errorf("failed to marshal nonce: %w", err)
	}
	key := s.key(keyTypeNonce, nonce.ClientID, hashKeyPart(nonce.Value))
	ok, err := s.client.SetNX(ctx, key, data, ttlUntil(nonce.ExpireDate)).Result()
	if err != nil {
		return fmt.Errorf("failed to record nonce: %w", err)
	}
	if !ok {
		return server.NonceReuse(nonce.ClientID)
	}
	return nil
}

// -----------------------
// Authorization codes
// -----------------------

// CreateAuthorizationCode stores a new one-time code.
func (s *RedisStorage) CreateAuthorizationCode(ctx context.Context, code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return errors.New("authorization code is required")
	}
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(keyTypeCode, hashKeyPart(code.Code)), data, ttlUntil(code.Expiration)).Result()
	if err != nil {
		return fmt.Errorf("failed to store authorization code: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: authorization code", ErrAlreadyExists)
	}
	return nil
}

// ConsumeAuthorizationCode deletes and returns a code with GETDEL.
func (s *RedisStorage) ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	data, err := s.client.GetDel(ctx, s.key(keyTypeCode, hashKeyPart(code))).Bytes()
	if errors.Is(err, redis.Nil) {
		logger.Debugw("authorization code not found")
		return nil, notFound("Authorization code")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	var stored AuthorizationCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}
	if time.Now().After(stored.Expiration) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Authorization code expired"))
	}
	return &stored, nil
}

// -----------------------
// Authentication holders
// -----------------------

// SaveAuthenticationHolder stores a holder, assigning an ID when it has none.
func (s *RedisStorage) SaveAuthenticationHolder(ctx context.Context, holder *AuthenticationHolder) error {
	if holder == nil {
		return errors.New("authentication holder is nil")
	}
	if holder.ID == "" {
		holder.ID = generateID()
	}
	data, err := json.Marshal(holder)
	if err != nil {
		return fmt.Errorf("failed to marshal authentication holder: %w", err)
	}
	return s.client.Set(ctx, s.key(keyTypeHolder, holder.ID), data, 0).Err()
}

// GetAuthenticationHolder returns a holder by ID.
func (s *RedisStorage) GetAuthenticationHolder(ctx context.Context, id string) (*AuthenticationHolder, error) {
	var holder AuthenticationHolder
	if err := getJSON(ctx, s.client, s.key(keyTypeHolder, id), "Authentication holder", &holder); err != nil {
		return nil, err
	}
	return &holder, nil
}

// RemoveAuthenticationHolder deletes a holder.
func (s *RedisStorage) RemoveAuthenticationHolder(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(keyTypeHolder, id)).Err()
}

// -----------------------
// Pending authorizations
// -----------------------

// StorePendingAuthorization keeps a request awaiting consent under key.
func (s *RedisStorage) StorePendingAuthorization(ctx context.Context, key string, req *server.AuthorizationRequest) error {
	if key == "" {
		return errors.New("pending authorization key is required")
	}
	if req == nil {
		return errors.New("pending authorization is nil")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal pending authorization: %w", err)
	}
	return s.client.Set(ctx, s.key(keyTypePending, key), data, s.pendingTTL).Err()
}

// LoadPendingAuthorization returns the request stored under key.
func (s *RedisStorage) LoadPendingAuthorization(ctx context.Context, key string) (*server.AuthorizationRequest, error) {
	req := server.NewAuthorizationRequest()
	if err := getJSON(ctx, s.client, s.key(keyTypePending, key), "Pending authorization", req); err != nil {
		return nil, err
	}
	return req, nil
}

// DeletePendingAuthorization removes the request stored under key.
func (s *RedisStorage) DeletePendingAuthorization(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(keyTypePending, key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete pending authorization: %w", err)
	}
	if n == 0 {
		return notFound("Pending authorization")
	}
	return nil
}

var _ Storage = (*RedisStorage)(nil)
