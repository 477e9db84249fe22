// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-idp/pkg/authserver/request"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	oauthserver "github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server/keys"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// EnvPrefix prefixes environment overrides, e.g. THV_IDP_ISSUER.
const EnvPrefix = "THV_IDP"

// Defaults applied by applyDefaults.
const (
	DefaultListenAddress        = ":8080"
	DefaultAccessTokenLifespan  = time.Hour
	DefaultRefreshTokenLifespan = 30 * 24 * time.Hour
	DefaultIDTokenLifespan      = 10 * time.Minute
	DefaultAuthCodeLifespan     = 5 * time.Minute
	DefaultNonceLifespan        = 5 * time.Minute
	DefaultTokenRateLimit       = 10.0
	DefaultTokenRateBurst       = 20
	DefaultShutdownTimeout      = 15 * time.Second
)

// Assertion validation modes for the jwt-bearer grant.
const (
	// AssertionModeNone rejects every assertion.
	AssertionModeNone = "none"
	// AssertionModeSelf accepts assertions signed by this server.
	AssertionModeSelf = "self"
	// AssertionModeTrustedIssuers accepts assertions from the configured issuers.
	AssertionModeTrustedIssuers = "trusted_issuers"
)

// Config is the configuration of the authorization server.
type Config struct {
	// Issuer is the external base URL of the server. It is the "iss" of
	// every token and the prefix of every endpoint in discovery.
	Issuer string `mapstructure:"issuer" yaml:"issuer"`

	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Keys          keys.Config         `mapstructure:"keys" yaml:"keys"`
	Tokens        TokenConfig         `mapstructure:"tokens" yaml:"tokens"`
	Storage       storage.Config      `mapstructure:"storage" yaml:"storage"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit" yaml:"rate_limit"`
	Authenticator AuthenticatorConfig `mapstructure:"authenticator" yaml:"authenticator"`
	Assertions    AssertionConfig     `mapstructure:"assertions" yaml:"assertions"`

	// Clients are registered at startup, replacing stored records with the
	// same client_id.
	Clients []storage.ClientRecord `mapstructure:"clients" yaml:"clients"`

	// WhitelistedSites pre-approve scopes for clients.
	WhitelistedSites []storage.WhitelistedSite `mapstructure:"whitelisted_sites" yaml:"whitelisted_sites"`

	// Scopes is the system scope catalog. Empty means scope.DefaultScopes.
	Scopes []scope.SystemScope `mapstructure:"scopes" yaml:"scopes"`

	// AllowedAudiences are the resource servers clients may name with an
	// RFC 8707 resource parameter. Empty rejects every resource parameter.
	AllowedAudiences []string `mapstructure:"allowed_audiences" yaml:"allowed_audiences"`
}

// TokenConfig holds token lifetimes. Per-client validity overrides win.
type TokenConfig struct {
	AccessTokenLifespan  time.Duration `mapstructure:"access_token_lifespan" yaml:"access_token_lifespan"`
	RefreshTokenLifespan time.Duration `mapstructure:"refresh_token_lifespan" yaml:"refresh_token_lifespan"`
	IDTokenLifespan      time.Duration `mapstructure:"id_token_lifespan" yaml:"id_token_lifespan"`
	AuthCodeLifespan     time.Duration `mapstructure:"auth_code_lifespan" yaml:"auth_code_lifespan"`
	NonceLifespan        time.Duration `mapstructure:"nonce_lifespan" yaml:"nonce_lifespan"`
}

// RateLimitConfig limits token endpoint requests per client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// AuthenticatorConfig names the headers a fronting proxy sets for the
// authenticated end-user.
type AuthenticatorConfig struct {
	UserHeader     string `mapstructure:"user_header" yaml:"user_header"`
	AuthTimeHeader string `mapstructure:"auth_time_header" yaml:"auth_time_header"`
}

// AssertionConfig selects how jwt-bearer assertions are validated.
type AssertionConfig struct {
	Mode           string          `mapstructure:"mode" yaml:"mode"`
	TrustedIssuers []TrustedIssuer `mapstructure:"trusted_issuers" yaml:"trusted_issuers"`
}

// TrustedIssuer is an external issuer whose assertions are accepted.
type TrustedIssuer struct {
	Issuer  string `mapstructure:"issuer" yaml:"issuer"`
	JWKSURI string `mapstructure:"jwks_uri" yaml:"jwks_uri"`
}

// applyDefaults fills unset values.
func (c *Config) applyDefaults() {
	c.Issuer = strings.TrimSuffix(c.Issuer, "/")
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Tokens.AccessTokenLifespan <= 0 {
		c.Tokens.AccessTokenLifespan = DefaultAccessTokenLifespan
	}
	if c.Tokens.RefreshTokenLifespan <= 0 {
		c.Tokens.RefreshTokenLifespan = DefaultRefreshTokenLifespan
	}
	if c.Tokens.IDTokenLifespan <= 0 {
		c.Tokens.IDTokenLifespan = DefaultIDTokenLifespan
	}
	if c.Tokens.AuthCodeLifespan <= 0 {
		c.Tokens.AuthCodeLifespan = DefaultAuthCodeLifespan
	}
	if c.Tokens.NonceLifespan <= 0 {
		c.Tokens.NonceLifespan = DefaultNonceLifespan
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = DefaultTokenRateLimit
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultTokenRateBurst
	}
	if c.Storage.Type == "" {
		c.Storage.Type = storage.TypeMemory
	}
	if c.Assertions.Mode == "" {
		c.Assertions.Mode = AssertionModeNone
	}
	if len(c.Scopes) == 0 {
		c.Scopes = scope.DefaultScopes()
	}
}

// Validate checks that the Config is usable. It expects applyDefaults to
// have run.
func (c *Config) Validate() error {
	logger.Debugw("validating authserver config", "issuer", c.Issuer)

	if err := validateIssuer(c.Issuer); err != nil {
		return err
	}

	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypeRedis:
		if err := c.Storage.Redis.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}

	if c.Keys.KeyDir != "" && c.Keys.SigningKeyFile == "" {
		return errors.New("keys: signing_key_file is required when key_dir is set")
	}

	seen := make(map[string]struct{}, len(c.Clients))
	for i, client := range c.Clients {
		if client.ClientID == "" {
			return fmt.Errorf("client %d: client_id is required", i)
		}
		if _, dup := seen[client.ClientID]; dup {
			return fmt.Errorf("client %d: duplicate client_id %q", i, client.ClientID)
		}
		seen[client.ClientID] = struct{}{}
	}
	for i, site := range c.WhitelistedSites {
		if site.ClientID == "" {
			return fmt.Errorf("whitelisted site %d: client_id is required", i)
		}
	}

	for i, s := range c.Scopes {
		if s.Value == "" {
			return fmt.Errorf("scope %d: value is required", i)
		}
	}

	for i, aud := range c.AllowedAudiences {
		if aud == "" {
			return fmt.Errorf("allowed audience %d is empty", i)
		}
		if err := oauthserver.ValidateAudienceURI(aud); err != nil {
			return fmt.Errorf("allowed audience %q: %w", aud, err)
		}
	}

	switch c.Assertions.Mode {
	case AssertionModeNone, AssertionModeSelf:
	case AssertionModeTrustedIssuers:
		if len(c.Assertions.TrustedIssuers) == 0 {
			return errors.New("assertions: at least one trusted issuer is required")
		}
		for i, ti := range c.Assertions.TrustedIssuers {
			if ti.Issuer == "" || ti.JWKSURI == "" {
				return fmt.Errorf("assertions: trusted issuer %d needs issuer and jwks_uri", i)
			}
		}
	default:
		return fmt.Errorf("assertions: unknown mode %q", c.Assertions.Mode)
	}

	logger.Debugw("authserver config validation passed",
		"issuer", c.Issuer,
		"storage", c.Storage.Type,
		"clientCount", len(c.Clients),
	)
	return nil
}

// validateIssuer checks the issuer is an absolute https URL without query or
// fragment (OIDC Discovery 1.0 Section 3). Plain http is allowed for
// loopback development servers.
func validateIssuer(issuer string) error {
	if issuer == "" {
		return errors.New("issuer is required")
	}
	u, err := url.Parse(issuer)
	if err != nil || u.Host == "" {
		return fmt.Errorf("issuer must be an absolute URL: %q", issuer)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("issuer must not contain a query or fragment: %q", issuer)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if request.IsLoopbackHost(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("issuer must use https: %q", issuer)
	default:
		return fmt.Errorf("issuer must use https: %q", issuer)
	}
}

// LoadConfig reads the configuration file at path (YAML or JSON) and
// applies THV_IDP_* environment overrides, e.g. THV_IDP_ISSUER or
// THV_IDP_STORAGE_REDIS_ADDR. The returned config has defaults applied and
// is validated.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"issuer", "listen_address", "shutdown_timeout",
		"keys.key_dir", "keys.signing_key_file", "keys.decryption_key_file", "keys.algorithm",
		"storage.type", "storage.redis.addr", "storage.redis.password", "storage.redis.db", "storage.redis.key_prefix",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// viper's default decode hooks parse durations such as "15m".
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
