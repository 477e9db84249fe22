// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ory/fosite"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// timedEntry wraps a value with its expiry. A zero expiresAt never expires.
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStorage implements Storage with in-memory maps guarded by a single
// lock. Every multi-record operation (code consumption, nonce recording,
// token swaps) runs under the write lock and is therefore atomic.
type MemoryStorage struct {
	mu sync.RWMutex

	clients map[string]*ClientRecord

	// accessTokens maps token ID -> token. accessTokenValues indexes the
	// serialized value for bearer lookup.
	accessTokens      map[string]*timedEntry[*AccessToken]
	accessTokenValues map[string]string

	// idTokenLinks maps ID token record ID -> owning access token ID.
	idTokenLinks map[string]string

	// registrationTokens maps client ID -> registration access token ID.
	registrationTokens map[string]string

	refreshTokens      map[string]*timedEntry[*RefreshToken]
	refreshTokenValues map[string]string

	approvedSites    map[string]*timedEntry[*ApprovedSite]
	whitelistedSites map[string]*WhitelistedSite

	// nonces is keyed by nonceKey(client, value).
	nonces map[string]*timedEntry[*Nonce]

	authCodes map[string]*timedEntry[*AuthorizationCode]
	holders   map[string]*AuthenticationHolder

	pendingAuthorizations map[string]*timedEntry[*server.AuthorizationRequest]
	pendingTTL            time.Duration

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

// MemoryStorageOption configures a MemoryStorage instance.
type MemoryStorageOption func(*MemoryStorage)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if interval > 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithPendingAuthorizationTTL sets how long pending consent requests live.
func WithPendingAuthorizationTTL(ttl time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if ttl > 0 {
			s.pendingTTL = ttl
		}
	}
}

// NewMemoryStorage creates a new MemoryStorage and starts its background
// cleanup goroutine. Call Close to stop it.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		clients:               make(map[string]*ClientRecord),
		accessTokens:          make(map[string]*timedEntry[*AccessToken]),
		accessTokenValues:     make(map[string]string),
		idTokenLinks:          make(map[string]string),
		registrationTokens:    make(map[string]string),
		refreshTokens:         make(map[string]*timedEntry[*RefreshToken]),
		refreshTokenValues:    make(map[string]string),
		approvedSites:         make(map[string]*timedEntry[*ApprovedSite]),
		whitelistedSites:      make(map[string]*WhitelistedSite),
		nonces:                make(map[string]*timedEntry[*Nonce]),
		authCodes:             make(map[string]*timedEntry[*AuthorizationCode]),
		holders:               make(map[string]*AuthenticationHolder),
		pendingAuthorizations: make(map[string]*timedEntry[*server.AuthorizationRequest]),
		pendingTTL:            DefaultPendingAuthorizationTTL,
		cleanupInterval:       DefaultCleanupInterval,
		stopCleanup:           make(chan struct{}),
		cleanupDone:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Health always succeeds for in-memory storage.
func (*MemoryStorage) Health(_ context.Context) error {
	return nil
}

// Close stops the cleanup goroutine and waits for it to exit.
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCleanup)
		<-s.cleanupDone
	})
	return nil
}

func (s *MemoryStorage) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func collectExpired[T any](m map[string]*timedEntry[T], now time.Time) []string {
	var keys []string
	for k, v := range m {
		if v.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// cleanupExpired removes expired records. Keys are collected under the read
// lock and deleted under the write lock so lookups are not blocked by the scan.
func (s *MemoryStorage) cleanupExpired() {
	now := time.Now()

	s.mu.RLock()
	expiredAccessTokens := collectExpired(s.accessTokens, now)
	expiredRefreshTokens := collectExpired(s.refreshTokens, now)
	expiredSites := collectExpired(s.approvedSites, now)
	expiredNonces := collectExpired(s.nonces, now)
	expiredCodes := collectExpired(s.authCodes, now)
	expiredPending := collectExpired(s.pendingAuthorizations, now)
	s.mu.RUnlock()

	total := len(expiredAccessTokens) + len(expiredRefreshTokens) + len(expiredSites) +
		len(expiredNonces) + len(expiredCodes) + len(expiredPending)
	if total == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range expiredAccessTokens {
		// Re-check: the entry may have been replaced since the scan.
		if e, ok := s.accessTokens[k]; ok && e.expired(now) {
			s.deleteAccessTokenLocked(k)
		}
	}
	for _, k := range expiredRefreshTokens {
		if e, ok := s.refreshTokens[k]; ok && e.expired(now) {
			s.deleteRefreshTokenLocked(k)
		}
	}
	for _, k := range expiredSites {
		delete(s.approvedSites, k)
	}
	for _, k := range expiredNonces {
		delete(s.nonces, k)
	}
	for _, k := range expiredCodes {
		delete(s.authCodes, k)
	}
	for _, k := range expiredPending {
		delete(s.pendingAuthorizations, k)
	}

	logger.Debugw("removed expired storage records", "count", total)
}

// -----------------------
// Clients
// -----------------------

// RegisterClient adds or replaces a client registration.
func (s *MemoryStorage) RegisterClient(_ context.Context, client *ClientRecord) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[client.ClientID] = client.Clone()
	return nil
}

// GetClient returns a copy of the client registration.
func (s *MemoryStorage) GetClient(_ context.Context, id string) (*ClientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		logger.Debugw("client not found", "client_id", id)
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Client not found"))
	}
	return client.Clone(), nil
}

// -----------------------
// Access tokens
// -----------------------

func cloneAccessToken(t *AccessToken) *AccessToken {
	cp := *t
	cp.Scope = slices.Clone(t.Scope)
	return &cp
}

func prepareAccessToken(token *AccessToken) (*AccessToken, error) {
	if token == nil {
		return nil, fmt.Errorf("access token is nil")
	}
	if token.Value == "" {
		return nil, fmt.Errorf("access token value is required")
	}
	if token.ID == "" {
		token.ID = generateID()
	}
	if token.TokenType == "" {
		token.TokenType = TokenTypeBearer
	}
	return cloneAccessToken(token), nil
}

// putAccessTokenLocked stores token and its indexes. Caller holds the write lock.
func (s *MemoryStorage) putAccessTokenLocked(token *AccessToken) {
	if old, ok := s.accessTokens[token.ID]; ok {
		if old.value.Value != token.Value {
			delete(s.accessTokenValues, old.value.Value)
		}
		if old.value.IDTokenID != "" && old.value.IDTokenID != token.IDTokenID {
			delete(s.idTokenLinks, old.value.IDTokenID)
		}
	}
	s.accessTokens[token.ID] = &timedEntry[*AccessToken]{value: token, expiresAt: token.Expiration}
	s.accessTokenValues[token.Value] = token.ID
	if token.IDTokenID != "" {
		s.idTokenLinks[token.IDTokenID] = token.ID
	}
	if token.HasScope(server.ScopeRegistrationToken) {
		s.registrationTokens[token.ClientID] = token.ID
	}
}

// deleteAccessTokenLocked removes a token and every index pointing at it.
// Caller holds the write lock.
func (s *MemoryStorage) deleteAccessTokenLocked(id string) bool {
	entry, ok := s.accessTokens[id]
	if !ok {
		return false
	}
	token := entry.value
	delete(s.accessTokens, id)
	delete(s.accessTokenValues, token.Value)
	if token.IDTokenID != "" && s.idTokenLinks[token.IDTokenID] == id {
		delete(s.idTokenLinks, token.IDTokenID)
	}
	if s.registrationTokens[token.ClientID] == id {
		delete(s.registrationTokens, token.ClientID)
	}
	return true
}

// SaveAccessToken stores a token, assigning an ID when it has none.
func (s *MemoryStorage) SaveAccessToken(_ context.Context, token *AccessToken) error {
	stored, err := prepareAccessToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putAccessTokenLocked(stored)
	return nil
}

func (s *MemoryStorage) getAccessTokenLocked(id string) (*AccessToken, error) {
	entry, ok := s.accessTokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	if entry.expired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Access token expired"))
	}
	return cloneAccessToken(entry.value), nil
}

// GetAccessToken looks a token up by value.
func (s *MemoryStorage) GetAccessToken(_ context.Context, value string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accessTokenValues[value]
	if !ok {
		logger.Debugw("access token not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	return s.getAccessTokenLocked(id)
}

// GetAccessTokenByID looks a token up by ID.
func (s *MemoryStorage) GetAccessTokenByID(_ context.Context, id string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getAccessTokenLocked(id)
}

// RevokeAccessToken deletes a token by ID.
func (s *MemoryStorage) RevokeAccessToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deleteAccessTokenLocked(id) {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	return nil
}

// GetAccessTokenForIDToken returns the access token linked to an ID token record.
func (s *MemoryStorage) GetAccessTokenForIDToken(_ context.Context, idTokenID string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idTokenLinks[idTokenID]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("No access token for ID token"))
	}
	return s.getAccessTokenLocked(id)
}

// GetRegistrationAccessTokenForClient returns the client's registration access token.
func (s *MemoryStorage) GetRegistrationAccessTokenForClient(_ context.Context, clientID string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.registrationTokens[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("No registration token for client"))
	}
	return s.getAccessTokenLocked(id)
}

// SwapAccessToken revokes oldID and stores replacement atomically.
func (s *MemoryStorage) SwapAccessToken(_ context.Context, oldID string, replacement *AccessToken) error {
	stored, err := prepareAccessToken(replacement)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deleteAccessTokenLocked(oldID) {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token to replace not found"))
	}
	s.putAccessTokenLocked(stored)
	return nil
}

// RotateIDToken stores newIDToken, relinks the access token to it and
// revokes the previous ID token record, all under one lock.
func (s *MemoryStorage) RotateIDToken(_ context.Context, accessTokenID, oldIDTokenID string, newIDToken *AccessToken) error {
	stored, err := prepareAccessToken(newIDToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.accessTokens[accessTokenID]
	if !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Access token not found"))
	}
	if entry.value.IDTokenID != oldIDTokenID {
		return fmt.Errorf("%w: access token %s is no longer linked to ID token %s", ErrConflict, accessTokenID, oldIDTokenID)
	}

	s.deleteAccessTokenLocked(oldIDTokenID)
	s.putAccessTokenLocked(stored)

	access := cloneAccessToken(entry.value)
	access.IDTokenID = stored.ID
	s.putAccessTokenLocked(access)
	return nil
}

// -----------------------
// Refresh tokens
// -----------------------

func prepareRefreshToken(token *RefreshToken) (*RefreshToken, error) {
	if token == nil {
		return nil, fmt.Errorf("refresh token is nil")
	}
	if token.Value == "" {
		return nil, fmt.Errorf("refresh token value is required")
	}
	if token.ID == "" {
		token.ID = generateID()
	}
	cp := *token
	return &cp, nil
}

func (s *MemoryStorage) deleteRefreshTokenLocked(id string) bool {
	entry, ok := s.refreshTokens[id]
	if !ok {
		return false
	}
	delete(s.refreshTokens, id)
	delete(s.refreshTokenValues, entry.value.Value)
	return true
}

func (s *MemoryStorage) putRefreshTokenLocked(token *RefreshToken) {
	if old, ok := s.refreshTokens[token.ID]; ok && old.value.Value != token.Value {
		delete(s.refreshTokenValues, old.value.Value)
	}
	s.refreshTokens[token.ID] = &timedEntry[*RefreshToken]{value: token, expiresAt: token.Expiration}
	s.refreshTokenValues[token.Value] = token.ID
}

// SaveRefreshToken stores a refresh token, assigning an ID when it has none.
func (s *MemoryStorage) SaveRefreshToken(_ context.Context, token *RefreshToken) error {
	stored, err := prepareRefreshToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putRefreshTokenLocked(stored)
	return nil
}

// GetRefreshToken looks a refresh token up by value.
func (s *MemoryStorage) GetRefreshToken(_ context.Context, value string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.refreshTokenValues[value]
	if !ok {
		logger.Debugw("refresh token not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Refresh token not found"))
	}
	entry := s.refreshTokens[id]
	if entry.expired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Refresh token expired"))
	}
	cp := *entry.value
	return &cp, nil
}

// RevokeRefreshToken deletes a refresh token by ID.
func (s *MemoryStorage) RevokeRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deleteRefreshTokenLocked(id) {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Refresh token not found"))
	}
	return nil
}

// SwapRefreshToken revokes oldID and stores replacement atomically.
func (s *MemoryStorage) SwapRefreshToken(_ context.Context, oldID string, replacement *RefreshToken) error {
	stored, err := prepareRefreshToken(replacement)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deleteRefreshTokenLocked(oldID) {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Refresh token to replace not found"))
	}
	s.putRefreshTokenLocked(stored)
	return nil
}

// -----------------------
// Consent
// -----------------------

func cloneApprovedSite(site *ApprovedSite) *ApprovedSite {
	cp := *site
	cp.AllowedScopes = slices.Clone(site.AllowedScopes)
	if site.TimeoutDate != nil {
		t := *site.TimeoutDate
		cp.TimeoutDate = &t
	}
	return &cp
}

func siteExpiry(site *ApprovedSite) time.Time {
	if site.TimeoutDate == nil {
		return time.Time{}
	}
	return *site.TimeoutDate
}

// GetApprovedSitesByClientAndUser returns the live approved sites for a pair.
func (s *MemoryStorage) GetApprovedSitesByClientAndUser(_ context.Context, clientID, userID string) ([]*ApprovedSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var sites []*ApprovedSite
	for _, entry := range s.approvedSites {
		if entry.expired(now) {
			continue
		}
		if entry.value.ClientID == clientID && entry.value.UserID == userID {
			sites = append(sites, cloneApprovedSite(entry.value))
		}
	}
	slices.SortFunc(sites, func(a, b *ApprovedSite) int {
		return a.CreationDate.Compare(b.CreationDate)
	})
	return sites, nil
}

// GetApprovedSite returns an approved site by ID.
func (s *MemoryStorage) GetApprovedSite(_ context.Context, id string) (*ApprovedSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.approvedSites[id]
	if !ok || entry.expired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Approved site not found"))
	}
	return cloneApprovedSite(entry.value), nil
}

// SaveApprovedSite inserts or updates an approved site, assigning an ID when it has none.
func (s *MemoryStorage) SaveApprovedSite(_ context.Context, site *ApprovedSite) error {
	if site == nil {
		return fmt.Errorf("approved site is nil")
	}
	if site.ID == "" {
		site.ID = generateID()
	}
	stored := cloneApprovedSite(site)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.approvedSites[stored.ID] = &timedEntry[*ApprovedSite]{value: stored, expiresAt: siteExpiry(stored)}
	return nil
}

// RemoveApprovedSite deletes an approved site.
func (s *MemoryStorage) RemoveApprovedSite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.approvedSites[id]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Approved site not found"))
	}
	delete(s.approvedSites, id)
	return nil
}

// GetWhitelistedSiteByClientID returns the whitelist entry for a client.
func (s *MemoryStorage) GetWhitelistedSiteByClientID(_ context.Context, clientID string) (*WhitelistedSite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.whitelistedSites[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Whitelisted site not found"))
	}
	cp := *site
	cp.AllowedScopes = slices.Clone(site.AllowedScopes)
	return &cp, nil
}

// SaveWhitelistedSite inserts or replaces the whitelist entry for a client.
func (s *MemoryStorage) SaveWhitelistedSite(_ context.Context, site *WhitelistedSite) error {
	if site == nil || site.ClientID == "" {
		return fmt.Errorf("whitelisted site requires a client_id")
	}
	if site.ID == "" {
		site.ID = generateID()
	}
	cp := *site
	cp.AllowedScopes = slices.Clone(site.AllowedScopes)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.whitelistedSites[cp.ClientID] = &cp
	return nil
}

// -----------------------
// Nonces
// -----------------------

func nonceKey(clientID, value string) string {
	return clientID + "\x00" + value
}

// UseNonce records a nonce, failing when the same client already used the
// same value and that record has not expired.
func (s *MemoryStorage) UseNonce(_ context.Context, nonce *Nonce) error {
	if nonce == nil || nonce.Value == "" {
		return fmt.Errorf("nonce value is required")
	}
	key := nonceKey(nonce.ClientID, nonce.Value)
	cp := *nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nonces[key]; ok && !existing.expired(time.Now()) {
		return server.NonceReuse(nonce.ClientID)
	}
	s.nonces[key] = &timedEntry[*Nonce]{value: &cp, expiresAt: cp.ExpireDate}
	return nil
}

// -----------------------
// Authorization codes
// -----------------------

// CreateAuthorizationCode stores a new one-time code.
func (s *MemoryStorage) CreateAuthorizationCode(_ context.Context, code *AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("authorization code is required")
	}
	cp := *code

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authCodes[cp.Code]; ok {
		return fmt.Errorf("%w: authorization code", ErrAlreadyExists)
	}
	s.authCodes[cp.Code] = &timedEntry[*AuthorizationCode]{value: &cp, expiresAt: cp.Expiration}
	return nil
}

// ConsumeAuthorizationCode deletes and returns a code. A second call for the
// same code fails with ErrNotFound.
func (s *MemoryStorage) ConsumeAuthorizationCode(_ context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.authCodes[code]
	if !ok {
		logger.Debugw("authorization code not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authorization code not found"))
	}
	delete(s.authCodes, code)
	if entry.expired(time.Now()) {
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Authorization code expired"))
	}
	return entry.value, nil
}

// -----------------------
// Authentication holders
// -----------------------

func cloneHolder(h *AuthenticationHolder) *AuthenticationHolder {
	cp := *h
	cp.Request = *h.Request.Clone()
	if h.User != nil {
		u := *h.User
		cp.User = &u
	}
	return &cp
}

// SaveAuthenticationHolder stores a holder, assigning an ID when it has none.
func (s *MemoryStorage) SaveAuthenticationHolder(_ context.Context, holder *AuthenticationHolder) error {
	if holder == nil {
		return fmt.Errorf("authentication holder is nil")
	}
	if holder.ID == "" {
		holder.ID = generateID()
	}
	stored := cloneHolder(holder)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holders[stored.ID] = stored
	return nil
}

// GetAuthenticationHolder returns a holder by ID.
func (s *MemoryStorage) GetAuthenticationHolder(_ context.Context, id string) (*AuthenticationHolder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holder, ok := s.holders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Authentication holder not found"))
	}
	return cloneHolder(holder), nil
}

// RemoveAuthenticationHolder deletes a holder.
func (s *MemoryStorage) RemoveAuthenticationHolder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.holders, id)
	return nil
}

// -----------------------
// Pending authorizations
// -----------------------

// StorePendingAuthorization keeps a request awaiting consent under key.
func (s *MemoryStorage) StorePendingAuthorization(_ context.Context, key string, req *server.AuthorizationRequest) error {
	if key == "" {
		return fmt.Errorf("pending authorization key is required")
	}
	if req == nil {
		return fmt.Errorf("pending authorization is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingAuthorizations[key] = &timedEntry[*server.AuthorizationRequest]{
		value:     req.Clone(),
		expiresAt: time.Now().Add(s.pendingTTL),
	}
	return nil
}

// LoadPendingAuthorization returns the request stored under key.
func (s *MemoryStorage) LoadPendingAuthorization(_ context.Context, key string) (*server.AuthorizationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.pendingAuthorizations[key]
	if !ok {
		logger.Debugw("pending authorization not found")
		return nil, fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Pending authorization not found"))
	}
	if entry.expired(time.Now()) {
		logger.Debugw("pending authorization expired")
		return nil, fmt.Errorf("%w: %w", ErrExpired, fosite.ErrTokenExpired.WithHint("Pending authorization expired"))
	}
	return entry.value.Clone(), nil
}

// DeletePendingAuthorization removes the request stored under key.
func (s *MemoryStorage) DeletePendingAuthorization(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pendingAuthorizations[key]; !ok {
		return fmt.Errorf("%w: %w", ErrNotFound, fosite.ErrNotFound.WithHint("Pending authorization not found"))
	}
	delete(s.pendingAuthorizations, key)
	return nil
}

// Stats holds record counts for a MemoryStorage.
type Stats struct {
	Clients               int
	AccessTokens          int
	RefreshTokens         int
	ApprovedSites         int
	WhitelistedSites      int
	Nonces                int
	AuthCodes             int
	AuthenticationHolders int
	PendingAuthorizations int
}

// Stats returns current statistics about storage contents.
func (s *MemoryStorage) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Clients:               len(s.clients),
		AccessTokens:          len(s.accessTokens),
		RefreshTokens:         len(s.refreshTokens),
		ApprovedSites:         len(s.approvedSites),
		WhitelistedSites:      len(s.whitelistedSites),
		Nonces:                len(s.nonces),
		AuthCodes:             len(s.authCodes),
		AuthenticationHolders: len(s.holders),
		PendingAuthorizations: len(s.pendingAuthorizations),
	}
}

var _ Storage = (*MemoryStorage)(nil)
