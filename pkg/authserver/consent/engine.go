// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/stacklok/toolhive-idp/pkg/authserver/metrics"
	"github.com/stacklok/toolhive-idp/pkg/authserver/scope"
	"github.com/stacklok/toolhive-idp/pkg/authserver/server"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// Engine applies consent decisions to authorization requests and persists
// the approvals they produce.
type Engine struct {
	store   storage.ConsentStore
	clients storage.ClientRegistry
	catalog *scope.Catalog

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a consent engine.
func NewEngine(store storage.ConsentStore, clients storage.ClientRegistry, catalog *scope.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		clients: clients,
		catalog: catalog,
		logger:  logger.Get(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckForPreApproval marks req approved when a remembered approval or a
// whitelist entry covers it. A recalled site has its access date refreshed;
// a whitelist match is remembered as a permanent site.
func (e *Engine) CheckForPreApproval(
	ctx context.Context, req *server.AuthorizationRequest, user *server.Authentication,
) (Decision, error) {
	if !user.IsAuthenticated() {
		return Decision{Kind: NeedsInteraction}, nil
	}

	var (
		sites     []*storage.ApprovedSite
		whitelist *storage.WhitelistedSite
	)
	if !req.HasPrompt(server.PromptConsent) {
		var err error
		sites, err = e.store.GetApprovedSitesByClientAndUser(ctx, req.ClientID, user.Subject)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to load approved sites: %w", err)
		}
		whitelist, err = e.store.GetWhitelistedSiteByClientID(ctx, req.ClientID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return Decision{}, fmt.Errorf("failed to load whitelisted site: %w", err)
		}
	}

	now := e.now()
	d := Evaluate(req, user, sites, whitelist, now, e.catalog)

	switch d.Kind {
	case Recalled:
		d.Site.AccessDate = now
		if err := e.store.SaveApprovedSite(ctx, d.Site); err != nil {
			return Decision{}, fmt.Errorf("failed to refresh approved site: %w", err)
		}
		markApproved(req, d.Site, user)

	case AutoApproved:
		site := &storage.ApprovedSite{
			ClientID:      req.ClientID,
			UserID:        user.Subject,
			AllowedScopes: append([]string(nil), req.Scope...),
			CreationDate:  now,
			AccessDate:    now,
		}
		if err := e.store.SaveApprovedSite(ctx, site); err != nil {
			return Decision{}, fmt.Errorf("failed to remember whitelisted approval: %w", err)
		}
		d.Site = site
		markApproved(req, site, user)

	default:
	}

	e.metrics.IncConsentDecision(string(d.Kind))
	e.logger.Debug("consent pre-approval checked", "client_id", req.ClientID, "decision", string(d.Kind))
	return d, nil
}

// IsApproved reports whether req was pre-approved, or whether form carries
// a valid approval from an authenticated user.
func (*Engine) IsApproved(req *server.AuthorizationRequest, form url.Values, user *server.Authentication) bool {
	if req.Approved {
		return true
	}
	return EvaluateForm(req, form, user).Kind == Approved
}

// UpdateAfterApproval applies a submitted consent form. On approval it
// returns an approved copy of req whose scope is rebuilt from the scope_
// fields, restricted to the client's registered scope, and remembers the
// approval when asked to. Otherwise it returns req unchanged.
func (e *Engine) UpdateAfterApproval(
	ctx context.Context, req *server.AuthorizationRequest, form url.Values, user *server.Authentication,
) (*server.AuthorizationRequest, error) {
	if req.Approved {
		return req.Clone(), nil
	}

	d := EvaluateForm(req, form, user)
	e.metrics.IncConsentDecision(string(d.Kind))
	if d.Kind != Approved {
		return req, nil
	}

	client, err := e.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client %q: %w", req.ClientID, err)
	}

	approved := req.Clone()
	approved.SetScope(e.approvedScopes(client.Scope, form))

	now := e.now()
	if remember := form.Get(FormRemember); remember != "" && remember != RememberNone {
		site := &storage.ApprovedSite{
			ClientID:      req.ClientID,
			UserID:        user.Subject,
			AllowedScopes: append([]string(nil), approved.Scope...),
			CreationDate:  now,
			AccessDate:    now,
		}
		if remember == RememberOneHour {
			timeout := now.Add(time.Hour)
			site.TimeoutDate = &timeout
		}
		if err := e.store.SaveApprovedSite(ctx, site); err != nil {
			return nil, fmt.Errorf("failed to remember approval: %w", err)
		}
		approved.SetExtension(server.ExtApprovedSite, site.ID)
	}

	approved.Approved = true
	if !user.AuthTime.IsZero() {
		approved.SetAuthTime(user.AuthTime)
	}
	return approved, nil
}

// approvedScopes collects the scope_ fields that name a client scope. For
// structured scopes a non-empty scopeparam_ field is appended as "v:param".
func (e *Engine) approvedScopes(clientScope []string, form url.Values) []string {
	out := make([]string, 0, len(clientScope))
	for _, v := range clientScope {
		if !form.Has(FormScopePrefix + v) {
			continue
		}
		if e.catalog.IsStructured(v) {
			if param := form.Get(FormScopeParamPfx + v); param != "" {
				out = append(out, v+scope.Separator+param)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

func markApproved(req *server.AuthorizationRequest, site *storage.ApprovedSite, user *server.Authentication) {
	req.SetExtension(server.ExtApprovedSite, site.ID)
	if !user.AuthTime.IsZero() {
		req.SetAuthTime(user.AuthTime)
	}
	req.Approved = true
}
