// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/stacklok/toolhive-idp/pkg/authserver/server/registration"
	"github.com/stacklok/toolhive-idp/pkg/authserver/storage"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

// seed registers the configured clients and whitelisted sites. Clients are
// overwritten on every start so the file stays the source of truth for them.
func seed(ctx context.Context, stor storage.Storage, cfg Config) error {
	for i := range cfg.Clients {
		client := cfg.Clients[i].Clone()
		for _, uri := range client.RedirectURIs {
			if dcrErr := registration.ValidateRedirectURI(uri); dcrErr != nil {
				return fmt.Errorf("client %q: %s", client.ClientID, dcrErr.ErrorDescription)
			}
		}
		if len(client.Scope) == 0 {
			for _, s := range cfg.Scopes {
				if s.DefaultScope {
					client.Scope = append(client.Scope, s.Value)
				}
			}
		}
		if err := stor.RegisterClient(ctx, client); err != nil {
			return fmt.Errorf("failed to register client %q: %w", client.ClientID, err)
		}
		logger.Debugw("registered configured client",
			"client_id", client.ClientID,
			"public", client.IsPublic(),
			"redirect_uris", client.RedirectURIs,
		)
	}

	for i := range cfg.WhitelistedSites {
		site := cfg.WhitelistedSites[i]
		site.AllowedScopes = slices.Clone(site.AllowedScopes)

		existing, err := stor.GetWhitelistedSiteByClientID(ctx, site.ClientID)
		switch {
		case err == nil:
			site.ID = existing.ID
		case !errors.Is(err, storage.ErrNotFound):
			return fmt.Errorf("failed to load whitelisted site for %q: %w", site.ClientID, err)
		}
		if err := stor.SaveWhitelistedSite(ctx, &site); err != nil {
			return fmt.Errorf("failed to save whitelisted site for %q: %w", site.ClientID, err)
		}
	}

	logger.Infow("seeded configuration",
		"clients", len(cfg.Clients),
		"whitelisted_sites", len(cfg.WhitelistedSites),
	)
	return nil
}
