// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the thv-idp command-line application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-idp/pkg/authserver"
	"github.com/stacklok/toolhive-idp/pkg/logger"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverIdleTimeout       = 2 * time.Minute
)

// version is set at build time with -ldflags "-X ...app.version=v1.2.3".
var version = "dev"

// NewRootCmd creates a new root command for the thv-idp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "thv-idp",
		DisableAutoGenTag: true,
		Short:             "ToolHive identity provider - an OpenID Connect authorization server",
		Long: `thv-idp is an OAuth 2.0 and OpenID Connect authorization server. It provides:

- Authorization code, implicit and hybrid flows with PKCE
- Refresh, client credentials, chained and JWT bearer grants
- Signed and encrypted request objects and ID tokens
- Dynamic client registration
- OIDC discovery and JWKS publication

End-users are authenticated by a fronting proxy that sets identity headers.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (YAML or JSON)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Long: `Start the authorization server with the configuration file given by --config.

Every setting can be overridden from the environment with the THV_IDP_ prefix,
for example THV_IDP_ISSUER or THV_IDP_STORAGE_REDIS_ADDR. Without a
configuration file the issuer must come from the environment.`,
		RunE: runServe,
	}
	cmd.Flags().String("listen", "", "Address to listen on (overrides listen_address)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("thv-idp version: %s\n", version)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validate the configuration file for syntax and semantic errors.

This command checks the issuer, the storage backend, key files settings,
configured clients and the scope catalog.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath := viper.GetString("config")
			if configPath == "" {
				return errors.New("no configuration file specified, use --config flag")
			}

			logger.Infof("Validating configuration: %s", configPath)
			cfg, err := authserver.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			cmd.Printf("Configuration is valid\n")
			cmd.Printf("  Issuer: %s\n", cfg.Issuer)
			cmd.Printf("  Storage: %s\n", cfg.Storage.Type)
			cmd.Printf("  Clients: %d\n", len(cfg.Clients))
			cmd.Printf("  Scopes: %d\n", len(cfg.Scopes))
			return nil
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := authserver.LoadConfig(viper.GetString("config"))
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddress = listen
	}

	srv, err := authserver.New(ctx, *cfg)
	if err != nil {
		return fmt.Errorf("failed to create authorization server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Errorf("Failed to close authorization server: %v", err)
		}
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}

	return serve(ctx, listener, srv.Handler(), cfg.ShutdownTimeout)
}

// serve runs handler on listener until ctx is canceled, then shuts down
// gracefully within shutdownTimeout.
func serve(ctx context.Context, listener net.Listener, handler http.Handler, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("authorization server listening", "address", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("Server shutdown complete")
		return nil
	})

	return g.Wait()
}
