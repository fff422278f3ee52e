// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lusso Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lusso/lusso/internal/auth"
	"github.com/lusso/lusso/internal/auth/postgres"
	"github.com/lusso/lusso/internal/config"
	"github.com/lusso/lusso/internal/loginserver"
	"github.com/lusso/lusso/internal/logging"
	"github.com/lusso/lusso/internal/observability"
	"github.com/lusso/lusso/internal/store"
	lussotls "github.com/lusso/lusso/internal/tls"
	"github.com/lusso/lusso/internal/verify"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identity authority",
		Long: `Run all three network surfaces: the binary login protocol, the
HTTP verification API, and the metrics/health endpoints. Startup aborts
before any listener goes live if the store or a bind is unavailable.`,
		RunE: runServe,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("lusso", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tlsConfig *cryptotls.Config
	if cfg.TLS.Enabled {
		tlsConfig, err = lussotls.LoadServerConfig(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return oops.Code("TLS_LOAD_FAILED").With("cert", cfg.TLS.Cert).Wrap(err)
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	accounts := postgres.NewAccountRepository(pool)
	hasher := auth.NewArgon2idHasher()
	service, err := auth.NewServiceWithLogger(accounts, hasher, cfg.Session.Lifetime, logger)
	if err != nil {
		return err
	}

	obsServer := observability.NewServer(cfg.Listen.Metrics, func() bool {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	metrics := obsServer.Metrics()

	loginSrv, err := loginserver.NewServer(cfg.Listen.Login, tlsConfig, service, metrics, logger)
	if err != nil {
		return err
	}
	verifySrv, err := verify.NewServer(cfg.Listen.Verify, tlsConfig, service, metrics, logger)
	if err != nil {
		return err
	}

	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.Code("METRICS_BIND_FAILED").Wrap(err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			logger.Warn("observability shutdown error", "error", stopErr)
		}
	}()

	// Any surface failing takes the whole process down; a half-alive
	// authority is worse than a dead one.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- loginSrv.Run(runCtx) }()
	go func() { errCh <- verifySrv.Run(runCtx) }()

	logger.Info("lusso started",
		"login_addr", cfg.Listen.Login,
		"verify_addr", cfg.Listen.Verify,
		"metrics_addr", cfg.Listen.Metrics,
		"session_lifetime", cfg.Session.Lifetime.String(),
		"tls", cfg.TLS.Enabled,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		cancel()
		// Give both servers a moment to unwind before the pool closes.
		for range 2 {
			select {
			case <-errCh:
			case <-time.After(10 * time.Second):
				return nil
			}
		}
		return nil
	case err := <-errCh:
		cancel()
		if err != nil {
			return err
		}
		return nil
	case err := <-obsErrCh:
		cancel()
		if err != nil {
			return oops.Code("METRICS_SERVE_FAILED").Wrap(err)
		}
		return nil
	}
}
