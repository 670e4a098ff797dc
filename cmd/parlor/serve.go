// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/parlor-social/parlor/internal/chat"
	"github.com/parlor-social/parlor/internal/config"
	"github.com/parlor-social/parlor/internal/gateway"
	"github.com/parlor-social/parlor/internal/live"
	"github.com/parlor-social/parlor/internal/logging"
	"github.com/parlor-social/parlor/internal/notify"
	"github.com/parlor-social/parlor/internal/observability"
	"github.com/parlor-social/parlor/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the delivery service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag defaults mirror config.Default so an untouched flag never
	// overrides a value set in the config file.
	defaults := config.Default()
	flags := cmd.Flags()
	flags.String("gateway.addr", defaults.Gateway.Addr, "gateway listen address")
	flags.String("observability.addr", defaults.Observability.Addr, "metrics/health listen address")
	flags.String("database.url", defaults.Database.URL, "PostgreSQL connection URL")
	flags.String("log.format", defaults.Log.Format, "log format: json or text")

	return cmd
}

func runServe(parent context.Context, cfg config.Config) error {
	logging.SetDefault("parlor", version, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Delivery core.
	registry := live.NewRegistry()
	broadcaster := live.NewBroadcaster()

	// Notification pipeline: proxy -> logging -> caching -> core.
	core, err := notify.NewCoreService(
		store.NewNotificationRepository(pool),
		store.NewUserDirectory(pool),
		broadcaster,
		registry,
	)
	if err != nil {
		return err
	}
	cached := notify.NewCachingService(core, notify.CacheTTLs{
		List:        cfg.Cache.ListTTL,
		ListDisplay: cfg.Cache.ListTTL,
		CountUnread: cfg.Cache.CountTTL,
	})
	logged := notify.NewLoggingService(cached, slog.Default())
	proxy, err := notify.NewProxy(
		logged,
		store.NewRoleProvider(pool),
		notify.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		notify.NewAuditLog(cfg.Audit.Capacity),
		notify.DefaultPolicy(),
		slog.Default(),
	)
	if err != nil {
		return err
	}

	chats, err := chat.NewService(
		store.NewChatMessageRepository(pool),
		store.NewMembershipRepository(pool),
		broadcaster,
	)
	if err != nil {
		return err
	}

	gw, err := gateway.NewServer(cfg.Gateway.Addr, registry, broadcaster, chats, gateway.NewAPI(proxy))
	if err != nil {
		return err
	}
	obs := observability.NewServer(cfg.Observability.Addr, func() bool {
		return pool.Ping(context.Background()) == nil
	})

	gwErr, err := gw.Start()
	if err != nil {
		return err
	}
	obsErr, err := obs.Start()
	if err != nil {
		shutdown(gw.Stop)
		return err
	}

	slog.Info("parlor serving",
		"version", version,
		"gateway", gw.Addr(),
		"observability", obs.Addr(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case err := <-gwErr:
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		select {
		case err := <-obsErr:
			return err
		case <-gctx.Done():
			return nil
		}
	})

	runErr := g.Wait()

	slog.Info("shutting down")
	shutdown(gw.Stop)
	shutdown(obs.Stop)
	return runErr
}

func shutdown(stopFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stopFn(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
