// Copyright (c) 2026 Mercato. All rights reserved.
// Author: bach.nguyenvo.dn@gmail.com

// Command console is the entry point for the Mercato admin console service.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration (.env in development, then environment variables).
//  3. Connect to PostgreSQL when configured (pgxpool) and run migrations.
//  4. Connect to Redis when configured.
//  5. Select the session backend (redis preferred, postgres fallback,
//     in-memory last resort).
//  6. Wire the session manager, upstream client, and screen controllers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nvbach/mercato/internal/api"
	"github.com/nvbach/mercato/internal/console"
	"github.com/nvbach/mercato/internal/platform/config"
	"github.com/nvbach/mercato/internal/platform/constants"
	"github.com/nvbach/mercato/internal/platform/migration"
	pgstore "github.com/nvbach/mercato/internal/platform/postgres"
	redisstore "github.com/nvbach/mercato/internal/platform/redis"
	"github.com/nvbach/mercato/internal/platform/sec"
	"github.com/nvbach/mercato/internal/session"
	"github.com/nvbach/mercato/internal/upstream"
)

// purgeInterval is how often expired postgres session rows are reclaimed.
const purgeInterval = 1 * time.Hour

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Mercato] console_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A local .env is a development convenience; its absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("upstream", cfg.UpstreamBaseURL),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// done stops all background loops (rate-limit sweeps, purge) on shutdown.
	done := make(chan struct{})
	defer close(done)

	// ── 3. PostgreSQL (optional) ──────────────────────────────────────────
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
	}

	// ── 4. Redis (optional) ───────────────────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	}

	// ── 5. Session Backend Selection ──────────────────────────────────────
	var backend session.Backend
	switch {
	case rdb != nil:
		backend = session.NewRedisBackend(rdb)
		log.Info("session_backend_selected", slog.String("backend", "redis"))
	case pool != nil:
		pgBackend := session.NewPostgresBackend(pool)
		backend = pgBackend
		log.Info("session_backend_selected", slog.String("backend", "postgres"))

		// Expired rows are filtered at read time; this loop just reclaims space.
		go func() {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					purged, err := pgBackend.PurgeExpired(context.Background())
					if err != nil {
						log.Warn("session_purge_failed", slog.Any("error", err))
						continue
					}
					log.Info("session_purge_completed", slog.Int64("rows", purged))
				case <-done:
					return
				}
			}
		}()
	default:
		// Config.Load rejects this combination, but keep the last resort
		// explicit: sessions die with the process.
		backend = session.NewMemoryBackend()
		log.Warn("session_backend_selected", slog.String("backend", "memory"))
	}

	// ── 6. Session & Upstream Wiring ──────────────────────────────────────
	signer, err := sec.NewCookieSigner(cfg.SessionSecret, constants.CookieIssuer)
	must(log, err, "initialize cookie signer")

	store := session.NewStore(backend, log, session.WithInactivityLimit(cfg.SessionInactivityLimit))
	notices := session.NewNoticeStore(backend, log)
	platform := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, log)

	var audit session.AuditRecorder
	if pool != nil {
		audit = session.NewPostgresAuditRecorder(pool)
	}

	manager := session.NewManager(store, platform, notices, audit, log)

	// Per-session fetch workspaces die together with their session.
	registry := console.NewRegistry()
	manager.OnSignOut(registry.Drop)

	// ── 7. Health Handlers ────────────────────────────────────────────────
	healthDeps := api.HealthDependencies{
		CheckUpstream: func() error {
			return platform.Ping(context.Background())
		},
	}
	if pool != nil {
		healthDeps.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	}
	if rdb != nil {
		healthDeps.CheckCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      console.NewAuthHandler(manager, notices, signer),
		Screens:   console.NewScreens(registry, platform, manager, log),
	}

	server := api.NewServer(done, cfg, log, manager, signer, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
