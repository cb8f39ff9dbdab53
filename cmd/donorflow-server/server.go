package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/bloodbank/donorflow/internal/app"
	"github.com/bloodbank/donorflow/internal/config"
	"github.com/bloodbank/donorflow/internal/platform/datastore"
	"github.com/bloodbank/donorflow/internal/platform/db"
	"github.com/bloodbank/donorflow/internal/platform/session"
	"github.com/bloodbank/donorflow/migrations"
)

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// Record store
	store, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open record store")
	}
	if pool != nil {
		defer pool.Close()
	}
	logger.Info().Str("backend", cfg.StoreBackend).Msg("record store ready")

	// Sessions
	sessions, closeSessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer closeSessions()
	logger.Info().Str("backend", cfg.SessionBackend).Msg("session store ready")

	signingKey, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using a random key, issued tokens will not survive a restart")
	}

	e, err := app.New(cfg, store, sessions, signingKey, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool, 5*time.Second))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openStore returns the record store selected by STORE_BACKEND. The pool is
// non-nil only for the postgres backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (datastore.Store, *pgxpool.Pool, error) {
	switch cfg.StoreBackend {
	case config.StoreREST:
		return datastore.NewPostgREST(cfg.SupabaseURL, cfg.SupabaseAPIKey, cfg.UpstreamTimeout, logger), nil, nil
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return db.NewPGStore(pool), pool, nil
	case config.StoreMemory:
		return datastore.NewMemory(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		client, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
	case config.SessionMemory:
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

// resolveSigningKey returns the configured key, or a random 32-byte key when
// none is set. generated reports the latter.
func resolveSigningKey(configured string) (key []byte, generated bool, err error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key = make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate signing key: %w", err)
	}
	return key, true, nil
}

// migrationsFS is the embedded migration set, or dir when given.
func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}
