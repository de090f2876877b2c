// Package app wires configuration, storage backends and the ledger together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/simpleatm/atm/internal/account"
	"github.com/simpleatm/atm/internal/config"
	"github.com/simpleatm/atm/internal/credential"
	"github.com/simpleatm/atm/internal/infra"
	"github.com/simpleatm/atm/internal/journal"
	"github.com/simpleatm/atm/internal/ledger"
	"github.com/simpleatm/atm/internal/notification"
	"github.com/simpleatm/atm/internal/registry"
)

// Backend names reported by App.Backend.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// App owns the ledger and the connections behind it.
type App struct {
	Ledger *ledger.Ledger

	backend string
	db      *pgxpool.Pool
	cache   *redis.Client
	logger  *slog.Logger
}

// Build selects the storage backends from cfg, loads the registry and seeds
// the admin account when ADMIN_PASSWORD is set.
//
// DATABASE_URL selects Postgres for both registry and journal. Otherwise the
// registry is a file in DataDir and the journal is Redis when REDIS_URL is
// set, per-user files when it is not.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	store, jrnl, err := a.backends(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	l, err := ledger.New(ctx, store, jrnl,
		ledger.WithLogger(logger),
		ledger.WithHasher(credential.NewHasher(cfg.PasswordCost)),
		ledger.WithNotifier(notification.NewLoggerNotifier(logger)),
		ledger.WithCurrencySymbol(cfg.CurrencySymbol),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	a.Ledger = l

	if cfg.AdminPassword != "" {
		if err := l.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed admin account: %w", err)
		}
	}

	if !l.HasAdmin() {
		logger.Warn("no admin account registered; set ADMIN_PASSWORD to create one",
			slog.String("admin_username", cfg.AdminUsername))
	}

	logger.Info("ledger ready", slog.String("backend", a.backend), slog.Int("accounts", l.Len()))
	return a, nil
}

func (a *App) backends(ctx context.Context, cfg config.Config) (registry.Store, account.Journal, error) {
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		a.backend = BackendPostgres

		store := registry.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		jrnl := journal.NewPostgres(db)
		if err := jrnl.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, jrnl, nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	store := registry.NewFile(cfg.RegistryPath())

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.ConnectTimeout)
		if err != nil {
			return nil, nil, err
		}
		a.cache = cache
		a.backend = BackendRedis
		return store, journal.NewRedis(cache), nil
	}

	a.backend = BackendFile
	return store, journal.NewFile(cfg.DataDir, a.logger), nil
}

// Backend reports which journal backend was selected.
func (a *App) Backend() string { return a.backend }

// Close releases database and cache connections.
func (a *App) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close redis", slog.Any("error", err))
		}
		a.cache = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}
