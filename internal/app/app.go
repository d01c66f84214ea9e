// Package app wires configuration into a running community service: store,
// cache, identity provider and the core service. Both binaries share it.
package app

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/auth"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/cache"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/community"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/config"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/db"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository/memory"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/repository/postgres"
	"go.uber.org/zap"
)

type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Store      *repository.Store
	Identities *auth.EphemeralProvider
	Service    *community.Service

	// database is nil for the memory driver.
	database *db.DB
	closers  []func()
}

// Open connects every backend named by cfg. The caller must Close the
// result.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		a.Store = memory.New(clock.WallClock.Now).Store()
	default:
		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.database = database
		a.closers = append(a.closers, database.Close)
		a.Store = postgres.NewStore(database.Pool())
	}

	var views cache.MembershipCache
	if cfg.UsesRedis() {
		client, err := cache.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		views = cache.NewRedis(client, cfg.CacheTTL)
		logger.Info("membership cache: redis")
	} else {
		views = cache.NewLocal(cfg.CacheTTL)
		logger.Info("membership cache: in-process")
	}

	a.Identities = auth.NewEphemeralProvider(a.Store.Users)
	a.Service = community.NewService(a.Store, a.Identities, views, clock.WallClock, logger, community.Options{
		ListPageSize: cfg.ListPageSize,
		ListTimeout:  cfg.ListTimeout,
		OwnerLeave:   community.OwnerLeavePolicy(cfg.OwnerLeavePolicy),
	})
	return a, nil
}

// Migrate applies the schema. It is a no-op for the memory driver.
func (a *App) Migrate(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	return a.database.Migrate(ctx)
}

// Health pings the database, if there is one.
func (a *App) Health(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	return a.database.Health(ctx)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
