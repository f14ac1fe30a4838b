// Package app assembles the database client, todo store and handlers from
// configuration. Both the HTTP server and the Lambda entry point use it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/database"
	"todo-api/internal/handlers"
	"todo-api/internal/monitoring"
	"todo-api/internal/services"
)

type App struct {
	DB      *database.Client
	Store   services.TodoStore
	Handler *handlers.TodoHandler

	redis  *cache.RedisCache
	warmer *services.ListWarmer
	log    *logrus.Logger
}

// Signer picks the connection password source for the configured auth mode.
func Signer(ctx context.Context, cfg *config.Config) (database.TokenSigner, error) {
	if cfg.Database.AuthMode == config.AuthModePassword {
		return database.StaticPassword(cfg.Database.Password), nil
	}
	signer, err := database.NewDSQLSigner(ctx, cfg.Database.User)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// New wires the application. opts are passed to the database client.
func New(cfg *config.Config, signer database.TokenSigner, logger *logrus.Logger, opts ...database.Option) *App {
	opts = append([]database.Option{database.WithLogger(logger)}, opts...)
	db := database.NewClient(cfg.DatabaseClientConfig(), signer, opts...)

	a := &App{DB: db, log: logger}

	var store services.TodoStore = services.NewDatabaseStore(db)
	if cfg.Redis.Enabled {
		a.redis = cache.NewRedisCache(cfg.CacheConfig())
		store = services.NewCachedTodoStore(store, a.redis, cfg.Redis.CacheTTL, logger)
		a.warmer = services.NewListWarmer(store, nil, cfg.Redis.WarmInterval, logger)
		logger.WithField("addr", cfg.GetRedisAddr()).Info("Redis list cache enabled")
	}
	a.Store = store
	a.Handler = handlers.NewTodoHandler(store, logger)
	return a
}

func (a *App) HealthChecks() map[string]monitoring.HealthCheckFunc {
	checks := map[string]monitoring.HealthCheckFunc{
		"database": a.DB.Health,
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	return checks
}

func (a *App) Collectors() []prometheus.Collector {
	if cached, ok := a.Store.(*services.CachedTodoStore); ok {
		return []prometheus.Collector{cached.Metrics()}
	}
	return nil
}

// Stats exposes the connection pool and, when caching, the cache counters,
// breaker state and Redis pool.
func (a *App) Stats() map[string]monitoring.StatsFunc {
	stats := map[string]monitoring.StatsFunc{
		"database": a.DB.Stats,
	}
	if cached, ok := a.Store.(*services.CachedTodoStore); ok {
		stats["cache"] = cached.Stats
	}
	return stats
}

// RunBackground starts the cache warmer, if any, until ctx is done.
func (a *App) RunBackground(ctx context.Context) {
	if a.warmer != nil {
		go a.warmer.Run(ctx)
	}
}

// InitSchema connects and creates the todos table and indexes.
func (a *App) InitSchema(ctx context.Context) error {
	if err := a.DB.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if err := a.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
