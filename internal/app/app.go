// Package app assembles the engine's services from configuration. Both the
// API server and the scheduler start from Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/segyhp/loan-engine/internal/cache"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/internal/database"
	"github.com/segyhp/loan-engine/internal/metrics"
	"github.com/segyhp/loan-engine/internal/notification"
	"github.com/segyhp/loan-engine/internal/repository"
	"github.com/segyhp/loan-engine/internal/service"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sqlx.DB
	Redis    *redis.Client // nil when the cache is disabled
	Metrics  *metrics.Metrics
	Loans    *service.LoanService
	Payments *service.PaymentService

	closers []func() error
}

// Build connects to postgres, optionally redis and kafka, and wires the
// services. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	var loanCache cache.LoanCache = cache.Noop{}
	if cfg.Redis.Enabled {
		client, err := cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// continue uncached
			logger.Warn("redis unavailable, loan cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.Redis = client
			a.closers = append(a.closers, client.Close)
			loanCache = cache.NewRedisLoanCache(client, cfg.Redis.CacheTTL)
		}
	}

	notifier := notification.Fanout{notification.NewLogEmitter(logger)}
	if cfg.Kafka.Enabled {
		kafka := notification.NewKafkaEmitter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		a.closers = append(a.closers, kafka.Close)
		notifier = append(notifier, kafka)
	}

	deps := service.Dependencies{
		UoW:      repository.NewSqlxUoW(db),
		Repos:    repository.NewRepos(db),
		Cache:    loanCache,
		Notifier: notifier,
		Metrics:  a.Metrics,
		Clock:    service.NewSystemClock(cfg.Location()),
		Logger:   logger,
		Policy:   service.PolicyFromConfig(cfg),
	}
	a.Loans = service.NewLoanService(deps)
	a.Payments = service.NewPaymentService(deps)

	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
