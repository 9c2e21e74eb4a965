package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/meet-bridge/config"
	"github.com/cwrk-planet/meet-bridge/internal/events"
	"github.com/cwrk-planet/meet-bridge/internal/pg"
	"github.com/cwrk-planet/meet-bridge/internal/readiness"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/internal/repository/memory"
	"github.com/cwrk-planet/meet-bridge/internal/repository/mongo"
	"github.com/cwrk-planet/meet-bridge/internal/repository/postgres"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// openStore returns nil when analytics are disabled.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Analytics.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, pg.Config{
			DSN:               cfg.Postgres.DSN,
			MaxConns:          cfg.Postgres.MaxConns,
			MinConns:          cfg.Postgres.MinConns,
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
			ApplicationName:   cfg.Postgres.ApplicationName,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongo.Open(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown analytics driver %q", cfg.Analytics.Driver)
	}
}

func readinessConfig(cfg *config.Config) readiness.Config {
	return readiness.Config{
		Interval:             cfg.Readiness.Interval,
		RequestTimeout:       cfg.Readiness.RequestTimeout,
		MaxAttempts:          cfg.Readiness.MaxAttempts,
		MaxConsecutiveErrors: cfg.Readiness.MaxConsecutiveErrors,
		Deadline:             cfg.Readiness.Deadline,
	}
}

// newChecker wraps the HTTP checker with the redis cache when redis is configured.
// The returned close func releases the redis client.
func newChecker(ctx context.Context, cfg *config.Config) (readiness.Checker, func(), error) {
	checker := readiness.NewHTTPChecker(cfg.Readiness.BackendURL, &http.Client{})
	if cfg.Redis.Addr == "" {
		return checker, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// кеш необязателен
		logger.L().Warn("redis unavailable, readiness cache disabled",
			slog.String("addr", cfg.Redis.Addr), logger.Err(err))
		_ = rdb.Close()
		return checker, func() {}, nil
	}
	cached := readiness.NewCachedChecker(checker, rdb, readiness.DefaultCacheKey, cfg.Readiness.CacheTTL)
	return cached, func() { _ = rdb.Close() }, nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		return events.Noop{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}
	return p, nil
}
