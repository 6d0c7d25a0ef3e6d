package main

import (
	"context"
	"database/sql"
	"fmt"

	"equipment_service/internal/cache"
	"equipment_service/internal/config"
	"equipment_service/internal/logger"
	"equipment_service/internal/metrics"
	"equipment_service/internal/notify"
	"equipment_service/internal/repository"
	"equipment_service/internal/repository/db"
	"equipment_service/internal/repository/memory"
	"equipment_service/internal/service"
)

// app owns every long-lived dependency of one process.
type app struct {
	services *service.Service
	hub      *notify.Hub
	metrics  *metrics.Collector
	closers  []func()
}

func newApp(ctx context.Context, cfg config.Config, log *logger.Logger) (*app, error) {
	a := &app{
		hub:     notify.NewHub(cfg.HTTP.AlertBuffer),
		metrics: metrics.NewCollector(),
	}

	repos, err := a.openRepository(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log.SugaredLogger),
		service.WithMetrics(a.metrics),
		service.WithTokenConfig(cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
	}

	if cfg.Redis.Enabled {
		rc := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		closeRedis := func() {
			if err := rc.Close(); err != nil {
				log.Errorw("failed to close redis", "err", err)
			}
		}
		if err := rc.Ping(ctx); err != nil {
			// The cache is an optimisation: run without it.
			log.Warnw("redis unavailable, overview cache disabled", "addr", cfg.Redis.Addr, "err", err)
			closeRedis()
		} else {
			a.closers = append(a.closers, closeRedis)
			opts = append(opts, service.WithCache(rc))
		}
	}

	sinks := notify.Multi{notify.NewLogNotifier(log.SugaredLogger), a.hub}
	if cfg.NATS.Enabled {
		pub, err := notify.NewNATSPublisher(notify.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          "equipment-service",
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			ReconnectWait: cfg.NATS.ReconnectWait,
			MaxReconnects: cfg.NATS.MaxReconnects,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}
	opts = append(opts, service.WithNotifier(sinks))

	a.services = service.NewService(repos, opts...)
	return a, nil
}

func (a *app) openRepository(cfg config.DBConfig, log *logger.Logger) (*repository.Repository, error) {
	var dialect repository.Dialect
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warnw("using in-memory store; data is lost on exit")
		return memory.NewRepository(), nil
	case config.DriverSQLite:
		dialect = repository.DialectSQLite
	case config.DriverPostgres:
		dialect = repository.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	conn, err := db.InitDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeDB(conn, log))
	return repository.NewRepository(conn, dialect), nil
}

func closeDB(conn *sql.DB, log *logger.Logger) func() {
	return func() {
		if err := conn.Close(); err != nil {
			log.Errorw("failed to close db", "err", err)
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
