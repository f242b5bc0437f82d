// Package app wires configuration into the backends and the appointment service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-scheduling/internal/api"
	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/clock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/ledger"
	redisclient "github.com/hackgods/doctor-appointment-scheduling/internal/redis"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
	"github.com/hackgods/doctor-appointment-scheduling/internal/tasks"
)

type App struct {
	Service  *appointment.Service
	Template *schedule.Template
	Clock    clock.Clock
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Queue    *asynq.Client

	log     *zap.Logger
	closers []func()
}

// New connects whatever the configured backends need. Callers must Close.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{log: log, Clock: clock.System(cfg.Location)}

	tmpl, err := schedule.LoadTemplate(cfg.ScheduleFile)
	if err != nil {
		return nil, fmt.Errorf("load schedule template: %w", err)
	}
	a.Template = tmpl

	if cfg.NeedsPostgres() {
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, applied, err := db.Setup(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		log.Info("connected to postgres", zap.Int("migrations_applied", applied))
	}

	if cfg.LedgerBackend == config.BackendRedis {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		})
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	}

	var ldg ledger.Ledger
	switch cfg.LedgerBackend {
	case config.BackendRedis:
		ldg = redisclient.NewSlotLedger(a.Redis, cfg.Retention)
	case config.BackendPostgres:
		ldg = ledger.NewPostgres(a.Pool)
	default:
		ldg = ledger.NewMemory()
	}

	var repo appointment.Repository
	if cfg.StoreBackend == config.BackendPostgres {
		repo = appointment.NewPgRepository(a.Pool)
	} else {
		repo = appointment.NewMemoryRepository()
	}

	opts := appointment.Options{
		WriteTimeout: cfg.WriteTimeout,
		Logger:       log,
	}
	if ReleaseQueueEnabled(cfg) {
		a.Queue = asynq.NewClient(QueueRedisOpt(cfg))
		a.closers = append(a.closers, func() {
			if err := a.Queue.Close(); err != nil {
				log.Warn("error closing release queue", zap.Error(err))
			}
		})
		opts.Releases = tasks.NewReleaseQueue(a.Queue, cfg.ReleaseMaxRetry)
	}

	calc := schedule.NewCalculator(tmpl, ldg, a.Clock)
	a.Service = appointment.NewService(repo, ldg, calc, a.Clock, opts)

	log.Info("appointment service ready",
		zap.String("ledger", cfg.LedgerBackend),
		zap.String("store", cfg.StoreBackend),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("release_queue", a.Queue != nil),
	)
	return a, nil
}

// ReleaseQueueEnabled reports whether failed releases are retried through
// asynq. In-memory ledgers die with the process, so there is nothing to retry.
func ReleaseQueueEnabled(cfg config.Config) bool {
	return cfg.LedgerBackend != config.BackendMemory
}

func QueueRedisOpt(cfg config.Config) asynq.RedisClientOpt {
	return tasks.RedisOpt(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.ReleaseQueueDB)
}

// Dependencies lists the readiness checks for the connected backends. The
// backends holding ledger or store state are critical.
func (a *App) Dependencies(cfg config.Config) []api.Dependency {
	var deps []api.Dependency
	if a.Pool != nil {
		deps = append(deps, api.Dependency{Name: "postgres", Critical: true, Ping: a.Pool.Ping})
	}
	if a.Redis != nil {
		rdb := a.Redis
		deps = append(deps, api.Dependency{
			Name:     "redis",
			Critical: cfg.LedgerBackend == config.BackendRedis,
			Ping:     func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}
	return deps
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
