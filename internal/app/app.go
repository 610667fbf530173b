// Package app wires configuration into the storage, cache, messaging and
// application layers shared by the api and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/career-roadmap/roadmap-hub/config"
	"github.com/career-roadmap/roadmap-hub/internal/application/command"
	"github.com/career-roadmap/roadmap-hub/internal/application/eventhandler"
	"github.com/career-roadmap/roadmap-hub/internal/application/query"
	"github.com/career-roadmap/roadmap-hub/internal/domain/progression"
	"github.com/career-roadmap/roadmap-hub/internal/domain/shared"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/messaging"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/metrics"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/postgres"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/redis"
	"github.com/career-roadmap/roadmap-hub/internal/infrastructure/persistence/sqlite"
	"github.com/career-roadmap/roadmap-hub/internal/interface/http/handlers"
	"github.com/career-roadmap/roadmap-hub/pkg/logger"
	"github.com/career-roadmap/roadmap-hub/pkg/retry"
)

// EventBus is the bus used by both binaries.
type EventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Log     *logger.Logger
	Metrics *metrics.Metrics
	Curve   *progression.Curve

	Repo   progression.Repository
	Health *handlers.HealthChecker
	Bus    EventBus

	// Nil when Redis is disabled or unreachable.
	Cache       *redis.Cache
	Profiles    *redis.ProfileCache
	Leaderboard *redis.LeaderboardCache

	closers []func() error
}

// NewLogger builds the process logger from the observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat != "" {
		opts.Format = cfg.Observability.LogFormat
	}
	opts.FilePath = cfg.Observability.LogFile
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// New connects to storage and, when enabled, Redis. Redis failures degrade
// to a process-local setup instead of failing startup.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	curve, err := progression.NewCurve(cfg.Progression.LevelBase, cfg.Progression.LevelScaling)
	if err != nil {
		return nil, fmt.Errorf("level curve: %w", err)
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Metrics: metrics.New(),
		Curve:   curve,
		Health:  handlers.NewHealthChecker(cfg.App.Version),
	}

	if err := a.openStore(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.openRedis(ctx)

	if err := a.openBus(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		a.Repo = store
		a.Health.Add(store, true)
		a.closers = append(a.closers, store.Close)
		a.Log.Info("using sqlite store", logger.String("path", cfg.SQLite.Path))
		return nil

	default:
		pgCfg := postgres.DefaultConfig(cfg.Database.URL)
		if cfg.Database.MaxConns > 0 {
			pgCfg.MaxConns = int32(cfg.Database.MaxConns)
		}
		if cfg.Database.MinConns > 0 {
			pgCfg.MinConns = int32(cfg.Database.MinConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		}
		if cfg.Database.ConnMaxIdleTime > 0 {
			pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		}
		pgCfg.QueryTimeout = cfg.Database.QueryTimeout

		var conn *postgres.Connection
		retrier := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
			a.Log.Warn("database not ready, retrying",
				logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
		})
		err := retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			conn, err = postgres.NewConnection(ctx, pgCfg, a.Log)
			return err
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })
		a.Health.Add(conn, true)

		if cfg.Database.AutoMigrate {
			n, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.Log.Info("migrations applied", logger.Int("count", n))
		}
		a.Repo = postgres.NewProfileRepository(conn)
		return nil
	}
}

func (a *App) openRedis(ctx context.Context) {
	cfg := a.Config
	if cfg.Redis.Disabled {
		a.Log.Info("redis disabled, caches and cross-instance events are off")
		return
	}
	rc := redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
	cache, err := redis.NewCache(ctx, rc, a.Log)
	if err != nil {
		a.Log.Warn("redis unavailable, continuing without cache", logger.Err(err))
		return
	}
	a.Cache = cache
	a.Profiles = redis.NewProfileCache(cache, cfg.Progression.ProfileCacheTTL)
	a.Leaderboard = redis.NewLeaderboardCache(cache)
	a.Health.Add(cache, false)
	a.closers = append(a.closers, cache.Close)
}

func (a *App) openBus(ctx context.Context) error {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = a.Log
	local.Observer = a.Metrics

	if a.Cache == nil {
		bus := messaging.NewInMemoryEventBus(local)
		a.Bus = bus
		a.closers = append(a.closers, bus.Close)
		return nil
	}
	bus, err := messaging.NewRedisEventBus(ctx, messaging.RedisEventBusConfig{
		Client: a.Cache.Client(),
		Local:  local,
		Logger: a.Log,
	})
	if err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	a.Bus = bus
	a.closers = append(a.closers, bus.Close)
	return nil
}

// RedisClient returns the raw client, or nil without Redis.
func (a *App) RedisClient() *goredis.Client {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Client()
}

// CommandDeps returns the collaborators of the command handlers. Caches are
// set only when present so the handlers see nil interfaces otherwise.
func (a *App) CommandDeps() command.Deps {
	d := command.Deps{
		Repo:      a.Repo,
		Curve:     a.Curve,
		Publisher: a.Bus,
		Features:  a.Config.Features,
		Metrics:   a.Metrics,
		Log:       a.Log,
	}
	if a.Profiles != nil {
		d.Profiles = a.Profiles
	}
	if a.Leaderboard != nil {
		d.Leaderboard = a.Leaderboard
	}
	return d
}

// QueryDeps returns the collaborators of the query handlers.
func (a *App) QueryDeps() query.Deps {
	d := query.Deps{
		Repo:     a.Repo,
		Curve:    a.Curve,
		Features: a.Config.Features,
		Metrics:  a.Metrics,
		Log:      a.Log,
	}
	if a.Profiles != nil {
		d.Profiles = a.Profiles
	}
	if a.Leaderboard != nil {
		d.Leaderboard = a.Leaderboard
	}
	return d
}

// Role names the binary an App runs in.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

// HandlesEvents reports whether this process runs the event reactions.
// With Redis every event reaches every instance, so only the worker reacts;
// without it each process reacts to its own in-memory events.
func (a *App) HandlesEvents(role Role) bool {
	return role == RoleWorker || a.Cache == nil
}

// RegisterEventHandlers subscribes the progression reactions to the bus.
func (a *App) RegisterEventHandlers() error {
	var board progression.LeaderboardCache
	if a.Leaderboard != nil {
		board = a.Leaderboard
	}
	log := a.Log.Named("events")
	return eventhandler.Register(a.Bus,
		eventhandler.NewOnLevelUpHandler(log, func(userID string, level int) {
			log.Info("level milestone reached", logger.UserID(userID), logger.UserLevel(level))
		}),
		eventhandler.NewOnStreakHandler(log, func(userID string, days int) {
			log.Info("streak milestone reached", logger.UserID(userID), logger.StreakDays(days))
		}),
		eventhandler.NewOnProfileCreatedHandler(board, log),
	)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Log.Sync()
	return errors.Join(errs...)
}

// Exit prints err and exits with status 1.
func Exit(err error) {
	fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
	os.Exit(1)
}
