package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"voiceswap/internal/cache"
	"voiceswap/internal/config"
	"voiceswap/internal/repository"
	"voiceswap/internal/service"
	"voiceswap/internal/transport/rest"
	"voiceswap/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// App is the wired server: stores, services and the HTTP handler.
type App struct {
	Sessions    repository.SessionRepo
	Events      repository.EventRepo
	Coordinator *service.Coordinator
	Auth        *service.AuthService
	Recorder    *service.Recorder
	Sweeper     *service.Sweeper
	Hub         *ws.Hub
	Relay       *ws.Relay // nil without redis
	Handler     http.Handler

	closers []func(context.Context) error
}

// Build connects the configured backends and wires every component.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	if err := a.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	sinks := []service.Sink{service.NewRepoSink(a.Events)}

	var rdb *redis.Client
	if cfg.RedisURI != "" {
		var err error
		rdb, err = connectRedis(ctx, cfg.RedisURI)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		sinks = append(sinks, service.NewStreamSink(rdb))
		logger.Info("connected to redis")
	}

	a.Recorder = service.NewRecorder(logger, cfg.EventBuffer, sinks...)
	a.closers = append(a.closers, a.Recorder.Close)

	a.Coordinator = service.NewCoordinator(a.Sessions, a.Events, a.Recorder, logger, service.Timing{
		PersonaBudget:      cfg.PersonaBudget,
		SessionMaxDuration: cfg.SessionMaxDuration,
	})

	a.Hub = ws.NewHub(logger)
	a.closers = append(a.closers, func(context.Context) error { a.Hub.Close(); return nil })

	if rdb != nil {
		a.Coordinator.SetCache(cache.NewSessionCache(rdb, cfg.SessionCacheTTL), cache.NewCodeCache(rdb))
		// Signals go through redis so that every instance's hub sees them.
		a.Coordinator.SetNotifier(service.NewRedisNotifier(rdb, logger))
		a.Relay = ws.NewRelay(rdb, a.Hub)
	} else {
		a.Coordinator.SetNotifier(a.Hub)
	}

	a.Sweeper = service.NewSweeper(a.Coordinator, cfg.SweepInterval, logger)
	a.Auth = service.NewAuthService(cfg.JWTSecret, cfg.JWTIssuer, cfg.GuestTokensEnabled)

	a.Handler = rest.NewRouter(&rest.Container{
		AuthService: a.Auth,
		Coordinator: a.Coordinator,
		WSHub:       a.Hub,
		CORSOrigins: cfg.CORSAllowedOrigins,
		Logger:      logger,
	})

	ok = true
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		a.Sessions = repository.NewMongoSessionRepo(db)
		a.Events = repository.NewMongoEventRepo(db)
		logger.Info("connected to mongodb", "database", cfg.MongoDatabase)

	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("sqlite handle: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
		a.Sessions = repository.NewSQLSessionRepo(db)
		a.Events = repository.NewSQLEventRepo(db)
		logger.Info("opened sqlite store", "path", cfg.SQLitePath)

	case config.DriverMemory:
		a.Sessions = repository.NewMemorySessionRepo()
		a.Events = repository.NewMemoryEventRepo()
		logger.Warn("using in-memory store, sessions are lost on restart")

	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}

func connectRedis(ctx context.Context, uri string) (*redis.Client, error) {
	opts := &redis.Options{Addr: uri}
	if strings.Contains(uri, "://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URI: %w", err)
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Close releases everything Build opened, newest first. The recorder drains
// before the stores it writes to are closed.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
