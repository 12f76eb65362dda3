package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/config"
	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/Yulian302/lfusys-client/tracing"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Redis *redis.Client

	Config config.Config
	Logger *slog.Logger

	SessionStore store.SessionStore
	Session      *auth.Session
	Client       *auth.Client

	Services       *Services
	Dev            *DevServer
	TracerProvider *trace.TracerProvider
}

// SetupApp wires the client side: session store, authenticated transport
// and services.
func SetupApp(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logging.CreateLogger(cfg.Env),
	}

	if cfg.Tracing {
		tp, err := tracing.StartTracing(ctx, cfg.TracingConfig.Endpoint, cfg.TracingConfig.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		app.TracerProvider = tp
	}

	sessions, err := app.initSessionStore(ctx)
	if err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	app.SessionStore = sessions
	app.Session = auth.NewSession(sessions, cfg.SessionKey)

	client, err := auth.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, app.Session, newBreaker("api", *cfg.BreakerConfig))
	if err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	app.Client = client

	app.Services = BuildServices(app)

	return app, nil
}

// SetupDevServer wires the in-memory API server. Redis is optional there and
// only enables rate limiting.
func SetupDevServer(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.ValidateDevServer(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logging.CreateLogger(cfg.Env),
	}

	if cfg.Tracing {
		tp, err := tracing.StartTracing(ctx, cfg.TracingConfig.Endpoint, cfg.TracingConfig.ServiceName+"-dev")
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		app.TracerProvider = tp
	}

	if cfg.DevServerConfig.RateLimit > 0 {
		rdb := initRedis(*cfg.RedisConfig)
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Printf("redis unavailable at %s, rate limiting disabled: %v", cfg.RedisConfig.HOST, err)
			_ = rdb.Close()
		} else {
			app.Redis = rdb
		}
	}

	dev, err := BuildDevServer(ctx, app)
	if err != nil {
		app.Shutdown(ctx)
		return nil, err
	}
	app.Dev = dev

	return app, nil
}

func (a *App) Run(r *gin.Engine) error {
	if err := r.Run(a.Config.DevServerConfig.Addr); err != nil {
		return err
	}
	return nil
}

func (a *App) initSessionStore(ctx context.Context) (store.SessionStore, error) {
	switch a.Config.SessionStore {
	case config.SessionStoreRedis:
		rdb := initRedis(*a.Config.RedisConfig)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", a.Config.RedisConfig.HOST, err)
		}
		a.Redis = rdb
		return store.NewRedisSessionStore(rdb), nil
	case config.SessionStoreMemory:
		return store.NewMemorySessionStore(), nil
	default:
		path := a.Config.SessionFile
		if path == "" {
			p, err := store.DefaultSessionPath()
			if err != nil {
				return nil, fmt.Errorf("resolve session file: %w", err)
			}
			path = p
		}
		return store.NewFileSessionStore(path), nil
	}
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.HOST,
		Password: "",
		DB:       0,
	})
}

func (a *App) Shutdown(ctx context.Context) {
	if a.Services != nil {
		_ = a.Services.Shutdown(ctx)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.TracerProvider != nil {
		_ = a.TracerProvider.Shutdown(ctx)
	}
}
