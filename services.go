package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/Yulian302/lfusys-client/config"
	"github.com/Yulian302/lfusys-client/devserver"
	"github.com/Yulian302/lfusys-client/services"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/Yulian302/lfusys-client/uploads"
	"github.com/sony/gobreaker/v2"
)

type Services struct {
	Auth  services.AuthService
	Files services.FileService
	Admin services.AdminService

	Uploader *uploads.Uploader

	Stores *Stores
}

type Stores struct {
	sessions store.SessionStore
}

type Shutdowner interface {
	Shutdown(context.Context) error
}

func newBreaker(name string, cfg config.BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name: name,

		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s → %s", name, from, to)
		},
	})
}

func BuildServices(app *App) *Services {
	uploader := uploads.NewUploader(app.Client, app.Logger)

	return &Services{
		Auth:  services.NewAuthServiceImpl(app.Client, app.Session),
		Files: services.NewFileServiceImpl(app.Client, uploader, app.Config.DirectUploadLimit, app.Logger),
		Admin: services.NewAdminServiceImpl(app.Client, app.Session),

		Uploader: uploader,

		Stores: &Stores{
			sessions: app.SessionStore,
		},
	}
}

func (s *Services) Shutdown(ctx context.Context) error {
	if s.Stores != nil {
		if err := s.Stores.Shutdown(ctx); err != nil {
			log.Printf("stores shutdown error: %v", err)
		}
	}
	return nil
}

func (s *Stores) Shutdown(ctx context.Context) error {
	shutdownIfPossible := func(name string, v any) {
		if sh, ok := v.(Shutdowner); ok {
			if err := sh.Shutdown(ctx); err != nil {
				log.Printf("%s store shutdown error: %v", name, err)
			}
		}
	}

	shutdownIfPossible("sessions", s.sessions)
	return nil
}

// DevServer holds the handlers of the in-memory API.
type DevServer struct {
	Stores *devserver.Stores

	Auth      *devserver.AuthHandler
	Admin     *devserver.AdminHandler
	Files     *devserver.FileHandler
	Multipart *devserver.MultipartHandler
	Health    *devserver.HealthHandler
}

func BuildDevServer(ctx context.Context, app *App) (*DevServer, error) {
	cfg := app.Config.DevServerConfig
	stores := devserver.NewMemoryStores()

	admin, err := devserver.SeedAdmin(ctx, stores.Users, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	log.Printf("dev server admin account: %s", admin.Username)

	return &DevServer{
		Stores: stores,

		Auth:      devserver.NewAuthHandler(stores.Users, cfg.JWTSecret, cfg.TokenTTL, app.Logger),
		Admin:     devserver.NewAdminHandler(stores.Users, cfg.JWTSecret, cfg.TokenTTL),
		Files:     devserver.NewFileHandler(stores.Files),
		Multipart: devserver.NewMultipartHandler(stores.Uploads, stores.Files, cfg.ChunkSize, app.Logger),
		Health:    devserver.NewHealthHandler(stores.Checks()...),
	}, nil
}
