package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/middleware"
	"github.com/Yulian302/lfusys-client/routers"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// BuildRouter assembles the dev server. app.Dev must be set.
func BuildRouter(app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// parts and direct uploads above this spill to temp files
	r.MaxMultipartMemory = 64 << 20

	applyCors(r, app)
	applyLogging(r, app)
	applyRateLimiting(r, app)
	applyTracing(r, app)

	registerRoutes(r, app, app.Dev)

	return r
}

func applyCors(r *gin.Engine, app *App) {
	origins := strings.Split(app.Config.CorsConfig.Origins, ",")
	r.Use(cors.New(
		cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", logging.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Disposition", logging.RequestIDHeader},
			AllowCredentials: true,
		},
	))
}

func applyLogging(r *gin.Engine, app *App) {
	r.Use(logging.LoggerMiddleware(app.Logger))
}

func applyRateLimiting(r *gin.Engine, app *App) {
	if app.Redis == nil {
		return
	}
	rateLimiter := store.NewRedisRateLimiter(app.Redis)
	r.Use(middleware.RateLimiterMiddleware(rateLimiter, app.Config.DevServerConfig.RateLimit, time.Minute))
}

func applyTracing(r *gin.Engine, app *App) {
	if app.TracerProvider == nil {
		return
	}
	r.Use(otelgin.Middleware(app.Config.TracingConfig.ServiceName + "-dev"))
}

func registerRoutes(r *gin.Engine, app *App, d *DevServer) {
	secret := app.Config.DevServerConfig.JWTSecret

	routers.RegisterHealthRoutes(d.Health, r)
	routers.RegisterAuthRoutes(d.Auth, r)
	routers.RegisterAdminRoutes(d.Admin, secret, r)
	routers.RegisterFileRoutes(d.Files, secret, r)
	routers.RegisterMultipartRoutes(d.Multipart, secret, r)

	r.NoRoute(func(ctx *gin.Context) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}
