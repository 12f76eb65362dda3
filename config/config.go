package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SessionStoreFile   = "file"
	SessionStoreRedis  = "redis"
	SessionStoreMemory = "memory"
)

type RedisConfig struct {
	HOST string
}

type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

type DevServerConfig struct {
	Addr          string
	JWTSecret     string
	TokenTTL      time.Duration
	ChunkSize     int64
	AdminUsername string
	AdminPassword string
	RateLimit     int
}

type CorsConfig struct {
	Origins string
}

type Config struct {
	Env string

	APIBaseURL        string
	RequestTimeout    time.Duration
	DirectUploadLimit int64

	SessionKey   string
	SessionStore string
	// SessionFile overrides the XDG location of the file session store.
	SessionFile string

	Tracing bool

	RedisConfig     *RedisConfig
	BreakerConfig   *BreakerConfig
	TracingConfig   *TracingConfig
	DevServerConfig *DevServerConfig
	CorsConfig      *CorsConfig
}

func LoadConfig() Config {
	return Config{
		Env: getenv("ENV", "DEV"),

		APIBaseURL:        getenv("API_BASE_URL", "http://localhost:3001"),
		RequestTimeout:    getDuration("REQUEST_TIMEOUT", 5*time.Minute),
		DirectUploadLimit: getInt64("DIRECT_UPLOAD_LIMIT", 10*1024*1024),

		SessionKey:   getenv("SESSION_KEY", "lfusys:session"),
		SessionStore: strings.ToLower(getenv("SESSION_STORE", SessionStoreFile)),
		SessionFile:  os.Getenv("SESSION_FILE"),

		Tracing: getBool("TRACING", false),

		RedisConfig: &RedisConfig{
			HOST: getenv("REDIS_HOST", "localhost:6379"),
		},
		BreakerConfig: &BreakerConfig{
			MaxRequests:         uint32(getInt64("BREAKER_MAX_REQUESTS", 5)),
			Interval:            getDuration("BREAKER_INTERVAL", 30*time.Second),
			Timeout:             getDuration("BREAKER_TIMEOUT", 10*time.Second),
			ConsecutiveFailures: uint32(getInt64("BREAKER_CONSECUTIVE_FAILURES", 5)),
		},
		TracingConfig: &TracingConfig{
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lfusys-client"),
		},
		DevServerConfig: &DevServerConfig{
			Addr:          getenv("DEV_ADDR", ":3001"),
			JWTSecret:     os.Getenv("DEV_JWT_SECRET"),
			TokenTTL:      getDuration("DEV_TOKEN_TTL", 24*time.Hour),
			ChunkSize:     getInt64("DEV_CHUNK_SIZE", 10*1024*1024),
			AdminUsername: getenv("DEV_ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("DEV_ADMIN_PASSWORD"),
			RateLimit:     int(getInt64("RATE_LIMIT", 100)),
		},
		CorsConfig: &CorsConfig{
			Origins: getenv("CORS_ORIGINS", "http://localhost:5173"),
		},
	}
}

// Validate checks the settings every client command depends on.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be absolute, got %q", c.APIBaseURL)
	}

	switch c.SessionStore {
	case SessionStoreFile, SessionStoreRedis, SessionStoreMemory:
	default:
		return fmt.Errorf("SESSION_STORE: unknown store %q", c.SessionStore)
	}

	if c.RequestTimeout < 0 {
		return errors.New("REQUEST_TIMEOUT cannot be negative")
	}
	if c.DirectUploadLimit < 0 {
		return errors.New("DIRECT_UPLOAD_LIMIT cannot be negative")
	}
	return nil
}

func (c Config) ValidateDevServer() error {
	dev := c.DevServerConfig
	if dev == nil {
		return errors.New("dev server config is missing")
	}
	if dev.JWTSecret == "" {
		return errors.New("DEV_JWT_SECRET is required")
	}
	if dev.AdminPassword == "" {
		return errors.New("DEV_ADMIN_PASSWORD is required")
	}
	if dev.ChunkSize <= 0 {
		return errors.New("DEV_CHUNK_SIZE must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt64(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
