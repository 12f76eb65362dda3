package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Yulian302/lfusys-client/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(limiter RateLimiter, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimiterMiddleware(limiter, limit, time.Minute))
	r.GET("/test", func(c *gin.Context) {
		c.String(200, "ok")
	})
	return r
}

func TestRateLimiterMiddleware(t *testing.T) {
	s := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer rdb.Close()

	r := newTestRouter(store.NewRedisRateLimiter(rdb), 3)

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, 200, w.Code)
	}

	// rate limit should work
	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, 429, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	// window expires
	s.FastForward(time.Minute + time.Second)
	req, _ = http.NewRequest("GET", "/test", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, 200, w.Code)
}

type failingLimiter struct{}

func (failingLimiter) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func (failingLimiter) Expire(context.Context, string, time.Duration) error { return nil }

func TestRateLimiterMiddleware_FailsOpen(t *testing.T) {
	r := newTestRouter(failingLimiter{}, 1)

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, 200, w.Code)
	}
}
