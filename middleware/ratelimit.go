package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits in a fixed window; see store.RedisRateLimiter.
type RateLimiter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, window time.Duration) error
}

func RateLimiterMiddleware(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := fmt.Sprintf("rate:ip:%s", ip)

		count, err := limiter.Incr(c, key)
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			err = limiter.Expire(c, key, window)
			if err != nil {
				log.Println("could not set expiration for rate limiting")
			}
		}

		if count > int64(limit) {
			apperror.TooManyRequestsResponse(c, "Too many requests. Please try again later")
			return
		}

		c.Next()
	}
}
