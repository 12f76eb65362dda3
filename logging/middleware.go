package logging

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

func LoggerMiddleware(baseLogger *slog.Logger) gin.HandlerFunc {

	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqLogger := baseLogger.With(
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
		)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), reqLogger))

		c.Writer.Header().Set(RequestIDHeader, requestID)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		level := slog.LevelInfo

		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		reqLogger.Log(
			c.Request.Context(),
			level,
			"http request completed",
			slog.Int("status", status),
			slog.Int("bytes", c.Writer.Size()),
			slog.Duration("duration", duration),
		)

	}
}
