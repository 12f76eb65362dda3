package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/Yulian302/lfusys-client/store"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checks []store.ReadinessCheck
}

func NewHealthHandler(checks ...store.ReadinessCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	for _, check := range h.checks {
		if err := check.IsReady(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  check.Name() + ": " + err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
