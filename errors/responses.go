package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func ErrorResponse(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func BadRequestResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusBadRequest, msg)
}

func UnauthorizedResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusUnauthorized, msg)
}

func ForbiddenResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusForbidden, msg)
}

func NotFoundResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusNotFound, msg)
}

func ConflictResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusConflict, msg)
}

func TooManyRequestsResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusTooManyRequests, msg)
}

func InternalServerErrorResponse(c *gin.Context, msg string) {
	ErrorResponse(c, http.StatusInternalServerError, msg)
}
