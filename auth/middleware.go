package auth

import (
	"strings"

	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/auth/types"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

func JWTMiddleware(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || token == "" {
			apperror.UnauthorizedResponse(ctx, "invalid authorization header")
			return
		}
		if scheme != "Bearer" {
			apperror.UnauthorizedResponse(ctx, "invalid authorization type")
			return
		}

		claims, err := ValidateToken(secretKey, token)
		if err != nil {
			apperror.UnauthorizedResponse(ctx, "invalid_token")
			return
		}

		ctx.Set(ContextUserID, claims.Subject)
		ctx.Set(ContextUsername, claims.Username)
		ctx.Set(ContextRole, claims.Role)
		ctx.Next()
	}
}

// RequireAdmin must run after JWTMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !types.Role(ctx.GetString(ContextRole)).IsAdmin() {
			apperror.ForbiddenResponse(ctx, "admin role required")
			return
		}
		ctx.Next()
	}
}
