package auth

import (
	"fmt"
	"time"

	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/auth/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "lfusys"

type JWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 access token for user.
func IssueToken(secret string, user types.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Username: user.Username,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func ValidateToken(secret, token string) (*JWTClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}
	return parsed.Claims.(*JWTClaims), nil
}
