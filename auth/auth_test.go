package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestSession_SetLoadInvalidate(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemorySessionStore()
	s := auth.NewSession(backing, "lfusys:session")

	assert.False(t, s.IsAuthenticated(ctx))
	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	token, err := auth.IssueToken(secret, types.User{ID: "u1", Username: "alice", Role: types.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, types.User{ID: "u1", Username: "alice", Role: types.RoleAdmin}, token))

	assert.True(t, s.IsAuthenticated(ctx))
	assert.True(t, s.IsAdmin(ctx))

	// another Session over the same store sees the persisted login
	other := auth.NewSession(backing, "lfusys:session")
	got, err := other.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// a cached session does not see store changes until invalidated
	require.NoError(t, backing.Set(ctx, "lfusys:session:token", "rotated", 0))
	got, _ = other.Token(ctx)
	assert.Equal(t, token, got)
	other.Invalidate()
	got, _ = other.Token(ctx)
	assert.Equal(t, "rotated", got)

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.IsAuthenticated(ctx))
	other.Invalidate()
	assert.False(t, other.IsAuthenticated(ctx))
}

func TestSession_UserReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := auth.NewSession(store.NewMemorySessionStore(), "k")
	require.NoError(t, s.Set(ctx, types.User{ID: "u1", Role: types.RoleUser}, "opaque"))

	u, err := s.User(ctx)
	require.NoError(t, err)
	u.Role = types.RoleAdmin

	assert.False(t, s.IsAdmin(ctx))
}

func TestIssueAndValidateToken(t *testing.T) {
	token, err := auth.IssueToken(secret, types.User{ID: "u1", Username: "bob", Role: types.RoleUser}, time.Minute)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, types.RoleUser, claims.Role)

	_, err = auth.ValidateToken("other-secret", token)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)

	expired, err := auth.IssueToken(secret, types.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = auth.ValidateToken(secret, expired)
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
}

func TestClient_ResolveURL(t *testing.T) {
	c, err := auth.NewClient("http://api.local:3001/", 0, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://api.local:3001/api/files", c.ResolveURL("/api/files"))
	assert.Equal(t, "http://api.local:3001/api/files", c.ResolveURL("api/files"))
	assert.Equal(t, "https://cdn.local/x", c.ResolveURL("https://cdn.local/x"))

	_, err = auth.NewClient("/relative", 0, nil, nil)
	assert.Error(t, err)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	withToken, err := auth.NewClient(srv.URL, time.Second, staticToken("abc"), nil)
	require.NoError(t, err)
	require.NoError(t, withToken.DoJSON(context.Background(), http.MethodGet, "/health", nil, nil))

	anonymous, err := auth.NewClient(srv.URL, time.Second, staticToken(""), nil)
	require.NoError(t, err)
	require.NoError(t, anonymous.DoJSON(context.Background(), http.MethodGet, "/health", nil, nil))

	assert.Equal(t, []string{"Bearer abc", ""}, gotAuth)
}

func TestClient_DoJSONErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"user already exists"}`))
	}))
	defer srv.Close()

	c, err := auth.NewClient(srv.URL, time.Second, nil, nil)
	require.NoError(t, err)

	err = c.DoJSON(context.Background(), http.MethodPost, "/api/admin/create_user", map[string]string{"username": "a"}, nil)
	var apiErr *apperror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "user already exists", apiErr.Error())
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	session := auth.NewSession(store.NewMemorySessionStore(), "k")
	require.NoError(t, session.Set(ctx, types.User{ID: "u1"}, "stale"))

	c, err := auth.NewClient(srv.URL, time.Second, session, nil)
	require.NoError(t, err)

	err = c.DoJSON(ctx, http.MethodGet, "/api/files", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, apperror.StatusCode(err))
	assert.False(t, session.IsAuthenticated(ctx))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
		Timeout: time.Minute,
	})
	c, err := auth.NewClient(srv.URL, time.Second, nil, breaker)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err := c.DoJSON(context.Background(), http.MethodGet, "/api/files", nil, nil)
		assert.Equal(t, "Request failed with status 502", err.Error())
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	err = c.DoJSON(context.Background(), http.MethodGet, "/api/files", nil, nil)
	assert.True(t, errors.Is(err, apperror.ErrServiceUnavailable))
	assert.Equal(t, int32(2), hits.Load())
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/me", auth.JWTMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(auth.ContextUserID))
	})
	r.GET("/admin", auth.JWTMiddleware(secret), auth.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	userToken, err := auth.IssueToken(secret, types.User{ID: "u1", Role: types.RoleUser}, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.IssueToken(secret, types.User{ID: "a1", Role: types.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		path   string
		header string
		status int
	}{
		{"/me", "", http.StatusUnauthorized},
		{"/me", "Basic abc", http.StatusUnauthorized},
		{"/me", "Bearer garbage", http.StatusUnauthorized},
		{"/me", "Bearer " + userToken, http.StatusOK},
		{"/admin", "Bearer " + userToken, http.StatusForbidden},
		{"/admin", "Bearer " + adminToken, http.StatusOK},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, "%s %q", tt.path, tt.header)
	}
}
