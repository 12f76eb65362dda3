package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-client/auth/types"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token attached to outgoing requests.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Session owns the cached token and user for one client. The cache is filled
// lazily from the store and dropped by Invalidate or Clear; nothing is shared
// between Session values.
type Session struct {
	store store.SessionStore
	key   string

	mu     sync.RWMutex
	loaded bool
	token  string
	user   *types.User

	now func() time.Time
}

func NewSession(s store.SessionStore, key string) *Session {
	return &Session{
		store: s,
		key:   key,
		now:   time.Now,
	}
}

func (s *Session) tokenKey() string { return s.key + ":token" }
func (s *Session) userKey() string  { return s.key + ":user" }

func (s *Session) Token(ctx context.Context) (string, error) {
	if err := s.load(ctx); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// User returns a copy of the cached user, or nil when nobody is logged in.
func (s *Session) User(ctx context.Context) (*types.User, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

func (s *Session) IsAuthenticated(ctx context.Context) bool {
	token, err := s.Token(ctx)
	return err == nil && token != ""
}

func (s *Session) IsAdmin(ctx context.Context) bool {
	u, err := s.User(ctx)
	return err == nil && u.IsAdmin()
}

// Set stores user and token. Both expire with the token's exp claim when it
// carries one.
func (s *Session) Set(ctx context.Context, user types.User, token string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	ttl := s.tokenTTL(token)
	if err := s.store.Set(ctx, s.tokenKey(), token, ttl); err != nil {
		return fmt.Errorf("store session token: %w", err)
	}
	if err := s.store.Set(ctx, s.userKey(), string(raw), ttl); err != nil {
		return fmt.Errorf("store session user: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Clear removes the session from the store and the cache.
func (s *Session) Clear(ctx context.Context) error {
	s.Invalidate()

	if err := s.store.Delete(ctx, s.tokenKey()); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	if err := s.store.Delete(ctx, s.userKey()); err != nil {
		return fmt.Errorf("delete session user: %w", err)
	}
	return nil
}

// Invalidate drops the cached values; the next read goes back to the store.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.token = ""
	s.user = nil
	s.mu.Unlock()
}

func (s *Session) load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	token, err := s.store.Get(ctx, s.tokenKey())
	if err != nil {
		return fmt.Errorf("load session token: %w", err)
	}
	rawUser, err := s.store.Get(ctx, s.userKey())
	if err != nil {
		return fmt.Errorf("load session user: %w", err)
	}

	var user *types.User
	if rawUser != "" {
		var u types.User
		// a corrupt user record is treated as logged out, like a missing one
		if err := json.Unmarshal([]byte(rawUser), &u); err == nil {
			user = &u
		}
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// tokenTTL reads exp without verifying the signature; the client never holds
// the signing key. Opaque tokens get no TTL.
func (s *Session) tokenTTL(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		// already expired; keep it briefly so the server can answer 401
		return time.Second
	}
	return ttl
}
