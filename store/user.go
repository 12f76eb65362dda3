package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
)

// UserRecord is a stored account. PasswordHash is a bcrypt hash.
type UserRecord struct {
	types.User
	PasswordHash []byte
	CreatedAt    time.Time
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	GetByUsername(ctx context.Context, username string) (*UserRecord, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user UserRecord) error
	UpdateRole(ctx context.Context, id string, role types.Role) (*types.User, error)
	Delete(ctx context.Context, id string) error

	ReadinessCheck
}

// ReadinessCheck is reported by the health endpoint.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
	Name() string
}

type MemoryUserStore struct {
	mu         sync.RWMutex
	byID       map[string]*UserRecord
	byUsername map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]*UserRecord),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryUserStore) IsReady(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryUserStore) Name() string {
	return "UserStore[memory]"
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// List returns users ordered by creation time.
func (s *MemoryUserStore) List(ctx context.Context) ([]types.User, error) {
	s.mu.RLock()
	recs := make([]*UserRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].Username < recs[j].Username
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})

	users := make([]types.User, len(recs))
	for i, rec := range recs {
		users[i] = rec.User
	}
	return users, nil
}

func (s *MemoryUserStore) Create(ctx context.Context, user UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return apperror.ErrUserAlreadyExists
	}
	if _, exists := s.byID[user.ID]; exists {
		return apperror.ErrUserAlreadyExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	s.byID[user.ID] = &user
	s.byUsername[user.Username] = user.ID
	return nil
}

func (s *MemoryUserStore) UpdateRole(ctx context.Context, id string, role types.Role) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	rec.Role = role
	u := rec.User
	return &u, nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return apperror.ErrUserNotFound
	}
	delete(s.byUsername, rec.Username)
	delete(s.byID, id)
	return nil
}
