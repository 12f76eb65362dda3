// Package devserver is an in-memory implementation of the file-management
// API. It backs local development and the end-to-end tests of the client.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Stores struct {
	Users   store.UserStore
	Uploads store.UploadsStore
	Files   store.FileStore
}

func NewMemoryStores() *Stores {
	return &Stores{
		Users:   store.NewMemoryUserStore(),
		Uploads: store.NewMemoryUploadsStore(),
		Files:   store.NewMemoryFileStore(),
	}
}

// Checks lists the stores reported by the health endpoint.
func (s *Stores) Checks() []store.ReadinessCheck {
	return []store.ReadinessCheck{s.Users, s.Uploads, s.Files}
}

func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func newUser(username, password string, role types.Role) (store.UserRecord, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return store.UserRecord{}, err
	}
	return store.UserRecord{
		User: types.User{
			ID:       uuid.NewString(),
			Username: username,
			Role:     role,
		},
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}, nil
}

// SeedAdmin creates the admin account unless the username is taken.
func SeedAdmin(ctx context.Context, users store.UserStore, username, password string) (*types.User, error) {
	if existing, err := users.GetByUsername(ctx, username); err == nil {
		return &existing.User, nil
	}

	rec, err := newUser(username, password, types.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := users.Create(ctx, rec); err != nil && !errors.Is(err, apperror.ErrUserAlreadyExists) {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return &rec.User, nil
}
