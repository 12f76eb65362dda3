package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/uploads"
)

// APIClient is the transport the services share; auth.Client implements it.
type APIClient interface {
	uploads.Doer
	DoJSON(ctx context.Context, method, path string, in, out any) error
}

// SessionManager persists the logged-in user; auth.Session implements it.
type SessionManager interface {
	Set(ctx context.Context, user types.User, token string) error
	Clear(ctx context.Context) error
	User(ctx context.Context) (*types.User, error)
}

type HealthResponse struct {
	Status string `json:"status"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (*types.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*types.User, error)
	Health(ctx context.Context) (string, error)
}

type AuthServiceImpl struct {
	client  APIClient
	session SessionManager
}

func NewAuthServiceImpl(client APIClient, session SessionManager) *AuthServiceImpl {
	return &AuthServiceImpl{
		client:  client,
		session: session,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*types.User, error) {
	var resp types.LoginResponse
	err := s.client.DoJSON(ctx, http.MethodPost, "/api/login", types.LoginUser{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: login response has no token", apperror.ErrInvalidToken)
	}

	if err := s.session.Set(ctx, resp.User, resp.Token); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *AuthServiceImpl) CurrentUser(ctx context.Context) (*types.User, error) {
	user, err := s.session.User(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.ErrNotAuthenticated
	}
	return user, nil
}

func (s *AuthServiceImpl) Health(ctx context.Context) (string, error) {
	var resp HealthResponse
	if err := s.client.DoJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
