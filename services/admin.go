package services

import (
	"context"
	"net/http"

	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
)

type AdminService interface {
	ListUsers(ctx context.Context) ([]types.User, error)
	CreateUser(ctx context.Context, username, password string) (*types.User, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUserRole(ctx context.Context, id, role string) (*types.User, error)
}

// AdminServiceImpl refuses locally when the session user is not an admin;
// the server enforces the same rule.
type AdminServiceImpl struct {
	client  APIClient
	session SessionManager
}

func NewAdminServiceImpl(client APIClient, session SessionManager) *AdminServiceImpl {
	return &AdminServiceImpl{
		client:  client,
		session: session,
	}
}

func (s *AdminServiceImpl) requireAdmin(ctx context.Context) error {
	user, err := s.session.User(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.ErrNotAuthenticated
	}
	if !user.IsAdmin() {
		return apperror.ErrForbidden
	}
	return nil
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context) ([]types.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	var resp types.ListUsersResponse
	if err := s.client.DoJSON(ctx, http.MethodGet, "/api/admin/list_users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (s *AdminServiceImpl) CreateUser(ctx context.Context, username, password string) (*types.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	var resp types.CreateUserResponse
	err := s.client.DoJSON(ctx, http.MethodPost, "/api/admin/create_user", types.CreateUserRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (s *AdminServiceImpl) DeleteUser(ctx context.Context, id string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	var resp types.DeleteUserResponse
	return s.client.DoJSON(ctx, http.MethodDelete, "/api/admin/delete_user", types.DeleteUserRequest{ID: id}, &resp)
}

func (s *AdminServiceImpl) UpdateUserRole(ctx context.Context, id, role string) (*types.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	var resp types.UpdateUserRoleResponse
	err := s.client.DoJSON(ctx, http.MethodPost, "/api/admin/update_user_role", types.UpdateUserRoleRequest{
		ID:   id,
		Role: role,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.User, nil
}
