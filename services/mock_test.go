package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	args := m.Called(ctx, method, path, body, contentType)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func (m *mockClient) DoJSON(ctx context.Context, method, path string, in, out any) error {
	args := m.Called(ctx, method, path, in, out)
	return args.Error(0)
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Set(ctx context.Context, user types.User, token string) error {
	return m.Called(ctx, user, token).Error(0)
}

func (m *mockSession) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) User(ctx context.Context) (*types.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*types.User)
	return u, args.Error(1)
}

func TestAdminServiceImpl_UpdateUserRole(t *testing.T) {
	client := new(mockClient)
	session := new(mockSession)
	ctx := context.Background()

	session.On("User", ctx).Return(&types.User{ID: "a", Role: "2"}, nil)
	client.On("DoJSON", ctx, http.MethodPost, "/api/admin/update_user_role",
		types.UpdateUserRoleRequest{ID: "u1", Role: "admin"}, mock.AnythingOfType("*types.UpdateUserRoleResponse")).
		Run(func(args mock.Arguments) {
			out := args.Get(4).(*types.UpdateUserRoleResponse)
			out.User = types.User{ID: "u1", Username: "bob", Role: types.RoleAdmin}
		}).
		Return(nil)

	user, err := NewAdminServiceImpl(client, session).UpdateUserRole(ctx, "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	client.AssertExpectations(t)
}

func TestAdminServiceImpl_RefusesNonAdmin(t *testing.T) {
	client := new(mockClient)
	session := new(mockSession)
	ctx := context.Background()

	session.On("User", ctx).Return(&types.User{ID: "u1", Role: types.RoleUser}, nil)

	err := NewAdminServiceImpl(client, session).DeleteUser(ctx, "u2")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	client.AssertNotCalled(t, "DoJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthServiceImpl_LoginDoesNotStoreOnError(t *testing.T) {
	client := new(mockClient)
	session := new(mockSession)
	ctx := context.Background()

	apiErr := &apperror.APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	client.On("DoJSON", ctx, http.MethodPost, "/api/login", mock.Anything, mock.Anything).Return(apiErr)

	_, err := NewAuthServiceImpl(client, session).Login(ctx, "bob", "nope")
	assert.ErrorIs(t, err, apiErr)
	session.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthServiceImpl_LoginWithoutToken(t *testing.T) {
	client := new(mockClient)
	session := new(mockSession)
	ctx := context.Background()

	client.On("DoJSON", ctx, http.MethodPost, "/api/login", mock.Anything, mock.Anything).Return(nil)

	_, err := NewAuthServiceImpl(client, session).Login(ctx, "bob", "pw")
	assert.ErrorIs(t, err, apperror.ErrInvalidToken)
	session.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestFileServiceImpl_ListWrapsErrors(t *testing.T) {
	client := new(mockClient)
	ctx := context.Background()

	client.On("DoJSON", ctx, http.MethodGet, "/api/files", nil, mock.AnythingOfType("*types.FilesResponse")).
		Return(apperror.ErrServiceUnavailable)

	_, err := NewFileServiceImpl(client, nil, 0, nil).List(ctx)
	assert.True(t, errors.Is(err, apperror.ErrServiceUnavailable))
	assert.Contains(t, err.Error(), "list files")
}
