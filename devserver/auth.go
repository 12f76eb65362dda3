package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Yulian302/lfusys-client/auth"
	"github.com/Yulian302/lfusys-client/auth/types"
	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/Yulian302/lfusys-client/logging"
	"github.com/Yulian302/lfusys-client/store"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	users    store.UserStore
	secret   string
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(users store.UserStore, secret string, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req types.LoginUser
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(ctx, "invalid input")
		return
	}

	rec, err := h.users.GetByUsername(ctx, req.Username)
	if err != nil {
		apperror.UnauthorizedResponse(ctx, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(req.Password)); err != nil {
		apperror.UnauthorizedResponse(ctx, "invalid credentials")
		return
	}

	token, err := auth.IssueToken(h.secret, rec.User, h.tokenTTL)
	if err != nil {
		logging.FromContext(ctx.Request.Context(), h.logger).Error("could not issue token", slog.String("error", err.Error()))
		apperror.InternalServerErrorResponse(ctx, "could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, types.LoginResponse{
		User:  rec.User,
		Token: token,
	})
}

// AdminHandler serves the /api/admin routes; every route runs behind
// auth.RequireAdmin.
type AdminHandler struct {
	users    store.UserStore
	secret   string
	tokenTTL time.Duration
}

func NewAdminHandler(users store.UserStore, secret string, tokenTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	users, err := h.users.List(ctx)
	if err != nil {
		apperror.InternalServerErrorResponse(ctx, "could not list users")
		return
	}
	ctx.JSON(http.StatusOK, types.ListUsersResponse{Users: users})
}

func (h *AdminHandler) CreateUser(ctx *gin.Context) {
	var req types.CreateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(ctx, err.Error())
		return
	}

	rec, err := newUser(req.Username, req.Password, types.RoleUser)
	if err != nil {
		apperror.InternalServerErrorResponse(ctx, "could not create user")
		return
	}
	if err := h.users.Create(ctx, rec); err != nil {
		if errors.Is(err, apperror.ErrUserAlreadyExists) {
			apperror.ConflictResponse(ctx, "user already exists")
			return
		}
		apperror.InternalServerErrorResponse(ctx, "could not create user")
		return
	}

	token, err := auth.IssueToken(h.secret, rec.User, h.tokenTTL)
	if err != nil {
		apperror.InternalServerErrorResponse(ctx, "could not issue token")
		return
	}

	ctx.JSON(http.StatusOK, types.CreateUserResponse{
		User:  rec.User,
		Token: token,
	})
}

func (h *AdminHandler) DeleteUser(ctx *gin.Context) {
	var req types.DeleteUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(ctx, err.Error())
		return
	}

	if req.ID == ctx.GetString(auth.ContextUserID) {
		apperror.ForbiddenResponse(ctx, "cannot delete your own account")
		return
	}

	target, err := h.users.GetByID(ctx, req.ID)
	if err != nil {
		apperror.NotFoundResponse(ctx, "user not found")
		return
	}
	if target.IsAdmin() {
		apperror.ForbiddenResponse(ctx, "cannot delete admin accounts")
		return
	}

	if err := h.users.Delete(ctx, req.ID); err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			apperror.NotFoundResponse(ctx, "user not found")
			return
		}
		apperror.InternalServerErrorResponse(ctx, "could not delete user")
		return
	}

	ctx.JSON(http.StatusOK, types.DeleteUserResponse{Success: true})
}

func (h *AdminHandler) UpdateUserRole(ctx *gin.Context) {
	var req types.UpdateUserRoleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		apperror.BadRequestResponse(ctx, err.Error())
		return
	}

	role, ok := normalizeRole(req.Role)
	if !ok {
		apperror.BadRequestResponse(ctx, "unknown role "+req.Role)
		return
	}
	if req.ID == ctx.GetString(auth.ContextUserID) {
		apperror.ForbiddenResponse(ctx, "cannot change your own role")
		return
	}

	user, err := h.users.UpdateRole(ctx, req.ID, role)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			apperror.NotFoundResponse(ctx, "user not found")
			return
		}
		apperror.InternalServerErrorResponse(ctx, "could not update role")
		return
	}

	ctx.JSON(http.StatusOK, types.UpdateUserRoleResponse{User: *user})
}

// normalizeRole accepts "admin", "ROLE_ADMIN", "2" and the user forms.
func normalizeRole(s string) (types.Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN", types.RoleAdmin, "2":
		return types.RoleAdmin, true
	case "USER", types.RoleUser, "1":
		return types.RoleUser, true
	default:
		return "", false
	}
}
