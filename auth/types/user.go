package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"

	// adminRoleNumber is the numeric admin role some API versions send.
	adminRoleNumber = 2
)

// Role is sent by the API either as a string ("ROLE_ADMIN") or as a number.
type Role string

func (r *Role) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Role(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = Role(n.String())
	return nil
}

// IsAdmin reports whether the role grants admin views: numeric role 2, or
// any string role containing "admin".
func (r Role) IsAdmin() bool {
	if n, err := strconv.Atoi(string(r)); err == nil {
		return n == adminRoleNumber
	}
	return strings.Contains(strings.ToLower(string(r)), "admin")
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role.IsAdmin()
}

type LoginUser struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type CreateUserResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type DeleteUserRequest struct {
	ID string `json:"id" binding:"required"`
}

type DeleteUserResponse struct {
	Success bool `json:"success"`
}

type ListUsersResponse struct {
	Users []User `json:"users"`
}

type UpdateUserRoleRequest struct {
	ID   string `json:"id" binding:"required"`
	Role string `json:"role" binding:"required"`
}

type UpdateUserRoleResponse struct {
	User User `json:"user"`
}
