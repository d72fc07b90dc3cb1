package handler

import (
	"time"

	"github.com/99minutos/lanchat/internal/core/domain"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"     validate:"required,oneof=user admin"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedBy string `json:"created_by,omitempty"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
	Count int            `json:"count"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
	Count    int               `json:"count"`
}

// errorResponse documents the API error envelope for swagger.
type errorResponse struct {
	Error string `json:"error"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Role: string(u.Role)}
}

func toSessionResponse(s domain.SessionInfo) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Username:    s.Username,
		Role:        string(s.Role),
		RemoteAddr:  s.RemoteAddr,
		ConnectedAt: s.ConnectedAt,
	}
}
