package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates an administrator and returns a JWT for the admin API.
// Chat accounts with the user role are rejected.
//
// @Summary      Admin login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	if role != domain.RoleAdmin {
		return fmt.Errorf("admin api: %w", domain.ErrForbidden)
	}

	token, err := h.authService.IssueToken(req.Username, role)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	return c.JSON(http.StatusOK, loginResponse{Token: token, Username: req.Username, Role: string(role)})
}
