package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

// UserHandler manages chat accounts. Routes are admin-only.
type UserHandler struct {
	authService ports.AuthService
	store       ports.CredentialStore
}

func NewUserHandler(authService ports.AuthService, store ports.CredentialStore) *UserHandler {
	return &UserHandler{authService: authService, store: store}
}

// Create registers a chat account.
//
// @Summary      Create a chat user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New account"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /admin/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	admin, _, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), req.Username, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}

	resp := toUserResponse(user)
	resp.CreatedBy = admin
	return c.JSON(http.StatusCreated, resp)
}

// List returns every account without password hashes.
//
// @Summary      List chat users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  listUsersResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /admin/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.store.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, listUsersResponse{Users: out, Count: len(out)})
}
