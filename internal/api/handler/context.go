package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/api/middleware"
	"github.com/99minutos/lanchat/internal/core/domain"
)

// ctxIdentity extracts the claims injected by the Auth middleware. Both must
// be present; an empty username means the middleware did not run.
func ctxIdentity(c echo.Context) (username string, role domain.Role, err error) {
	username, _ = c.Get(middleware.UsernameKey).(string)
	r, _ := c.Get(middleware.RoleKey).(string)
	if username == "" || r == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return username, domain.Role(r), nil
}
