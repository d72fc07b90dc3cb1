package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the sentinels handlers return to a status and public text.
// An empty message means the error text itself is safe to show.
var statusFor = []struct {
	target error
	code   int
	msg    string
}{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
	{domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{domain.ErrUserExists, http.StatusConflict, "user already exists"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, ""},
	{domain.ErrInvalidRole, http.StatusUnprocessableEntity, ""},
}

// NewHTTPErrorHandler renders errors as {"error": "..."}. Storage failures and
// unknown errors are logged and answered without their details.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}

	for _, m := range statusFor {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.msg == "" {
			return m.code, err.Error()
		}
		return m.code, m.msg
	}

	evt := log.Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path())

	var se *domain.StorageError
	if errors.As(err, &se) {
		evt.Str("op", se.Op).Msg("storage failure")
		return http.StatusServiceUnavailable, "storage unavailable"
	}

	evt.Msg("unhandled error")
	return http.StatusInternalServerError, "internal server error"
}
