package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/core/domain"
)

func TestRBAC(t *testing.T) {
	tests := []struct {
		name    string
		role    any
		allowed []domain.Role
		want    int
	}{
		{"admin on admin route", "admin", []domain.Role{domain.RoleAdmin}, http.StatusOK},
		{"user on admin route", "user", []domain.Role{domain.RoleAdmin}, http.StatusForbidden},
		{"user on shared route", "user", []domain.Role{domain.RoleAdmin, domain.RoleUser}, http.StatusOK},
		{"unknown role", "guest", []domain.Role{domain.RoleAdmin, domain.RoleUser}, http.StatusForbidden},
		{"no role set", nil, []domain.Role{domain.RoleAdmin}, http.StatusForbidden},
		{"role of wrong type", domain.RoleAdmin, []domain.Role{domain.RoleAdmin}, http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/users", nil), rec)
			if tc.role != nil {
				c.Set("role", tc.role)
			}

			reached := false
			h := RBAC(tc.allowed...)(func(c echo.Context) error {
				reached = true
				return c.NoContent(http.StatusOK)
			})

			if err := h(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if reached != (tc.want == http.StatusOK) {
				t.Fatalf("next handler reached=%v for status %d", reached, rec.Code)
			}
		})
	}
}
