package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string { return s.name }
func (s stubChecker) Ping(_ context.Context) error { return s.err }

func TestReadiness(t *testing.T) {
	cases := []struct {
		name       string
		checkers   []stubChecker
		wantCode   int
		wantStatus string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all healthy", []stubChecker{{name: "mongo"}, {name: "redis"}}, http.StatusOK, "ok"},
		{"one down", []stubChecker{{name: "mongo"}, {name: "redis", err: errors.New("refused")}}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			checkers := make([]ports.HealthChecker, 0, len(tc.checkers))
			for _, c := range tc.checkers {
				checkers = append(checkers, c)
			}
			h := NewReadinessHandler(checkers...)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()
			if err := h.Readiness(e.NewContext(req, rec)); err != nil {
				t.Fatalf("handler error: %v", err)
			}

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			var resp readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Status != tc.wantStatus || len(resp.Dependencies) != len(tc.checkers) {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

type stubSessions []domain.SessionInfo

func (s stubSessions) Sessions() []domain.SessionInfo { return s }

func TestSessionHandler_List(t *testing.T) {
	e := echo.New()
	since := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	h := NewSessionHandler(stubSessions{
		{ID: "a", Username: "alice", Role: domain.RoleUser, RemoteAddr: "10.0.0.2:5000", ConnectedAt: since},
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp listSessionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 1 || resp.Sessions[0].Username != "alice" || resp.Sessions[0].RemoteAddr != "10.0.0.2:5000" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
