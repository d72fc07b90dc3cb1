package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// SessionLister exposes the authenticated chat sessions.
type SessionLister interface {
	Sessions() []domain.SessionInfo
}

type SessionHandler struct {
	sessions SessionLister
}

func NewSessionHandler(sessions SessionLister) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List returns the connected chat sessions, oldest first.
//
// @Summary      List connected sessions
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  listSessionsResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /admin/sessions [get]
func (h *SessionHandler) List(c echo.Context) error {
	infos := h.sessions.Sessions()
	out := make([]sessionResponse, 0, len(infos))
	for _, s := range infos {
		out = append(out, toSessionResponse(s))
	}
	return c.JSON(http.StatusOK, listSessionsResponse{Sessions: out, Count: len(out)})
}
