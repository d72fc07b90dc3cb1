package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/api/metrics"
	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/protocol"
)

// Failure reasons sent to clients. They never say why a login failed.
const (
	msgInvalidCredentials = "Invalid username or password"
	msgInvalidLogin       = "Invalid login request"
)

// Close reasons, also used as metric labels.
const (
	reasonEOF           = "eof"
	reasonProtocolError = "protocol_error"
	reasonNetworkError  = "network_error"
	reasonLoginFailed   = "login_failed"
	reasonLoginTimeout  = "login_timeout"
	reasonServerStop    = "server_stop"
)

// handler drives one connection through
// authenticating -> authenticated -> closed.
type handler struct {
	srv    *Server
	sess   *session
	reader *protocol.Reader
	log    zerolog.Logger

	// announced is set once the joined notice went out; teardown only
	// announces a departure after that.
	announced bool
	username  string

	teardownOnce sync.Once
}

func newHandler(srv *Server, conn net.Conn) *handler {
	sess := newSession(conn, srv.cfg.SendBuffer, srv.cfg.WriteTimeout, srv.log)
	return &handler{
		srv:    srv,
		sess:   sess,
		reader: protocol.NewReader(conn, srv.cfg.MaxFrameBytes),
		log:    sess.log,
	}
}

func (h *handler) serve(ctx context.Context) {
	reason := h.run(ctx)
	h.teardown(ctx, reason)
}

func (h *handler) run(ctx context.Context) string {
	h.log.Debug().Msg("connection accepted")

	role, reason, ok := h.authenticate(ctx)
	if !ok {
		return reason
	}

	h.sess.authenticate(h.username, role)
	h.log = h.sess.log

	if err := h.sess.writeDirect(protocol.NewLoginSuccess(role)); err != nil {
		h.log.Debug().Err(err).Msg("failed to send login response")
		return h.classify(err)
	}

	h.srv.wg.Add(1)
	go func() {
		defer h.srv.wg.Done()
		h.sess.writePump()
	}()

	if err := h.srv.broadcaster.Join(ctx, h.sess, h.srv.cfg.HistoryLimit); err != nil {
		h.log.Warn().Err(err).Msg("failed to join session")
		return reasonNetworkError
	}

	h.log.Info().Str("role", string(role)).Msg("user logged in")
	h.srv.broadcaster.Broadcast(ctx, h.username, fmt.Sprintf("%s has joined the chat", h.username), true)
	h.announced = true

	return h.receive(ctx)
}

// authenticate reads exactly one login frame under the login deadline.
func (h *handler) authenticate(ctx context.Context) (domain.Role, string, bool) {
	if h.srv.cfg.LoginTimeout > 0 {
		_ = h.sess.conn.SetReadDeadline(time.Now().Add(h.srv.cfg.LoginTimeout))
	}

	payload, err := h.reader.Next()
	if err != nil {
		reason := h.classify(err)
		if reason == reasonProtocolError {
			metrics.LoginAttemptsTotal.WithLabelValues("malformed").Inc()
			h.reject(msgInvalidLogin)
		}
		return "", reason, false
	}

	login, err := protocol.DecodeLogin(payload)
	if err != nil {
		h.log.Debug().Err(err).Msg("rejecting malformed login")
		metrics.LoginAttemptsTotal.WithLabelValues("malformed").Inc()
		h.reject(msgInvalidLogin)
		return "", reasonProtocolError, false
	}

	role, err := h.srv.auth.Login(ctx, login.Username, login.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
			h.log.Info().Str("username", login.Username).Msg("login rejected")
		} else {
			metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
			h.log.Error().Err(err).Str("username", login.Username).Msg("login failed")
		}
		h.reject(msgInvalidCredentials)
		return "", reasonLoginFailed, false
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	_ = h.sess.conn.SetReadDeadline(time.Time{})
	h.username = login.Username
	return role, "", true
}

func (h *handler) reject(reason string) {
	if err := h.sess.writeDirect(protocol.NewLoginFailure(reason)); err != nil {
		h.log.Debug().Err(err).Msg("failed to send login rejection")
	}
}

// receive forwards chat lines until the connection ends.
func (h *handler) receive(ctx context.Context) string {
	for {
		payload, err := h.reader.Next()
		if err != nil {
			return h.classify(err)
		}

		frame, err := protocol.Decode(payload)
		if err != nil {
			h.log.Warn().Err(err).Msg("closing connection on malformed frame")
			return reasonProtocolError
		}

		switch frame.Type {
		case protocol.TypeMessage:
			h.srv.broadcaster.Broadcast(ctx, h.username, frame.Content, false)
		default:
			h.log.Debug().Str("type", frame.Type).Msg("ignoring unsupported frame")
		}
	}
}

func (h *handler) classify(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return reasonEOF
	case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrMalformed):
		h.log.Warn().Err(err).Msg("protocol error")
		return reasonProtocolError
	}

	if !h.srv.Running() && isExpectedCloseError(err) {
		return reasonServerStop
	}
	var ne net.Error
	if h.username == "" && errors.As(err, &ne) && ne.Timeout() {
		return reasonLoginTimeout
	}
	h.log.Debug().Err(&ConnectionError{Op: "read", Err: err}).Msg("read failed")
	return reasonNetworkError
}

// teardown runs exactly once per connection regardless of the exit path.
func (h *handler) teardown(ctx context.Context, reason string) {
	h.teardownOnce.Do(func() {
		h.srv.registry.Unregister(h.sess.ID())
		if h.announced {
			h.srv.broadcaster.Broadcast(ctx, h.username, fmt.Sprintf("%s has left the chat", h.username), true)
		}
		if err := h.sess.Close(); err != nil {
			h.log.Debug().Err(err).Msg("error closing connection")
		}
		h.srv.untrack(h.sess.conn)

		metrics.ConnectionsClosedTotal.WithLabelValues(reason).Inc()
		evt := h.log.Debug()
		if h.announced {
			evt = h.log.Info()
		}
		evt.Str("reason", reason).Msg("connection closed")
	})
}
