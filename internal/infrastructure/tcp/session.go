package tcp

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/protocol"
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrPeerClosed     = errors.New("peer closed")
)

// ConnectionError is a socket-level failure. It only ever ends the
// connection it happened on.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return "connection " + e.Op + ": " + e.Err.Error() }

func (e *ConnectionError) Unwrap() error { return e.Err }

// session is one accepted connection. Once authenticated it implements
// ports.Peer: frames handed to Deliver are queued on the outbox and written
// by writePump, so a slow reader only ever stalls its own socket.
type session struct {
	id           string
	conn         net.Conn
	writer       *protocol.Writer
	writeTimeout time.Duration
	log          zerolog.Logger

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// info is written once by authenticate, before the session is
	// registered, and only read afterwards.
	info domain.SessionInfo
}

func newSession(conn net.Conn, sendBuffer int, writeTimeout time.Duration, log zerolog.Logger) *session {
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	return &session{
		id:           id,
		conn:         conn,
		writer:       protocol.NewWriter(conn),
		writeTimeout: writeTimeout,
		log:          log.With().Str("session_id", id).Str("remote_addr", remote).Logger(),
		outbox:       make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		info: domain.SessionInfo{
			ID:          id,
			RemoteAddr:  remote,
			ConnectedAt: time.Now(),
		},
	}
}

func (s *session) authenticate(username string, role domain.Role) {
	s.info.Username = username
	s.info.Role = role
	s.log = s.log.With().Str("username", username).Logger()
}

func (s *session) ID() string { return s.id }

func (s *session) Info() domain.SessionInfo { return s.info }

// Deliver queues frame without blocking.
func (s *session) Deliver(frame []byte) error {
	select {
	case <-s.done:
		return ErrPeerClosed
	default:
	}

	select {
	case s.outbox <- frame:
		return nil
	case <-s.done:
		return ErrPeerClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump and closes the socket, which also unblocks the
// handler's read.
func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	if err != nil && isExpectedCloseError(err) {
		return nil
	}
	return err
}

// writeDirect writes one envelope synchronously. Used before the pump runs.
func (s *session) writeDirect(v any) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return &ConnectionError{Op: "set write deadline", Err: err}
	}
	if err := s.writer.WriteEnvelope(v); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

func (s *session) writePump() {
	for {
		select {
		case frame := <-s.outbox:
			if !s.writeFrame(frame) {
				_ = s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) writeFrame(frame []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		s.logWriteError(err)
		return false
	}
	if err := s.writer.WriteFrame(frame); err != nil {
		s.logWriteError(err)
		return false
	}
	return true
}

func (s *session) logWriteError(err error) {
	if isExpectedCloseError(err) {
		s.log.Debug().Err(err).Msg("write on closed connection")
		return
	}
	s.log.Warn().Err(&ConnectionError{Op: "write", Err: err}).Msg("dropping connection after write failure")
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
