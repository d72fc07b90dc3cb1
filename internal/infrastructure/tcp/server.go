// Package tcp is the chat transport: it accepts stream connections, runs the
// login handshake and pumps frames between sockets and the broadcaster.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/api/metrics"
	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/core/ports"
	"github.com/99minutos/lanchat/internal/core/service"
	"github.com/99minutos/lanchat/internal/protocol"
)

var ErrServerRunning = errors.New("server already running")

const acceptBackoff = 50 * time.Millisecond

// Config holds the transport settings. Zero values fall back to defaults.
type Config struct {
	Host          string
	Port          int
	HistoryLimit  int
	LoginTimeout  time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	MaxFrameBytes int
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = protocol.DefaultMaxFrameSize
	}
	return c
}

// Address is the host:port the server binds. An empty host binds every
// interface.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Server struct {
	cfg         Config
	auth        ports.Authenticator
	registry    *service.Registry
	broadcaster *service.Broadcaster
	log         zerolog.Logger

	mu       sync.Mutex
	running  bool
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewServer(cfg Config, auth ports.Authenticator, registry *service.Registry, broadcaster *service.Broadcaster, log zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg.withDefaults(),
		auth:        auth,
		registry:    registry,
		broadcaster: broadcaster,
		log:         log.With().Str("component", "tcp_server").Logger(),
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and returns once it is accepting. A bind failure
// is returned to the caller.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrServerRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.listener = ln
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.acceptLoop(ctx, ln)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("chat server listening")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error().Err(err).Msg("accept failed")
			time.Sleep(acceptBackoff)
			continue
		}

		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		metrics.ConnectionsAcceptedTotal.Inc()

		go func() {
			defer s.wg.Done()
			newHandler(s, conn).serve(ctx)
		}()
	}
}

// track records conn so Stop can close it, including connections that
// have not logged in yet. It fails once the server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Stop closes the listener and every open connection, then waits for all
// handlers to finish their teardown or for ctx to expire. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.listener = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn().Err(err).Msg("error closing listener")
	}
	for _, c := range conns {
		_ = c.Close()
	}
	s.log.Info().Int("connections", len(conns)).Msg("chat server stopping")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.log.Info().Msg("chat server stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("stop chat server: %w", ctx.Err())
	}
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Sessions lists authenticated sessions.
func (s *Server) Sessions() []domain.SessionInfo {
	return s.registry.Sessions()
}

var errNotRunning = errors.New("chat server not running")

func (s *Server) Name() string { return "chat_server" }

// Ping lets the readiness endpoint report a stopped listener.
func (s *Server) Ping(context.Context) error {
	if !s.Running() {
		return errNotRunning
	}
	return nil
}
