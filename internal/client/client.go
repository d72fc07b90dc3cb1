// Package client is a thin chat client. It performs the login handshake and
// turns server frames into Events on a channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/lanchat/internal/core/domain"
	"github.com/99minutos/lanchat/internal/protocol"
)

var (
	ErrNotLoggedIn     = errors.New("client is not logged in")
	ErrAlreadyLoggedIn = errors.New("client is already logged in")
	ErrClosed          = errors.New("client closed")
)

const (
	defaultEventBuffer = 64
	defaultTimeout     = 10 * time.Second
)

// LoginError carries the server's rejection message.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string { return "login rejected: " + e.Reason }

type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventHistory
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventHistory:
		return "history"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Message is one chat line as seen by a client.
type Message struct {
	Username  string
	Timestamp string
	Content   string
	System    bool
}

// Event is delivered on the Events channel. Only the fields for Kind are set.
// Err on an EventDisconnected is nil for a clean close.
type Event struct {
	Kind    EventKind
	Message Message
	History []Message
	Err     error
}

type Option func(*Client)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithEventBuffer sizes the Events channel.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

type Client struct {
	conn       net.Conn
	reader     *protocol.Reader
	writer     *protocol.Writer
	log        zerolog.Logger
	bufferSize int

	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	loggedIn  bool
	username  string
	role      domain.Role
	closeOnce sync.Once

	// eventsMu guards the hand-off of events to the receive loop. Until
	// receiving is set, Close owns closing the channel.
	eventsMu  sync.Mutex
	receiving bool
	closed    bool
}

// Dial connects to addr. The connection is unauthenticated until Login.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{
		log:        zerolog.Nop(),
		bufferSize: defaultEventBuffer,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c.conn = conn
	c.reader = protocol.NewReader(conn, 0)
	c.writer = protocol.NewWriter(conn)
	c.events = make(chan Event, c.bufferSize)
	return c, nil
}

// Login sends credentials and waits for the response. On rejection the
// connection is closed and a *LoginError is returned; the server allows a
// single attempt per connection. On success, server frames start flowing
// to Events.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Role, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn {
		return "", ErrAlreadyLoggedIn
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = c.conn.SetDeadline(deadline)

	if err := c.writer.WriteEnvelope(protocol.Login{Type: protocol.TypeLogin, Username: username, Password: password}); err != nil {
		_ = c.Close()
		return "", fmt.Errorf("send login: %w", err)
	}

	payload, err := c.reader.Next()
	if err != nil {
		_ = c.Close()
		return "", fmt.Errorf("read login response: %w", err)
	}
	resp, err := protocol.Decode(payload)
	if err != nil {
		_ = c.Close()
		return "", err
	}
	if resp.Type != protocol.TypeLoginResponse {
		_ = c.Close()
		return "", fmt.Errorf("%w: got %q", protocol.ErrUnexpectedType, resp.Type)
	}
	if !resp.Success {
		_ = c.Close()
		return "", &LoginError{Reason: resp.Message}
	}

	_ = c.conn.SetDeadline(time.Time{})

	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	c.loggedIn = true
	c.username = username
	c.role = domain.Role(resp.Role)
	c.receiving = true

	go c.receive()
	return c.role, nil
}

// Send posts a chat line.
func (c *Client) Send(content string) error {
	c.mu.Lock()
	loggedIn := c.loggedIn
	c.mu.Unlock()

	if !loggedIn {
		return ErrNotLoggedIn
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	if err := c.writer.WriteEnvelope(protocol.Outgoing{Type: protocol.TypeMessage, Content: content}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Events is closed after the final EventDisconnected. A client that never
// logged in gets no events, and its channel is closed by Close or by a
// failed Login.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

func (c *Client) Role() domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Close disconnects. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()

		c.eventsMu.Lock()
		c.closed = true
		if !c.receiving {
			close(c.events)
		}
		c.eventsMu.Unlock()
	})
	return err
}

func (c *Client) receive() {
	defer close(c.events)

	for {
		payload, err := c.reader.Next()
		if err != nil {
			c.emitFinal(c.disconnectErr(err))
			return
		}

		frame, err := protocol.Decode(payload)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping connection on malformed frame")
			_ = c.Close()
			c.emitFinal(err)
			return
		}

		var ev Event
		switch frame.Type {
		case protocol.TypeMessage:
			ev = Event{Kind: EventMessage, Message: Message{
				Username:  frame.Username,
				Timestamp: frame.Timestamp,
				Content:   frame.Content,
				System:    frame.System,
			}}
		case protocol.TypeMessageHistory:
			history := make([]Message, 0, len(frame.Messages))
			for _, m := range frame.Messages {
				history = append(history, Message{Username: m.Username, Timestamp: m.Timestamp, Content: m.Content})
			}
			ev = Event{Kind: EventHistory, History: history}
		default:
			c.log.Debug().Str("type", frame.Type).Msg("ignoring unsupported frame")
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			c.emitFinal(nil)
			return
		}
	}
}

// emitFinal makes a best effort to queue the disconnect event without
// blocking a reader that has stopped draining.
func (c *Client) emitFinal(err error) {
	select {
	case c.events <- Event{Kind: EventDisconnected, Err: err}:
	default:
		c.log.Debug().Err(err).Msg("event buffer full, disconnect event dropped")
	}
}

func (c *Client) disconnectErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	return err
}
