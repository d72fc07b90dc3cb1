// Package protocol defines the JSON envelopes exchanged between chat clients
// and the server, and the newline-delimited framing that carries them over a
// stream socket.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/99minutos/lanchat/internal/core/domain"
)

// Envelope types.
const (
	TypeLogin          = "login"
	TypeLoginResponse  = "login_response"
	TypeMessage        = "message"
	TypeMessageHistory = "message_history"
)

// Login is sent once by the client right after connecting.
type Login struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse answers a Login. Role is set on success, Message on failure.
type LoginResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message,omitempty"`
}

// Outgoing is a chat line sent by a client.
type Outgoing struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Chat is a broadcast chat line or system notice.
type Chat struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
	System    bool   `json:"system"`
}

// HistoryEntry is one replayed message.
type HistoryEntry struct {
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// History carries the replay snapshot, oldest first.
type History struct {
	Type     string         `json:"type"`
	Messages []HistoryEntry `json:"messages"`
}

// Frame is a decoded envelope of any type. Only the fields relevant to Type
// are populated.
type Frame struct {
	Type      string         `json:"type"`
	Username  string         `json:"username,omitempty"`
	Password  string         `json:"password,omitempty"`
	Content   string         `json:"content,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	System    bool           `json:"system,omitempty"`
	Success   bool           `json:"success,omitempty"`
	Role      string         `json:"role,omitempty"`
	Message   string         `json:"message,omitempty"`
	Messages  []HistoryEntry `json:"messages,omitempty"`
}

// NewLoginFailure builds the generic rejection sent for any failed login.
func NewLoginFailure(reason string) LoginResponse {
	return LoginResponse{Type: TypeLoginResponse, Success: false, Message: reason}
}

// NewLoginSuccess builds the acceptance carrying the stored role.
func NewLoginSuccess(role domain.Role) LoginResponse {
	return LoginResponse{Type: TypeLoginResponse, Success: true, Role: string(role)}
}

// NewChat builds a broadcast line. System notices are attributed to
// domain.SystemUsername.
func NewChat(username, timestamp, content string, system bool) Chat {
	if system {
		username = domain.SystemUsername
	}
	return Chat{
		Type:      TypeMessage,
		Username:  username,
		Timestamp: timestamp,
		Content:   content,
		System:    system,
	}
}

// NewHistory converts stored messages into a replay envelope. Messages is
// never nil so it encodes as an empty array.
func NewHistory(messages []domain.Message) History {
	entries := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, HistoryEntry{
			Username:  m.Username,
			Timestamp: m.Timestamp,
			Content:   m.Content,
		})
	}
	return History{Type: TypeMessageHistory, Messages: entries}
}

// Decode parses a single frame payload. It fails with ErrMalformed when the
// payload is not a JSON object carrying a type.
func Decode(payload []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return &f, nil
}

// DecodeLogin parses the first frame of a connection.
func DecodeLogin(payload []byte) (*Login, error) {
	f, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if f.Type != TypeLogin {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedType, f.Type, TypeLogin)
	}
	if f.Username == "" || f.Password == "" {
		return nil, fmt.Errorf("%w: login requires username and password", ErrMalformed)
	}
	return &Login{Type: f.Type, Username: f.Username, Password: f.Password}, nil
}

// Encode marshals v into a single frame payload (without the delimiter).
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}
