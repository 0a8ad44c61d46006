// Package term multiplexes interactive terminals: local shells on a PTY and
// proxied shells inside the remote sandbox, both spoken over WebSocket.
package term

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Close for unknown session ids.
var ErrSessionNotFound = errors.New("terminal session not found")

// Mode selects where the shell actually runs.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// SessionInfo is the externally visible state of one terminal.
type SessionInfo struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

type session struct {
	SessionInfo
	cancel context.CancelFunc
}

// Manager tracks live terminal sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session)}
}

// register creates a session entry and returns its id plus a context that is
// cancelled when the session is closed administratively.
func (m *Manager) register(ctx context.Context, mode Mode) (string, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	s := &session{
		SessionInfo: SessionInfo{
			ID:        uuid.NewString(),
			Mode:      mode,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s.ID, ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()
	}
}

// List returns the live sessions, unordered.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.SessionInfo)
	}
	return out
}

// Close tears down one session; its bridge goroutines observe the cancelled
// context and close both legs.
func (m *Manager) Close(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.cancel()
	return nil
}

// CloseAll cancels every live session. Used at daemon shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.cancel()
	}
}
