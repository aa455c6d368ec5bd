package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkmate/internal/cefr"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// End reasons passed to the end hook.
const (
	EndReasonClient   = "client"
	EndReasonReplaced = "replaced"
	EndReasonExpired  = "expired"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string     `json:"session_id"`
	UserID         string     `json:"user_id"`
	Level          cefr.Level `json:"level"`
	Status         Status     `json:"status"`
	ActiveTurnID   string     `json:"active_turn_id,omitempty"`
	TurnCount      int        `json:"turn_count"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// Manager is the session registry. A learner has at most one live session: creating a new
// one ends the previous.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	sessionByUser     map[string]string
	inactivityTimeout time.Duration
	onEnd             func(s *Session, reason string)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		sessionByUser:     make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// SetEndHook registers a callback run (outside the lock) whenever a session ends.
func (m *Manager) SetEndHook(hook func(s *Session, reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = hook
}

// Create starts a session for userID, ending the learner's previous live session.
// The replaced session, if any, is returned second.
func (m *Manager) Create(userID string, level cefr.Level) (*Session, *Session) {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		UserID:         userID,
		Level:          level,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	var replaced *Session
	if prevID, ok := m.sessionByUser[userID]; ok && userID != "" {
		if prev, ok := m.sessions[prevID]; ok && prev.Status == StatusActive {
			endLocked(prev, now)
			replaced = clone(prev)
		}
	}
	m.sessions[s.ID] = s
	if userID != "" {
		m.sessionByUser[userID] = s.ID
	}
	hook := m.onEnd
	m.mu.Unlock()

	if replaced != nil && hook != nil {
		hook(replaced, EndReasonReplaced)
	}
	return clone(s), replaced
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// ActiveForUser returns the learner's live session.
func (m *Manager) ActiveForUser(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusActive {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	return m.update(sessionID, func(*Session) {})
}

func (m *Manager) StartTurn(sessionID, turnID string) error {
	return m.update(sessionID, func(s *Session) { s.ActiveTurnID = turnID })
}

// CompleteTurn closes the active turn and counts it.
func (m *Manager) CompleteTurn(sessionID string) error {
	return m.update(sessionID, func(s *Session) {
		s.ActiveTurnID = ""
		s.TurnCount++
	})
}

// AbortTurn closes the active turn without counting it.
func (m *Manager) AbortTurn(sessionID string) error {
	return m.update(sessionID, func(s *Session) { s.ActiveTurnID = "" })
}

func (m *Manager) update(sessionID string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	fn(s)
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	wasActive := s.Status == StatusActive
	endLocked(s, time.Now().UTC())
	if m.sessionByUser[s.UserID] == s.ID {
		delete(m.sessionByUser, s.UserID)
	}
	out := clone(s)
	hook := m.onEnd
	m.mu.Unlock()

	if wasActive && hook != nil {
		hook(out, EndReasonClient)
	}
	return out, nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			// Ended sessions linger one timeout window for status lookups.
			if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		endLocked(s, now)
		expired = append(expired, clone(s))
		if m.sessionByUser[s.UserID] == s.ID {
			delete(m.sessionByUser, s.UserID)
		}
	}
	hook := m.onEnd
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s, EndReasonExpired)
		}
	}
}

func endLocked(s *Session, now time.Time) {
	s.Status = StatusEnded
	s.ActiveTurnID = ""
	s.LastActivityAt = now
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
