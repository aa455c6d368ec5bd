package session

import (
	"time"

	"github.com/ent0n29/talkmate/internal/cefr"
)

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	UserID string `json:"user_id"`
	Level  string `json:"level,omitempty"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	Level           cefr.Level `json:"level"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	InactivityTTLMS int64      `json:"inactivity_ttl_ms"`
	ReplacedSession string     `json:"replaced_session_id,omitempty"`
}
