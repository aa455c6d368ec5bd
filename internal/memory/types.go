package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/talkmate/internal/cefr"
)

// Namespace keys the durable learner record in every backend.
const Namespace = "ai-english-learning-storage"

var ErrInvalidSettings = errors.New("invalid settings")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DialogueTurn is one entry of the Conversation Log.
type DialogueTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fact is a learned detail about the learner. Facts are append-only.
type Fact struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type VoiceSettings struct {
	Rate    float64 `json:"rate"`
	Pitch   float64 `json:"pitch"`
	VoiceID string  `json:"voice_id,omitempty"`
}

// Settings is the persisted preference block of a learner.
type Settings struct {
	Theme             string        `json:"theme"`
	Level             cefr.Level    `json:"level"`
	ShowAnimations    bool          `json:"show_animations"`
	InterfaceLanguage string        `json:"interface_language"`
	ShowTranslation   bool          `json:"show_translation"`
	Voice             VoiceSettings `json:"voice"`
}

const (
	MinVoiceRate  = 0.5
	MaxVoiceRate  = 2.0
	MinVoicePitch = 0.5
	MaxVoicePitch = 2.0
)

func DefaultSettings() Settings {
	return Settings{
		Theme:             "light",
		Level:             cefr.Default,
		ShowAnimations:    true,
		InterfaceLanguage: "tr",
		ShowTranslation:   false,
		Voice: VoiceSettings{
			Rate:  0.95,
			Pitch: 1.1,
		},
	}
}

func (s Settings) Validate() error {
	switch s.Theme {
	case "light", "dark":
	default:
		return fmt.Errorf("%w: theme %q (expected light|dark)", ErrInvalidSettings, s.Theme)
	}
	if !s.Level.Valid() {
		return fmt.Errorf("%w: level %q", ErrInvalidSettings, s.Level)
	}
	lang := strings.TrimSpace(s.InterfaceLanguage)
	if len(lang) < 2 || len(lang) > 8 {
		return fmt.Errorf("%w: interface_language %q", ErrInvalidSettings, s.InterfaceLanguage)
	}
	if s.Voice.Rate < MinVoiceRate || s.Voice.Rate > MaxVoiceRate {
		return fmt.Errorf("%w: voice rate %.2f outside [%.1f,%.1f]", ErrInvalidSettings, s.Voice.Rate, MinVoiceRate, MaxVoiceRate)
	}
	if s.Voice.Pitch < MinVoicePitch || s.Voice.Pitch > MaxVoicePitch {
		return fmt.Errorf("%w: voice pitch %.2f outside [%.1f,%.1f]", ErrInvalidSettings, s.Voice.Pitch, MinVoicePitch, MaxVoicePitch)
	}
	return nil
}

// Record is the whole namespaced learner record.
type Record struct {
	Settings        Settings       `json:"settings"`
	Facts           []Fact         `json:"facts"`
	ConversationLog []DialogueTurn `json:"conversation_log"`
}

func newRecord() Record {
	return Record{Settings: DefaultSettings()}
}

// Store persists learner records. Facts and log entries are only ever appended;
// the log can be cleared as a whole.
type Store interface {
	Load(ctx context.Context, userID string) (Record, error)
	Settings(ctx context.Context, userID string) (Settings, error)
	SaveSettings(ctx context.Context, userID string, settings Settings) error
	AppendFact(ctx context.Context, userID, content string) (Fact, error)
	Facts(ctx context.Context, userID string) ([]Fact, error)
	AppendTurn(ctx context.Context, userID string, turn DialogueTurn) error
	ConversationLog(ctx context.Context, userID string) ([]DialogueTurn, error)
	ClearConversationLog(ctx context.Context, userID string) error
	Close() error
}

// RecentFacts returns the last n facts, newest first.
func RecentFacts(facts []Fact, n int) []Fact {
	if n <= 0 || n > len(facts) {
		n = len(facts)
	}
	out := make([]Fact, 0, n)
	for i := len(facts) - 1; i >= len(facts)-n; i-- {
		out = append(out, facts[i])
	}
	return out
}

// nextFactID keeps fact IDs unique and strictly increasing per learner even when two
// facts are created within the same millisecond.
func nextFactID(now time.Time, last int64) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}
