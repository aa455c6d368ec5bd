package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientControl MessageType = "client_control"
	TypeSTTResult     MessageType = "stt_result"
	TypeSTTStatus     MessageType = "stt_status"
	TypeTTSStatus     MessageType = "tts_status"
	TypeVoicesReport  MessageType = "voices_report"
	TypeVoiceSettings MessageType = "voice_settings"

	TypeActivityState       MessageType = "activity_state"
	TypeTranscriptUpdate    MessageType = "transcript_update"
	TypeConversationTurn    MessageType = "conversation_turn"
	TypeTranslation         MessageType = "translation"
	TypeMemorySaved         MessageType = "memory_saved"
	TypeMemoryNoticeCleared MessageType = "memory_notice_cleared"
	TypeMemoryChime         MessageType = "memory_chime"
	TypeSTTCommand          MessageType = "stt_command"
	TypeSpeakCommand        MessageType = "speak_command"
	TypeSpeakCancel         MessageType = "speak_cancel"
	TypeSystemEvent         MessageType = "system_event"
	TypeErrorEvent          MessageType = "error_event"
)

// Client control actions.
const (
	ActionStartCall       = "start_call"
	ActionEndCall         = "end_call"
	ActionResumeListening = "resume_listening"
)

// Recognizer and synthesizer status values reported by the browser.
const (
	STTStatusEnded = "ended"
	STTStatusError = "error"

	TTSStatusStart = "start"
	TTSStatusEnd   = "end"
	TTSStatusError = "error"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Client -> server.

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type STTResult struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	IsFinal   bool        `json:"is_final"`
}

type STTStatus struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Code      string      `json:"code,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

type TTSStatus struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Status      string      `json:"status"`
	Code        string      `json:"code,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}

type VoiceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

type VoicesReport struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Voices    []VoiceInfo `json:"voices"`
}

type VoiceSettings struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Rate      float64     `json:"rate"`
	Pitch     float64     `json:"pitch"`
	VoiceID   string      `json:"voice_id,omitempty"`
}

// Server -> client.

type ActivityState struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	State      string      `json:"state"`
	Previous   string      `json:"previous,omitempty"`
	CallActive bool        `json:"call_active"`
}

type TranscriptUpdate struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	IsFinal   bool        `json:"is_final"`
}

type ConversationTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	TSMs      int64       `json:"ts_ms"`
}

type Translation struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Language  string      `json:"language"`
	Text      string      `json:"text"`
}

type MemorySaved struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	FactID    int64       `json:"fact_id"`
	Content   string      `json:"content"`
	VisibleMs int64       `json:"visible_ms"`
}

type MemoryNoticeCleared struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	FactID    int64       `json:"fact_id"`
}

type MemoryChime struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type STTCommand struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Lang      string      `json:"lang,omitempty"`
}

type SpeakCommand struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Text        string      `json:"text"`
	Lang        string      `json:"lang,omitempty"`
	Rate        float64     `json:"rate"`
	Pitch       float64     `json:"pitch"`
	VoiceID     string      `json:"voice_id,omitempty"`
}

type SpeakCancel struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound websocket frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionStartCall, ActionEndCall, ActionResumeListening:
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	case TypeSTTResult:
		var msg STTResult
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid stt_result")
		}
		return msg, nil
	case TypeSTTStatus:
		var msg STTStatus
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || (msg.Status != STTStatusEnded && msg.Status != STTStatusError) {
			return nil, errors.New("invalid stt_status")
		}
		return msg, nil
	case TypeTTSStatus:
		var msg TTSStatus
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Status {
		case TTSStatusStart, TTSStatusEnd, TTSStatusError:
		default:
			return nil, errors.New("invalid tts_status")
		}
		if msg.SessionID == "" || strings.TrimSpace(msg.UtteranceID) == "" {
			return nil, errors.New("invalid tts_status")
		}
		return msg, nil
	case TypeVoicesReport:
		var msg VoicesReport
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid voices_report")
		}
		return msg, nil
	case TypeVoiceSettings:
		var msg VoiceSettings
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid voice_settings")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf returns the wire type of any protocol message value.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientControl:
		return m.Type, true
	case STTResult:
		return m.Type, true
	case STTStatus:
		return m.Type, true
	case TTSStatus:
		return m.Type, true
	case VoicesReport:
		return m.Type, true
	case VoiceSettings:
		return m.Type, true
	case ActivityState:
		return m.Type, true
	case TranscriptUpdate:
		return m.Type, true
	case ConversationTurn:
		return m.Type, true
	case Translation:
		return m.Type, true
	case MemorySaved:
		return m.Type, true
	case MemoryNoticeCleared:
		return m.Type, true
	case MemoryChime:
		return m.Type, true
	case STTCommand:
		return m.Type, true
	case SpeakCommand:
		return m.Type, true
	case SpeakCancel:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
