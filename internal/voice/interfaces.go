package voice

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a capability has no live transport behind it.
var ErrUnavailable = errors.New("voice capability unavailable")

// NoSpeechCode is the recognizer error reported when the learner said nothing.
const NoSpeechCode = "no-speech"

type TranscriptEventType string

const (
	TranscriptResult TranscriptEventType = "result"
	TranscriptEnded  TranscriptEventType = "ended"
	TranscriptError  TranscriptEventType = "error"
)

// TranscriptEvent is one callback from the recognizer. Result events carry the full
// interim (or final) text recognized so far.
type TranscriptEvent struct {
	Type    TranscriptEventType
	Text    string
	IsFinal bool
	Code    string
	Detail  string
}

// TranscriptionSource is continuous speech recognition with interim results.
type TranscriptionSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Events() <-chan TranscriptEvent
}

type SpeechEventType string

const (
	SpeechStart SpeechEventType = "start"
	SpeechEnd   SpeechEventType = "end"
	SpeechError SpeechEventType = "error"
)

type SpeechEvent struct {
	Type        SpeechEventType
	UtteranceID string
	Code        string
	Detail      string
}

// VoiceInfo describes one synthesizer voice.
type VoiceInfo struct {
	ID      string
	Name    string
	Lang    string
	Default bool
}

// SpeechOutput is text-to-speech playback.
type SpeechOutput interface {
	Speak(ctx context.Context, text string, params Parameters) (string, error)
	Cancel(ctx context.Context) error
	Voices(ctx context.Context) ([]VoiceInfo, error)
	SpeechEvents() <-chan SpeechEvent
}
