package voice

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedSource is an in-process TranscriptionSource driven by Emit. It backs tests and
// headless runs where no browser recognizer is attached.
type ScriptedSource struct {
	events chan TranscriptEvent

	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func NewScriptedSource() *ScriptedSource {
	return &ScriptedSource{events: make(chan TranscriptEvent, 64)}
}

func (s *ScriptedSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.starts++
	return nil
}

func (s *ScriptedSource) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.stops++
	return nil
}

func (s *ScriptedSource) Events() <-chan TranscriptEvent { return s.events }

// Emit queues an event as if the recognizer produced it.
func (s *ScriptedSource) Emit(ev TranscriptEvent) { s.events <- ev }

func (s *ScriptedSource) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Counts returns how many times Start and Stop were called.
func (s *ScriptedSource) Counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

// SpokenUtterance records one Speak call.
type SpokenUtterance struct {
	ID     string
	Text   string
	Params Parameters
}

// ScriptedSpeech is an in-process SpeechOutput. Playback callbacks are produced by
// Emit, or automatically when AutoPlay is set.
type ScriptedSpeech struct {
	events   chan SpeechEvent
	autoPlay bool

	mu       sync.Mutex
	spoken   []SpokenUtterance
	cancels  int
	voices   []VoiceInfo
	speakErr error
}

func NewScriptedSpeech(autoPlay bool) *ScriptedSpeech {
	return &ScriptedSpeech{events: make(chan SpeechEvent, 64), autoPlay: autoPlay}
}

func (s *ScriptedSpeech) Speak(_ context.Context, text string, params Parameters) (string, error) {
	s.mu.Lock()
	if s.speakErr != nil {
		err := s.speakErr
		s.mu.Unlock()
		return "", err
	}
	id := fmt.Sprintf("utt-%d", len(s.spoken)+1)
	s.spoken = append(s.spoken, SpokenUtterance{ID: id, Text: text, Params: params})
	s.mu.Unlock()

	if s.autoPlay {
		s.events <- SpeechEvent{Type: SpeechStart, UtteranceID: id}
		s.events <- SpeechEvent{Type: SpeechEnd, UtteranceID: id}
	}
	return id, nil
}

func (s *ScriptedSpeech) Cancel(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	return nil
}

func (s *ScriptedSpeech) Voices(_ context.Context) ([]VoiceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VoiceInfo(nil), s.voices...), nil
}

func (s *ScriptedSpeech) SpeechEvents() <-chan SpeechEvent { return s.events }

func (s *ScriptedSpeech) Emit(ev SpeechEvent) { s.events <- ev }

func (s *ScriptedSpeech) SetVoices(voices []VoiceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = append([]VoiceInfo(nil), voices...)
}

// FailSpeak makes subsequent Speak calls return err.
func (s *ScriptedSpeech) FailSpeak(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakErr = err
}

func (s *ScriptedSpeech) Spoken() []SpokenUtterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpokenUtterance(nil), s.spoken...)
}

func (s *ScriptedSpeech) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}
