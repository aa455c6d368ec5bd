package voice

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ent0n29/talkmate/internal/protocol"
)

// RecognitionLang is the recognizer locale requested from the browser.
const RecognitionLang = "en-US"

// Sender delivers one server message to the connected browser. It reports false when the
// message could not be queued.
type Sender func(msg any) bool

// Bridge implements TranscriptionSource and SpeechOutput over the websocket: commands go
// out as protocol messages and the browser reports recognizer and synthesizer callbacks back.
type Bridge struct {
	sessionID string
	send      Sender

	transcripts chan TranscriptEvent
	speech      chan SpeechEvent
	done        chan struct{}
	closeOnce   sync.Once

	mu     sync.RWMutex
	voices []VoiceInfo
}

func NewBridge(sessionID string, send Sender) *Bridge {
	return &Bridge{
		sessionID:   sessionID,
		send:        send,
		transcripts: make(chan TranscriptEvent, 64),
		speech:      make(chan SpeechEvent, 32),
		done:        make(chan struct{}),
	}
}

func (b *Bridge) Start(_ context.Context) error {
	return b.command(protocol.STTCommand{
		Type:      protocol.TypeSTTCommand,
		SessionID: b.sessionID,
		Action:    "start",
		Lang:      RecognitionLang,
	})
}

func (b *Bridge) Stop(_ context.Context) error {
	return b.command(protocol.STTCommand{
		Type:      protocol.TypeSTTCommand,
		SessionID: b.sessionID,
		Action:    "stop",
	})
}

func (b *Bridge) Events() <-chan TranscriptEvent { return b.transcripts }

func (b *Bridge) Speak(_ context.Context, text string, params Parameters) (string, error) {
	params = params.Clamp()
	if v, ok := SelectVoice(b.snapshotVoices(), params.VoiceID); ok {
		params.VoiceID = v.ID
	}
	id := uuid.NewString()
	err := b.command(protocol.SpeakCommand{
		Type:        protocol.TypeSpeakCommand,
		SessionID:   b.sessionID,
		UtteranceID: id,
		Text:        text,
		Lang:        RecognitionLang,
		Rate:        params.Rate,
		Pitch:       params.Pitch,
		VoiceID:     params.VoiceID,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *Bridge) Cancel(_ context.Context) error {
	return b.command(protocol.SpeakCancel{Type: protocol.TypeSpeakCancel, SessionID: b.sessionID})
}

func (b *Bridge) Voices(_ context.Context) ([]VoiceInfo, error) {
	return b.snapshotVoices(), nil
}

func (b *Bridge) SpeechEvents() <-chan SpeechEvent { return b.speech }

// HandleSTTResult forwards an interim or final recognition result.
func (b *Bridge) HandleSTTResult(msg protocol.STTResult) {
	b.pushTranscript(TranscriptEvent{Type: TranscriptResult, Text: msg.Text, IsFinal: msg.IsFinal})
}

func (b *Bridge) HandleSTTStatus(msg protocol.STTStatus) {
	switch msg.Status {
	case protocol.STTStatusEnded:
		b.pushTranscript(TranscriptEvent{Type: TranscriptEnded})
	case protocol.STTStatusError:
		b.pushTranscript(TranscriptEvent{Type: TranscriptError, Code: strings.TrimSpace(msg.Code), Detail: msg.Detail})
	}
}

func (b *Bridge) HandleTTSStatus(msg protocol.TTSStatus) {
	ev := SpeechEvent{UtteranceID: msg.UtteranceID, Code: msg.Code, Detail: msg.Detail}
	switch msg.Status {
	case protocol.TTSStatusStart:
		ev.Type = SpeechStart
	case protocol.TTSStatusEnd:
		ev.Type = SpeechEnd
	case protocol.TTSStatusError:
		ev.Type = SpeechError
	default:
		return
	}
	select {
	case b.speech <- ev:
	case <-b.done:
	}
}

func (b *Bridge) HandleVoicesReport(msg protocol.VoicesReport) {
	voices := make([]VoiceInfo, 0, len(msg.Voices))
	for _, v := range msg.Voices {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			id = v.Name
		}
		voices = append(voices, VoiceInfo{ID: id, Name: v.Name, Lang: v.Lang, Default: v.Default})
	}
	b.mu.Lock()
	b.voices = voices
	b.mu.Unlock()
}

// Close releases any handler blocked on a full event buffer. Event channels stay open;
// consumers stop on their own context.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bridge) pushTranscript(ev TranscriptEvent) {
	select {
	case b.transcripts <- ev:
	case <-b.done:
	}
}

func (b *Bridge) command(msg any) error {
	select {
	case <-b.done:
		return ErrUnavailable
	default:
	}
	if b.send == nil || !b.send(msg) {
		return ErrUnavailable
	}
	return nil
}

func (b *Bridge) snapshotVoices() []VoiceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]VoiceInfo(nil), b.voices...)
}
