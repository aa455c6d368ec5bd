package turn

import (
	"strings"
	"time"

	"github.com/ent0n29/talkmate/internal/memory"
	"github.com/ent0n29/talkmate/internal/translate"
)

// Utterance is the learner's in-progress speech, overwritten by every recognition result.
type Utterance struct {
	Text    string
	IsFinal bool
}

// Error messages shown to the learner.
const (
	MessageReplyFailed = "Failed to get response. Please try again."
	MessageStartFailed = "Failed to start conversation. Please check your API key."
)

// Error event codes.
const (
	CodeAgentNotInitialized = "agent_not_initialized"
	CodeAgentStartFailed    = "agent_start_failed"
	CodeAgentTransport      = "agent_transport_error"
	CodeRecognition         = "recognition_error"
	CodeSpeechOutput        = "speech_output_error"
	CodeCallNotActive       = "call_not_active"
)

// pendingTurn is the pipeline's working set for one submitted utterance.
type pendingTurn struct {
	id          string
	userText    string
	reply       string
	translation string
	submittedAt time.Time
	repliedAt   time.Time
}

// TranslationTarget returns the language a reply should be translated into, if any.
// Translation runs only when the learner asked for it and reads a non-English interface.
func TranslationTarget(settings memory.Settings, enabled bool) (string, bool) {
	if !enabled || !settings.ShowTranslation {
		return "", false
	}
	lang := strings.ToLower(strings.TrimSpace(settings.InterfaceLanguage))
	if lang == "" || lang == translate.SourceLanguage {
		return "", false
	}
	return lang, true
}

// SpokenText picks what the synthesizer reads for a turn.
func SpokenText(reply, translation string, speakTranslation bool) string {
	if speakTranslation && strings.TrimSpace(translation) != "" {
		return translation
	}
	return reply
}
