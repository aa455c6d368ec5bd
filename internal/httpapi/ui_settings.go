package httpapi

import (
	"net/http"

	"github.com/ent0n29/talkmate/internal/cefr"
	"github.com/ent0n29/talkmate/internal/voice"
)

type uiSettingsResponse struct {
	SilenceWindowMS    int64        `json:"silence_window_ms"`
	MemoryNoticeMS     int64        `json:"memory_notice_ms"`
	TranslationEnabled bool         `json:"translation_enabled"`
	SpeakTranslation   bool         `json:"speak_translation"`
	RecognitionLang    string       `json:"recognition_lang"`
	Levels             []cefr.Level `json:"levels"`
	MinVoiceRate       float64      `json:"min_voice_rate"`
	MaxVoiceRate       float64      `json:"max_voice_rate"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		SilenceWindowMS:    s.cfg.SilenceWindow.Milliseconds(),
		MemoryNoticeMS:     s.cfg.MemoryNoticeDuration.Milliseconds(),
		TranslationEnabled: s.cfg.TranslationEnabled,
		SpeakTranslation:   s.cfg.SpeakTranslation,
		RecognitionLang:    voice.RecognitionLang,
		Levels:             cefr.All(),
		MinVoiceRate:       voice.MinRate,
		MaxVoiceRate:       voice.MaxRate,
	})
}
