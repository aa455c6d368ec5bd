package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/talkmate/internal/turn"
	"github.com/ent0n29/talkmate/internal/voice"
)

type voiceSummary struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

type listVoicesResponse struct {
	SelectedVoiceID string         `json:"selected_voice_id"`
	Voices          []voiceSummary `json:"voices"`
}

// handleListVoices returns what the browser synthesizer reported for a session along with
// the voice the tutor would pick.
func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.orchestrator == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "orchestrator not configured")
		return
	}

	voices, err := s.orchestrator.Voices(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, turn.ErrNoConnection) {
			respondError(w, http.StatusNotFound, "no_connection", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "voices_unavailable", err.Error())
		return
	}

	all := make([]voiceSummary, 0, len(voices))
	for _, v := range voices {
		all = append(all, voiceSummary{VoiceID: v.ID, Name: v.Name, Lang: v.Lang, Default: v.Default})
	}
	resp := listVoicesResponse{Voices: all}
	if picked, ok := voice.SelectVoice(voices, r.URL.Query().Get("voice_id")); ok {
		resp.SelectedVoiceID = picked.ID
	}
	respondJSON(w, http.StatusOK, resp)
}
