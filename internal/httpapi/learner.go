package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ent0n29/talkmate/internal/memory"
)

type settingsResponse struct {
	UserID   string          `json:"user_id"`
	Settings memory.Settings `json:"settings"`
}

type memoryResponse struct {
	UserID string        `json:"user_id"`
	Facts  []memory.Fact `json:"facts"`
}

type historyResponse struct {
	UserID  string                `json:"user_id"`
	Entries []memory.DialogueTurn `json:"entries"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	settings, err := s.store.Settings(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, settingsResponse{UserID: userID, Settings: settings})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	var settings memory.Settings
	if err := decodeJSON(r, &settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	settings.InterfaceLanguage = strings.ToLower(strings.TrimSpace(settings.InterfaceLanguage))
	if err := s.store.SaveSettings(r.Context(), userID, settings); err != nil {
		if errors.Is(err, memory.ErrInvalidSettings) {
			respondError(w, http.StatusBadRequest, "invalid_settings", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	s.log.Info().Str("user_id", userID).Str("level", string(settings.Level)).Msg("settings saved")
	respondJSON(w, http.StatusOK, settingsResponse{UserID: userID, Settings: settings})
}

func (s *Server) handleListMemory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	facts, err := s.store.Facts(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("recent")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_recent", "recent must be a positive integer")
			return
		}
		facts = memory.RecentFacts(facts, n)
	}
	if facts == nil {
		facts = []memory.Fact{}
	}
	respondJSON(w, http.StatusOK, memoryResponse{UserID: userID, Facts: facts})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	entries, err := s.store.ConversationLog(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if entries == nil {
		entries = []memory.DialogueTurn{}
	}
	respondJSON(w, http.StatusOK, historyResponse{UserID: userID, Entries: entries})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	if err := s.store.ClearConversationLog(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
