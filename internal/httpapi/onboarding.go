package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/talkmate/internal/memory"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	AgentProvider      string            `json:"agent_provider"`
	StoreMode          string            `json:"store_mode"`
	TranslationEnabled bool              `json:"translation_enabled"`
	Checks             []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.AgentProvider))
	storeMode := memory.Mode(s.store)

	checks := make([]onboardingCheck, 0, 4)
	checks = append(checks, s.agentChecks(provider)...)

	switch storeMode {
	case "postgres", "file":
		checks = append(checks, onboardingCheck{
			ID:     "learner_store",
			Status: "ok",
			Label:  "Learner record storage",
			Detail: storeMode,
		})
	default:
		checks = append(checks, onboardingCheck{
			ID:     "learner_store",
			Status: "warn",
			Label:  "Learner record storage",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL or TALKMATE_STATE_FILE to keep settings, memories and history across restarts.",
		})
	}

	if s.cfg.TranslationEnabled {
		checks = append(checks, onboardingCheck{
			ID:     "translation",
			Status: "ok",
			Label:  "Reply translation",
			Detail: "available; learners opt in through settings",
		})
	} else {
		checks = append(checks, onboardingCheck{
			ID:     "translation",
			Status: "warn",
			Label:  "Reply translation",
			Detail: "disabled",
			Fix:    "Set TRANSLATION_ENABLED=true to offer translated replies.",
		})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		AgentProvider:      provider,
		StoreMode:          storeMode,
		TranslationEnabled: s.cfg.TranslationEnabled,
		Checks:             checks,
	})
}

func (s *Server) agentChecks(provider string) []onboardingCheck {
	switch provider {
	case "openai":
		if strings.TrimSpace(s.cfg.AgentAPIKey) == "" {
			return []onboardingCheck{{
				ID:     "agent_key",
				Status: "error",
				Label:  "Conversation API key",
				Detail: "AGENT_API_KEY is not set",
				Fix:    "Set AGENT_API_KEY (or OPENAI_API_KEY); calls cannot start without it.",
			}}
		}
		return []onboardingCheck{{
			ID:     "agent_key",
			Status: "ok",
			Label:  "Conversation API key",
			Detail: "present",
		}}
	case "http":
		return []onboardingCheck{{
			ID:     "agent_http",
			Status: "ok",
			Label:  "Conversation endpoint",
			Detail: s.cfg.AgentHTTPURL,
		}}
	case "mock":
		return []onboardingCheck{{
			ID:     "agent_mock",
			Status: "warn",
			Label:  "Conversation backend is mock",
			Detail: "Replies are canned echoes.",
			Fix:    "Set AGENT_API_KEY to talk to a real model.",
		}}
	default:
		return []onboardingCheck{{
			ID:     "agent_provider",
			Status: "warn",
			Label:  "Conversation backend",
			Detail: provider,
		}}
	}
}
