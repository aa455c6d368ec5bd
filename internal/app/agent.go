package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ent0n29/talkmate/internal/agent"
	"github.com/ent0n29/talkmate/internal/config"
	"github.com/ent0n29/talkmate/internal/translate"
)

type agentSetup struct {
	client           agent.Client
	translator       translate.Translator
	resolvedProvider string
	detail           string
}

// resolveAgent builds the shared generation client and the translator on top of it.
func resolveAgent(cfg config.Config, log zerolog.Logger) (agentSetup, error) {
	client, err := agent.NewClient(agent.ClientConfig{
		Provider:    cfg.AgentProvider,
		APIKey:      cfg.AgentAPIKey,
		BaseURL:     cfg.AgentBaseURL,
		Model:       cfg.AgentModel,
		HTTPURL:     cfg.AgentHTTPURL,
		Temperature: cfg.AgentTemperature,
		MaxTokens:   cfg.AgentMaxTokens,
	})
	if err != nil {
		return agentSetup{}, fmt.Errorf("agent client init failed: %w", err)
	}

	setup := agentSetup{
		client:           client,
		resolvedProvider: agent.ProviderName(client),
	}
	switch setup.resolvedProvider {
	case "openai":
		setup.detail = "openai-compatible chat (" + cfg.AgentModel + ")"
		if _, ok := client.(*agent.FallbackClient); ok {
			setup.detail += " with http fallback " + cfg.AgentHTTPURL
		}
	case "http":
		setup.detail = "http endpoint " + cfg.AgentHTTPURL
	default:
		setup.detail = setup.resolvedProvider + " (no API key or endpoint configured)"
	}

	if cfg.TranslationEnabled {
		setup.translator = translate.New(client, log)
	} else {
		setup.translator = translate.Disabled{}
	}
	return setup, nil
}
