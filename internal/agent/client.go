package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client generates one assistant reply from a system instruction, prior dialogue and a new message.
// Implementations are stateless and safe for concurrent use.
type Client interface {
	Generate(ctx context.Context, system string, history []Message, message string) (string, error)
}

// Credentialed is implemented by clients that need an API key before generating.
type Credentialed interface {
	Configure(apiKey string) error
}

// ClientConfig controls client construction.
type ClientConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	HTTPURL     string
	Temperature float64
	MaxTokens   int
}

// NewClient picks the generation backend. "auto" prefers an OpenAI-compatible endpoint when
// a key is present, then a plain HTTP endpoint, then the local mock. With both a key and
// an HTTP endpoint, the endpoint serves as fallback.
func NewClient(cfg ClientConfig) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "auto":
		return newAutoClient(cfg), nil
	case "openai":
		return NewOpenAIClient(openAIConfig(cfg)), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("agent HTTP url is required for http provider")
		}
		return NewHTTPClient(cfg.HTTPURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}
}

func newAutoClient(cfg ClientConfig) Client {
	if strings.TrimSpace(cfg.APIKey) != "" {
		primary := NewOpenAIClient(openAIConfig(cfg))
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewFallbackClient(primary, NewHTTPClient(cfg.HTTPURL))
		}
		return primary
	}
	if strings.TrimSpace(cfg.HTTPURL) != "" {
		return NewHTTPClient(cfg.HTTPURL)
	}
	return NewMockClient()
}

func openAIConfig(cfg ClientConfig) OpenAIConfig {
	return OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}
}

// ProviderName reports the backend kind of c for status output.
func ProviderName(c Client) string {
	switch v := c.(type) {
	case *FallbackClient:
		return ProviderName(v.Primary())
	case *OpenAIClient:
		return "openai"
	case *HTTPClient:
		return "http"
	case *MockClient:
		return "mock"
	case nil:
		return "none"
	default:
		return "custom"
	}
}
