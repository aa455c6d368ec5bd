package agent

import (
	"context"
	"errors"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ent0n29/talkmate/internal/memory"
)

const providerOpenAI = "openai"

// OpenAIConfig configures any OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAIClient generates replies through the chat completions API.
type OpenAIClient struct {
	cfg OpenAIConfig

	mu     sync.RWMutex
	client *openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.GPT4oMini
	}
	c := &OpenAIClient{cfg: cfg}
	if strings.TrimSpace(cfg.APIKey) != "" {
		_ = c.Configure(cfg.APIKey)
	}
	return c
}

// Configure swaps the credentials used for subsequent requests.
func (c *OpenAIClient) Configure(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrNotInitialized
	}
	oc := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(c.cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}

	c.mu.Lock()
	c.client = openai.NewClientWithConfig(oc)
	c.mu.Unlock()
	return nil
}

func (c *OpenAIClient) Generate(ctx context.Context, system string, history []Message, message string) (string, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return "", ErrNotInitialized
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == memory.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", &TransportError{Provider: providerOpenAI, StatusCode: openAIStatus(err), Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &TransportError{Provider: providerOpenAI, Err: errors.New("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
