package agent

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no model endpoint is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Generate(ctx context.Context, _ string, history []Message, message string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(message)
	if base == "" || base == GreetingPrompt {
		return "Hello! How are you today?", nil
	}
	if len(history) == 0 {
		return fmt.Sprintf("I heard you: %s. Tell me more!", base), nil
	}
	return fmt.Sprintf("I heard you: %s. What else?", base), nil
}
