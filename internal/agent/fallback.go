package agent

import (
	"context"
	"errors"
	"fmt"
)

// FallbackClient tries a primary client first and falls back to the secondary on error.
type FallbackClient struct {
	primary   Client
	secondary Client
}

func NewFallbackClient(primary, secondary Client) *FallbackClient {
	return &FallbackClient{primary: primary, secondary: secondary}
}

// Primary returns the preferred client used before fallback.
func (c *FallbackClient) Primary() Client {
	if c == nil {
		return nil
	}
	return c.primary
}

// Secondary returns the fallback client.
func (c *FallbackClient) Secondary() Client {
	if c == nil {
		return nil
	}
	return c.secondary
}

// Configure hands the key to whichever side needs one.
func (c *FallbackClient) Configure(apiKey string) error {
	for _, side := range []Client{c.primary, c.secondary} {
		if cred, ok := side.(Credentialed); ok {
			if err := cred.Configure(apiKey); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *FallbackClient) Generate(ctx context.Context, system string, history []Message, message string) (string, error) {
	if c == nil || c.primary == nil {
		if c != nil && c.secondary != nil {
			return c.secondary.Generate(ctx, system, history, message)
		}
		return "", fmt.Errorf("fallback client misconfigured")
	}
	reply, err := c.primary.Generate(ctx, system, history, message)
	if err == nil {
		return reply, nil
	}
	if c.secondary == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	reply, fbErr := c.secondary.Generate(ctx, system, history, message)
	if fbErr != nil {
		return "", fmt.Errorf("primary client error: %w; fallback client error: %w", err, fbErr)
	}
	return reply, nil
}
