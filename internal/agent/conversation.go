package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/ent0n29/talkmate/internal/cefr"
	"github.com/ent0n29/talkmate/internal/memory"
)

// Conversation holds the per-call dialogue state on top of a shared Client.
type Conversation struct {
	client Client

	mu          sync.Mutex
	initialized bool
	system      string
	history     *History
	// generation is bumped on every StartConversation so replies from a previous call
	// never land in the new history.
	generation uint64
}

func NewConversation(client Client) *Conversation {
	return &Conversation{
		client:  client,
		history: NewHistory(MaxHistoryEntries),
	}
}

// Initialize configures credentials. Clients that need a key stay uninitialized when
// apiKey is blank.
func (c *Conversation) Initialize(apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return ErrNotInitialized
	}
	if cred, ok := c.client.(Credentialed); ok {
		if strings.TrimSpace(apiKey) == "" {
			c.initialized = false
			return ErrNotInitialized
		}
		if err := cred.Configure(apiKey); err != nil {
			c.initialized = false
			return err
		}
	}
	c.initialized = true
	return nil
}

// StartConversation resets the dialogue history and renders the system instruction for
// the learner's level and known facts.
func (c *Conversation) StartConversation(level cefr.Level, facts []memory.Fact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	c.system = BuildSystemInstruction(level, facts)
	c.history.Reset()
	c.generation++
	return nil
}

// SendMessage generates a reply to text. History only grows when the round trip succeeds.
func (c *Conversation) SendMessage(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return "", ErrNotInitialized
	}
	system := c.system
	prior := c.history.Snapshot()
	gen := c.generation
	c.mu.Unlock()

	reply, err := c.client.Generate(ctx, system, prior, text)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)

	c.mu.Lock()
	if gen == c.generation {
		c.history.Append(
			Message{Role: memory.RoleUser, Content: text},
			Message{Role: memory.RoleAssistant, Content: reply},
		)
	}
	c.mu.Unlock()
	return reply, nil
}

// History returns a copy of the bounded dialogue context.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}
