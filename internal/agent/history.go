package agent

import "github.com/ent0n29/talkmate/internal/memory"

// MaxHistoryEntries bounds the dialogue context sent to the model (10 exchanges).
const MaxHistoryEntries = 20

type Message struct {
	Role    memory.Role
	Content string
}

// History is the rolling dialogue context. Oldest entries are evicted first.
type History struct {
	limit   int
	entries []Message
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxHistoryEntries
	}
	return &History{limit: limit}
}

func (h *History) Append(msgs ...Message) {
	h.entries = append(h.entries, msgs...)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]Message(nil), h.entries[over:]...)
	}
}

func (h *History) Snapshot() []Message {
	return append([]Message(nil), h.entries...)
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) Reset() { h.entries = nil }
