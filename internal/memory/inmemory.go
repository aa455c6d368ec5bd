package memory

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

func (s *InMemoryStore) recordLocked(userID string) *Record {
	r, ok := s.records[userID]
	if !ok {
		fresh := newRecord()
		r = &fresh
		s.records[userID] = r
	}
	return r
}

func (s *InMemoryStore) Load(_ context.Context, userID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return newRecord(), nil
	}
	return cloneRecord(*r), nil
}

func (s *InMemoryStore) Settings(_ context.Context, userID string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[userID]; ok {
		return r.Settings, nil
	}
	return DefaultSettings(), nil
}

func (s *InMemoryStore) SaveSettings(_ context.Context, userID string, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(userID).Settings = settings
	return nil
}

func (s *InMemoryStore) AppendFact(_ context.Context, userID, content string) (Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(userID)
	var last int64
	if n := len(r.Facts); n > 0 {
		last = r.Facts[n-1].ID
	}
	now := time.Now().UTC()
	f := Fact{ID: nextFactID(now, last), Content: content, Timestamp: now}
	r.Facts = append(r.Facts, f)
	return f, nil
}

func (s *InMemoryStore) Facts(_ context.Context, userID string) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return append([]Fact(nil), r.Facts...), nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, userID string, turn DialogueTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recordLocked(userID)
	r.ConversationLog = append(r.ConversationLog, turn)
	return nil
}

func (s *InMemoryStore) ConversationLog(_ context.Context, userID string) ([]DialogueTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[userID]
	if !ok {
		return nil, nil
	}
	return append([]DialogueTurn(nil), r.ConversationLog...), nil
}

func (s *InMemoryStore) ClearConversationLog(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[userID]; ok {
		r.ConversationLog = nil
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneRecord(r Record) Record {
	r.Facts = append([]Fact(nil), r.Facts...)
	r.ConversationLog = append([]DialogueTurn(nil), r.ConversationLog...)
	return r
}
