package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps every learner record in one JSON document on disk, nested under Namespace.
// Each mutation rewrites the document through a temp file and rename.
type FileStore struct {
	mu    sync.Mutex
	path  string
	cache *InMemoryStore
}

type fileDocument map[string]map[string]Record

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("state file path is required")
	}
	s := &FileStore{path: path, cache: NewInMemoryStore()}
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) read() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}
	for userID, rec := range doc[Namespace] {
		r := rec
		if r.Settings.Theme == "" {
			r.Settings = DefaultSettings()
		}
		s.cache.records[userID] = &r
	}
	return nil
}

func (s *FileStore) flushLocked() error {
	s.cache.mu.RLock()
	users := make(map[string]Record, len(s.cache.records))
	for userID, r := range s.cache.records {
		users[userID] = cloneRecord(*r)
	}
	s.cache.mu.RUnlock()

	raw, err := json.MarshalIndent(fileDocument{Namespace: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".talkmate-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, userID string) (Record, error) {
	return s.cache.Load(ctx, userID)
}

func (s *FileStore) Settings(ctx context.Context, userID string) (Settings, error) {
	return s.cache.Settings(ctx, userID)
}

func (s *FileStore) SaveSettings(ctx context.Context, userID string, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.SaveSettings(ctx, userID, settings); err != nil {
		return err
	}
	return s.flushLocked()
}

func (s *FileStore) AppendFact(ctx context.Context, userID, content string) (Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.cache.AppendFact(ctx, userID, content)
	if err != nil {
		return Fact{}, err
	}
	return f, s.flushLocked()
}

func (s *FileStore) Facts(ctx context.Context, userID string) ([]Fact, error) {
	return s.cache.Facts(ctx, userID)
}

func (s *FileStore) AppendTurn(ctx context.Context, userID string, turn DialogueTurn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.AppendTurn(ctx, userID, turn); err != nil {
		return err
	}
	return s.flushLocked()
}

func (s *FileStore) ConversationLog(ctx context.Context, userID string) ([]DialogueTurn, error) {
	return s.cache.ConversationLog(ctx, userID)
}

func (s *FileStore) ClearConversationLog(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.ClearConversationLog(ctx, userID); err != nil {
		return err
	}
	return s.flushLocked()
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}
