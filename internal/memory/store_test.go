package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ent0n29/talkmate/internal/cefr"
)

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	out := map[string]Store{
		"inmemory": NewInMemoryStore(),
		"file":     fs,
	}
	if dsn := strings.TrimSpace(os.Getenv("TALKMATE_TEST_DATABASE_URL")); dsn != "" {
		pg, err := NewPostgresStore(context.Background(), dsn)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		out["postgres"] = pg
	}
	return out
}

func TestStoreFactsAreAppendOnlyAndMonotonic(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()
			user := "facts-" + name + "-" + time.Now().Format("150405.000000000")

			var before []Fact
			for i := 0; i < 5; i++ {
				f, err := store.AppendFact(ctx, user, "fact")
				if err != nil {
					t.Fatalf("AppendFact() error = %v", err)
				}
				facts, err := store.Facts(ctx, user)
				if err != nil {
					t.Fatalf("Facts() error = %v", err)
				}
				if len(facts) != len(before)+1 {
					t.Fatalf("len(facts) = %d, want %d", len(facts), len(before)+1)
				}
				for j := range before {
					if facts[j].ID != before[j].ID || facts[j].Content != before[j].Content {
						t.Fatalf("fact %d changed: %+v -> %+v", j, before[j], facts[j])
					}
				}
				if facts[len(facts)-1].ID != f.ID {
					t.Fatalf("last fact ID = %d, want %d", facts[len(facts)-1].ID, f.ID)
				}
				if len(before) > 0 && f.ID <= before[len(before)-1].ID {
					t.Fatalf("fact IDs must increase: %d after %d", f.ID, before[len(before)-1].ID)
				}
				before = facts
			}
		})
	}
}

func TestStoreConversationLogAppendAndClear(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()
			user := "log-" + name + "-" + time.Now().Format("150405.000000000")

			if err := store.AppendTurn(ctx, user, DialogueTurn{Role: RoleUser, Content: "hello"}); err != nil {
				t.Fatalf("AppendTurn() error = %v", err)
			}
			if err := store.AppendTurn(ctx, user, DialogueTurn{Role: RoleAssistant, Content: "hi there"}); err != nil {
				t.Fatalf("AppendTurn() error = %v", err)
			}
			log, err := store.ConversationLog(ctx, user)
			if err != nil {
				t.Fatalf("ConversationLog() error = %v", err)
			}
			if len(log) != 2 || log[0].Role != RoleUser || log[1].Content != "hi there" {
				t.Fatalf("unexpected log: %+v", log)
			}
			if log[0].Timestamp.IsZero() {
				t.Fatalf("timestamp should be filled in")
			}

			if err := store.ClearConversationLog(ctx, user); err != nil {
				t.Fatalf("ClearConversationLog() error = %v", err)
			}
			log, _ = store.ConversationLog(ctx, user)
			if len(log) != 0 {
				t.Fatalf("log after clear = %+v, want empty", log)
			}
		})
	}
}

func TestStoreSettingsDefaultsAndValidation(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()
			user := "settings-" + name + "-" + time.Now().Format("150405.000000000")

			rec, err := store.Load(ctx, user)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if rec.Settings != DefaultSettings() {
				t.Fatalf("default settings = %+v", rec.Settings)
			}
			if got, err := store.Settings(ctx, user); err != nil || got != DefaultSettings() {
				t.Fatalf("Settings() = %+v, %v; want defaults", got, err)
			}

			s := DefaultSettings()
			s.Level = cefr.B2
			s.ShowTranslation = true
			s.Voice = VoiceSettings{Rate: 1.2, Pitch: 0.9, VoiceID: "Samantha"}
			if err := store.SaveSettings(ctx, user, s); err != nil {
				t.Fatalf("SaveSettings() error = %v", err)
			}
			rec, _ = store.Load(ctx, user)
			if rec.Settings != s {
				t.Fatalf("settings = %+v, want %+v", rec.Settings, s)
			}
			if got, err := store.Settings(ctx, user); err != nil || got != s {
				t.Fatalf("Settings() = %+v, %v; want %+v", got, err, s)
			}

			bad := s
			bad.Voice.Rate = 3
			if err := store.SaveSettings(ctx, user, bad); !errors.Is(err, ErrInvalidSettings) {
				t.Fatalf("SaveSettings(bad rate) error = %v, want ErrInvalidSettings", err)
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	ctx := context.Background()

	s1, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	f, err := s1.AppendFact(ctx, "u1", "likes football")
	if err != nil {
		t.Fatalf("AppendFact() error = %v", err)
	}
	if err := s1.AppendTurn(ctx, "u1", DialogueTurn{Role: RoleUser, Content: "I like football"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if !strings.Contains(string(raw), Namespace) {
		t.Fatalf("state file should be keyed by namespace: %s", raw)
	}

	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	rec, err := s2.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rec.Facts) != 1 || rec.Facts[0].ID != f.ID || rec.Facts[0].Content != "likes football" {
		t.Fatalf("facts after reopen = %+v", rec.Facts)
	}
	if len(rec.ConversationLog) != 1 {
		t.Fatalf("log after reopen = %+v", rec.ConversationLog)
	}
	next, _ := s2.AppendFact(ctx, "u1", "second")
	if next.ID <= f.ID {
		t.Fatalf("fact ID after reopen = %d, want > %d", next.ID, f.ID)
	}
}

func TestRecentFacts(t *testing.T) {
	facts := []Fact{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	got := RecentFacts(facts, 2)
	if len(got) != 2 || got[0].ID != 4 || got[1].ID != 3 {
		t.Fatalf("RecentFacts(2) = %+v", got)
	}
	all := RecentFacts(facts, 0)
	if len(all) != 4 || all[0].ID != 4 || all[3].ID != 1 {
		t.Fatalf("RecentFacts(0) = %+v", all)
	}
	if len(facts) != 4 || facts[0].ID != 1 {
		t.Fatalf("RecentFacts must not reorder the input")
	}
}

func TestNextFactIDBumpsOnCollision(t *testing.T) {
	now := time.UnixMilli(1000)
	if got := nextFactID(now, 0); got != 1000 {
		t.Fatalf("nextFactID = %d, want 1000", got)
	}
	if got := nextFactID(now, 1000); got != 1001 {
		t.Fatalf("nextFactID = %d, want 1001", got)
	}
}
