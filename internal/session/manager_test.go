package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/talkmate/internal/cefr"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s, replaced := m.Create("u1", cefr.B1)
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}
	if replaced != nil {
		t.Fatalf("first session should not replace anything")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Level != cefr.B1 || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.ActiveForUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ActiveForUser() after End error = %v, want ErrNotFound", err)
	}
}

func TestManagerOneLiveSessionPerLearner(t *testing.T) {
	m := NewManager(time.Minute)
	var mu sync.Mutex
	var hooked []string
	m.SetEndHook(func(s *Session, reason string) {
		mu.Lock()
		defer mu.Unlock()
		hooked = append(hooked, s.ID+":"+reason)
	})

	first, _ := m.Create("u1", cefr.A1)
	other, _ := m.Create("u2", cefr.A1)
	second, replaced := m.Create("u1", cefr.A2)
	if replaced == nil || replaced.ID != first.ID {
		t.Fatalf("replaced = %+v, want first session", replaced)
	}

	got, _ := m.Get(first.ID)
	if got.Status != StatusEnded {
		t.Fatalf("first session status = %q, want ended", got.Status)
	}
	live, err := m.ActiveForUser("u1")
	if err != nil || live.ID != second.ID {
		t.Fatalf("ActiveForUser(u1) = %+v, %v; want second session", live, err)
	}
	if o, _ := m.Get(other.ID); o.Status != StatusActive {
		t.Fatalf("other learner's session should stay active")
	}
	if m.ActiveCount() != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", m.ActiveCount())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 1 || hooked[0] != first.ID+":"+EndReasonReplaced {
		t.Fatalf("end hook calls = %v", hooked)
	}
}

func TestManagerTurnCounting(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Create("u1", cefr.A1)
	if err := m.StartTurn(s.ID, "turn-1"); err != nil {
		t.Fatalf("StartTurn() error = %v", err)
	}
	if got, _ := m.Get(s.ID); got.ActiveTurnID != "turn-1" {
		t.Fatalf("ActiveTurnID = %q, want turn-1", got.ActiveTurnID)
	}
	if err := m.CompleteTurn(s.ID); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}
	_ = m.StartTurn(s.ID, "turn-2")
	_ = m.AbortTurn(s.ID)

	got, _ := m.Get(s.ID)
	if got.TurnCount != 1 || got.ActiveTurnID != "" {
		t.Fatalf("session = %+v, want one counted turn and no active turn", got)
	}
	if err := m.Touch("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Touch(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	expired := make(chan string, 1)
	m.SetEndHook(func(s *Session, reason string) {
		if reason == EndReasonExpired {
			expired <- s.ID
		}
	})
	s, _ := m.Create("u1", cefr.A1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("session was not expired")
	}
	if _, err := m.ActiveForUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ActiveForUser() after expiry error = %v, want ErrNotFound", err)
	}
}
