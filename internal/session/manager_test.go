package session

import (
	"context"
	"testing"
	"time"

	"github.com/lucafauri/mnemos/internal/agent"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("p1", agent.ModeOpen)
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ProfileID != "p1" || got.PrivacyMode != agent.ModeOpen || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestManagerSetPrivacyModeBetweenMessages(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("p1", agent.ModeOpen)

	updated, err := m.SetPrivacyMode(s.ID, agent.ModeIncognito)
	if err != nil {
		t.Fatalf("SetPrivacyMode() error = %v", err)
	}
	if updated.PrivacyMode != agent.ModeIncognito {
		t.Fatalf("PrivacyMode = %q, want incognito", updated.PrivacyMode)
	}

	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, err := m.SetPrivacyMode(s.ID, agent.ModeOpen); err == nil {
		t.Fatal("SetPrivacyMode() on ended session succeeded, want error")
	}
}

func TestManagerTouchCountsExchanges(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("p1", agent.ModeOpen)
	for i := 0; i < 3; i++ {
		if err := m.Touch(s.ID); err != nil {
			t.Fatalf("Touch() error = %v", err)
		}
	}
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MessageCount != 3 {
		t.Fatalf("MessageCount = %d, want 3", got.MessageCount)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("p1", agent.ModeOpen)

	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired id = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not expire the session")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}
