package conversation

import (
	"context"
	"testing"

	"spectra/internal/sessionstore"
)

func TestStartOrContinueSeedsSystemEntry(t *testing.T) {
	m := NewManager(sessionstore.NewInMemoryStore())
	ctx := context.Background()

	history, err := m.StartOrContinue(ctx, "s1", "be terse", true)
	if err != nil {
		t.Fatalf("StartOrContinue() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("seeded history length = %d, want 1", len(history))
	}
	if history[0].Role != RoleSystem || history[0].Content != "be terse" {
		t.Fatalf("seed entry = %+v, want system prompt", history[0])
	}

	// A second call must return the persisted seed unmodified.
	again, err := m.StartOrContinue(ctx, "s1", "ignored", true)
	if err != nil {
		t.Fatalf("StartOrContinue() error = %v", err)
	}
	if len(again) != 1 || again[0].Content != "be terse" {
		t.Fatalf("existing history was modified: %+v", again)
	}
}

func TestStartOrContinueWithoutEmbeddedSystem(t *testing.T) {
	m := NewManager(sessionstore.NewInMemoryStore())
	history, err := m.StartOrContinue(context.Background(), "s1", "prompt", false)
	if err != nil {
		t.Fatalf("StartOrContinue() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history length = %d, want 0 when system prompt is not history-embedded", len(history))
	}
}

func TestAppendTurnKeepsChronologicalOrder(t *testing.T) {
	m := NewManager(sessionstore.NewInMemoryStore())
	ctx := context.Background()

	if _, err := m.StartOrContinue(ctx, "s1", "sys", true); err != nil {
		t.Fatalf("StartOrContinue() error = %v", err)
	}

	turns := 3
	for i := 0; i < turns; i++ {
		user := Message{Role: RoleUser, Content: "hello"}
		assistant := Message{Role: RoleAssistant, Content: "hi"}
		if err := m.AppendTurn(ctx, "s1", user, assistant); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	history, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if want := 2*turns + 1; len(history) != want {
		t.Fatalf("history length = %d, want %d (2N + seed)", len(history), want)
	}
	for i := 1; i < len(history); i += 2 {
		if history[i].Role != RoleUser || history[i+1].Role != RoleAssistant {
			t.Fatalf("turn pair at %d out of order: %v, %v", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestAppendTurnPreservesImages(t *testing.T) {
	m := NewManager(sessionstore.NewInMemoryStore())
	ctx := context.Background()

	user := Message{Role: RoleUser, Content: "what is this", Images: []string{"aGVsbG8="}}
	if err := m.AppendTurn(ctx, "s1", user, Message{Role: RoleAssistant, Content: "a greeting"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	history, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || len(history[0].Images) != 1 || history[0].Images[0] != "aGVsbG8=" {
		t.Fatalf("image payload not preserved: %+v", history)
	}
}

func TestResetClearsHistory(t *testing.T) {
	m := NewManager(sessionstore.NewInMemoryStore())
	ctx := context.Background()

	if _, err := m.StartOrContinue(ctx, "s1", "sys", true); err != nil {
		t.Fatalf("StartOrContinue() error = %v", err)
	}
	if err := m.AppendTurn(ctx, "s1", Message{Role: RoleUser, Content: "q"}, Message{Role: RoleAssistant, Content: "a"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := m.Reset(ctx, "s1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	history, err := m.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history length after reset = %d, want 0", len(history))
	}
}
