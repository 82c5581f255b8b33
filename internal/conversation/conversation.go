// Package conversation owns the per-session ordered message history and its
// persistence in session storage. Only the provider-agnostic shape defined
// here is ever stored; translation to provider-native payloads happens at the
// backend boundary.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"spectra/internal/sessionstore"
)

// Role is the closed set of message authors.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's history. Images are base64-encoded
// payloads and only meaningful on user messages for backends that accept
// image input.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Manager reads and writes a session's history through the session store.
type Manager struct {
	store sessionstore.Store
}

func NewManager(store sessionstore.Store) *Manager {
	return &Manager{store: store}
}

// StartOrContinue returns the session's history, seeding a fresh one with a
// system-role entry derived from the persona prompt when the active backend
// embeds system turns in history. Existing history is returned unmodified.
func (m *Manager) StartOrContinue(ctx context.Context, sessionID, personaPrompt string, embedSystem bool) ([]Message, error) {
	history, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		return history, nil
	}
	if !embedSystem {
		return nil, nil
	}
	history = []Message{{Role: RoleSystem, Content: personaPrompt}}
	if err := m.save(ctx, sessionID, history); err != nil {
		return nil, err
	}
	return history, nil
}

// AppendTurn appends exactly the user/assistant pair to the session's history
// and persists it. Ordering is strictly chronological.
func (m *Manager) AppendTurn(ctx context.Context, sessionID string, user, assistant Message) error {
	history, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	history = append(history, user, assistant)
	return m.save(ctx, sessionID, history)
}

// Reset clears the session's history. Used on persona switch and explicit
// session restart.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID, sessionstore.KeyHistory)
}

// History returns the stored history without modifying it.
func (m *Manager) History(ctx context.Context, sessionID string) ([]Message, error) {
	return m.load(ctx, sessionID)
}

func (m *Manager) load(ctx context.Context, sessionID string) ([]Message, error) {
	raw, ok, err := m.store.Get(ctx, sessionID, sessionstore.KeyHistory)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var history []Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

func (m *Manager) save(ctx context.Context, sessionID string, history []Message) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := m.store.Set(ctx, sessionID, sessionstore.KeyHistory, string(raw)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
