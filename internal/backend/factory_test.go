package backend

import "testing"

func TestNewSelectsVariant(t *testing.T) {
	b, err := New(Config{Provider: "hosted", APIKey: "sk-test", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New(hosted) error = %v", err)
	}
	if b.Name() != "hosted" || b.SupportsImages() {
		t.Fatalf("hosted backend = name %q images %v", b.Name(), b.SupportsImages())
	}

	b, err = New(Config{Provider: "local", Host: "http://localhost:11434", Model: "llama3:latest"})
	if err != nil {
		t.Fatalf("New(local) error = %v", err)
	}
	if b.Name() != "local" || !b.SupportsImages() {
		t.Fatalf("local backend = name %q images %v", b.Name(), b.SupportsImages())
	}
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	if _, err := New(Config{Provider: "hosted"}); err == nil {
		t.Fatalf("New(hosted without key) error = nil")
	}
	if _, err := New(Config{Provider: "local"}); err == nil {
		t.Fatalf("New(local without host) error = nil")
	}
	if _, err := New(Config{Provider: "quantum"}); err == nil {
		t.Fatalf("New(unknown provider) error = nil")
	}
}
