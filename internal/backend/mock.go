package backend

import (
	"context"
	"sync"
)

// MockBackend is a scripted backend for tests.
type MockBackend struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Images   bool
	SysEmbed bool
	Requests []Request
}

func NewMockBackend(reply string) *MockBackend {
	return &MockBackend{Reply: reply, Images: true, SysEmbed: true}
}

func (b *MockBackend) Name() string          { return "mock" }
func (b *MockBackend) SupportsImages() bool  { return b.Images }
func (b *MockBackend) SystemInHistory() bool { return b.SysEmbed }

func (b *MockBackend) Generate(_ context.Context, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Requests = append(b.Requests, req)
	if b.Err != nil {
		return "", b.Err
	}
	return b.Reply, nil
}

// CallCount reports how many times Generate was invoked.
func (b *MockBackend) CallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Requests)
}

var _ Backend = (*MockBackend)(nil)
