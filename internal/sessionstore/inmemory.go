package sessionstore

import (
	"context"
	"sync"
)

// InMemoryStore keeps session state in-process. Suitable for a single
// instance; state is lost on restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string]string)}
}

func (s *InMemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kv, ok := s.sessions[sessionID]
	if !ok {
		return "", false, nil
	}
	v, ok := kv[key]
	return v, ok, nil
}

func (s *InMemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kv, ok := s.sessions[sessionID]
	if !ok {
		kv = make(map[string]string)
		s.sessions[sessionID] = kv
	}
	kv[key] = value
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv, ok := s.sessions[sessionID]; ok {
		delete(kv, key)
	}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
