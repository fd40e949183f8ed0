package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// InMemoryStore keeps credentials for the lifetime of the process.
type InMemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUser: make(map[string]string)}
}

func (s *InMemoryStore) Current(_ context.Context, identity string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byUser[strings.TrimSpace(identity)]
	if !ok || cred == "" {
		return "", ErrNotFound
	}
	return cred, nil
}

func (s *InMemoryStore) Set(_ context.Context, identity, credential string) error {
	identity = strings.TrimSpace(identity)
	credential = strings.TrimSpace(credential)
	if identity == "" {
		return errors.New("identity is required")
	}
	if credential == "" {
		return errors.New("credential is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[identity] = credential
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, strings.TrimSpace(identity))
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
