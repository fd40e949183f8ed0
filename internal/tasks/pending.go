package tasks

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	taskIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	taskIDLength   = 12
)

// PendingEntry is an admin-facing snapshot of a held task.
type PendingEntry struct {
	ID     string
	Task   *Task
	HeldAt time.Time
}

type pendingEntry struct {
	task   *Task
	heldAt time.Time
}

// PendingStore holds tasks awaiting a credential, keyed by an opaque
// base-36 id correlated with the user-facing approval control. Entries
// older than ttl are evicted by the janitor; ttl <= 0 disables eviction.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
	ttl     time.Duration
}

func NewPendingStore(ttl time.Duration) *PendingStore {
	return &PendingStore{
		entries: make(map[string]*pendingEntry),
		ttl:     ttl,
	}
}

// Hold stores the task under a fresh id and returns the id. Ids are
// re-drawn on the astronomically unlikely collision.
func (s *PendingStore) Hold(t *Task) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newTaskID()
	for _, exists := s.entries[id]; exists; _, exists = s.entries[id] {
		id = newTaskID()
	}
	s.entries[id] = &pendingEntry{task: t, heldAt: time.Now()}
	return id
}

// Get peeks at a held task without consuming it.
func (s *PendingStore) Get(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[strings.TrimSpace(id)]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// Take removes and returns a held task. The second Take of the same id
// reports absent, so a task transitions to the queue exactly once.
func (s *PendingStore) Take(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimSpace(id)
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	delete(s.entries, key)
	return e.task, true
}

// List returns held entries ordered oldest first.
func (s *PendingStore) List() []PendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingEntry, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, PendingEntry{ID: id, Task: e.task, HeldAt: e.heldAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HeldAt.Before(out[j].HeldAt) })
	return out
}

func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor evicts expired entries until the context ends.
func (s *PendingStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictExpired()
			}
		}
	}()
}

func (s *PendingStore) evictExpired() {
	if s.ttl <= 0 {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.Sub(e.heldAt) > s.ttl {
			delete(s.entries, id)
		}
	}
}

func newTaskID() string {
	b := make([]byte, taskIDLength)
	for i := range b {
		b[i] = taskIDAlphabet[rand.IntN(len(taskIDAlphabet))]
	}
	return string(b)
}
