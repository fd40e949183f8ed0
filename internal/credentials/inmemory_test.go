package credentials

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.Current(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current() error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "u1", "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Current(ctx, "u1")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if got != "tok-1" {
		t.Fatalf("Current() = %q, want %q", got, "tok-1")
	}

	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := s.Current(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Current() after Clear error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if err := s.Set(ctx, "", "tok"); err == nil {
		t.Fatalf("Set(empty identity) error = nil, want error")
	}
	if err := s.Set(ctx, "u1", "  "); err == nil {
		t.Fatalf("Set(blank credential) error = nil, want error")
	}
}
