// Package credentials resolves the opaque bearer token associated with a
// requesting identity. Tokens unlock the per-identity generation queue;
// nothing about their format is assumed beyond non-emptiness.
package credentials

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("credential not found")

type Store interface {
	// Current returns the credential for the identity, or ErrNotFound.
	Current(ctx context.Context, identity string) (string, error)
	Set(ctx context.Context, identity, credential string) error
	Clear(ctx context.Context, identity string) error
	Close() error
}
