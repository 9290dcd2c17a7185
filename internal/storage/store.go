// Package storage holds the mirror backends: a filesystem tree and an S3 bucket
// laid out identically.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrDelete matches per-key deletion failures.
var ErrDelete = errors.New("delete failed")

// Store is a mirror backend. Keys are slash-separated and use Layout.
type Store interface {
	// Name identifies the backend in logs.
	Name() string
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Put writes data at key atomically: readers see the old state or all of data.
	Put(ctx context.Context, key string, data []byte) error
	// List returns the names of the objects directly under dir. A missing dir is empty.
	List(ctx context.Context, dir string) ([]string, error)
	// Delete removes keys and reports per-key failures without stopping early.
	Delete(ctx context.Context, keys []string) DeleteReport
}

// DeleteFailure is one key that could not be removed.
type DeleteFailure struct {
	Key string
	Err error
}

// DeleteReport summarises a Delete call.
type DeleteReport struct {
	Deleted  int
	Failures []DeleteFailure
}

func deleteFailure(key string, err error) DeleteFailure {
	return DeleteFailure{Key: key, Err: fmt.Errorf("%w: %s: %w", ErrDelete, key, err)}
}
