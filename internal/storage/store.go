package storage

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a store operation is called without a key.
var ErrEmptyKey = errors.New("empty storage key")

// KeyValueStore is durable string storage scoped to the application.
type KeyValueStore interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
