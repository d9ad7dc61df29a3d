// Package kv provides the key-value store that holds notes and session
// pointers.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Metadata is an arbitrary JSON object stored alongside a value.
type Metadata map[string]any

// Store is a string key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value of key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key, replacing any previous value and
	// metadata. A nil meta stores no metadata.
	Put(ctx context.Context, key, value string, meta Metadata) error

	// Metadata returns the metadata stored with key, or ErrNotFound when
	// the key does not exist. A key stored without metadata returns nil.
	Metadata(ctx context.Context, key string) (Metadata, error)
}
