// Package kv defines the key-value store abstraction that holds all durable
// alerter state: snapshot baselines, dedupe stamps, claim keys, cooldowns,
// and session flags. All business logic depends on the Store interface,
// never on concrete implementations. This enables in-memory testing without
// a running database.
package kv

import (
	"context"
	"time"
)

// Store defines all data access operations for the alerter. Keys are plain
// strings; values are strings (callers JSON-encode structured values).
// A ttl <= 0 means no expiry.
type Store interface {
	// Get returns the value for key. The boolean is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Put writes key=value, replacing any existing entry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent writes key=value only when the key does not exist (or has
	// expired). Returns true when the write happened. This is the claim
	// primitive used to serialize overlapping pipeline invocations.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to limit key names with the given prefix, sorted.
	// A limit <= 0 applies the default of 1000.
	List(ctx context.Context, prefix string, limit int) ([]string, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// DefaultListLimit bounds List results when the caller passes limit <= 0.
const DefaultListLimit = 1000
