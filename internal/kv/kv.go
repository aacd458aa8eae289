// Package kv defines the small key-value collaborator the workflow engine
// and webhook adapter use for the dedup set and the debug recorder —
// anything that needs a TTL without going through the relational store.
package kv

import (
	"context"
	"time"
)

// Store is the minimal TTL-aware key-value contract. All values are opaque
// byte strings; callers marshal their own structures.
type Store interface {
	// Get returns the stored value and true, or nil and false if the key is
	// absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given time-to-live. A zero ttl
	// means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets the value only if the key does not already exist,
	// returning whether the set happened. The webhook adapter's dedup set
	// does not use it; it checks with Get and records with Set.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error

	Close() error
}
