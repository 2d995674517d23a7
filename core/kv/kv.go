package kv

import "context"

// Scope is a flat string key-value namespace. Implementations must be safe
// for concurrent use.
type Scope interface {
	// Get returns the stored value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Scopes bundles the three storage scopes the session subsystem uses.
// Any scope may be nil when a caller does not need it; consumers treat a nil
// scope as always-empty storage.
type Scopes struct {
	// Persistent survives across requests and is visible on both render
	// passes (cookie-backed in production).
	Persistent Scope

	// Session lives for a single browsing session and holds in-flight
	// handshake records.
	Session Scope

	// Durable is the long-lived per-visitor cache.
	Durable Scope
}
