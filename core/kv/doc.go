// Package kv provides the scoped key-value storage the session and login
// packages persist through. The original browser storage surfaces (cookies,
// tab-scoped ephemeral storage, durable local storage) are modeled as three
// named scopes behind one small interface, keeping the callers
// storage-agnostic and unit-testable without a browser context.
//
// # Scopes
//
//   - Persistent: cross-request storage visible on every render pass.
//     Cookie-backed in production (signed values, secret rotation).
//   - Session: ephemeral storage scoped to one browsing session. Holds
//     in-flight OAuth handshake records.
//   - Durable: long-lived per-visitor cache that outlives the browsing
//     session. Redis- or Postgres-backed.
//
// # Usage
//
//	scopes := kv.Scopes{
//		Persistent: kv.NewCookie(w, r, secrets),
//		Session:    kv.NewMemory(),
//		Durable:    kv.NewRedis(client, kv.WithPrefix("visitor:"+id)),
//	}
//
//	if err := scopes.Session.Set(ctx, "mbin_oauth_state", state); err != nil {
//		return err
//	}
//
// Get returns ErrNotFound for missing keys; Delete is idempotent and never
// fails on absent keys.
package kv
