// Package session holds the authoritative in-memory representation of the
// current identity. The Store is the single source of truth for the token,
// the user record, and the derived role flags; every other component reads
// it through accessors and mutates it only through the defined actions.
//
// # Lifecycle
//
// A Store starts empty, is hydrated by the bootstrap package before the
// first render, is mutated by login flows, and is cleared on logout or when
// a background refresh proves the session invalid.
//
//	store := session.NewStore(apiClient,
//		session.WithLogger(log),
//		session.WithDurable(durableScope),
//	)
//	store.Initialize(session.Snapshot{Token: tok, User: usr})
//
//	_ = store.FetchUser(ctx, session.FetchOptions{Force: true, Background: true, Silent: true})
//
// # Refresh semantics
//
// FetchUser distinguishes "the user is logged out" from "the server is
// temporarily unreachable": only an HTTP 401, 403, or 404 carrying a valid
// response body clears the session. Timeouts, connection failures, and
// malformed responses preserve it, so a deploy never logs users out.
package session
