// Package bootstrap reconciles persisted session state with the session
// store before the first user-visible render. It runs as two passes that
// must not disagree on any field both of them set, because a disagreement
// surfaces as a visible flash of logged-out state.
//
//   - Hydrate is the pre-render pass: it reads the token and user cookies
//     from the persistent scope and applies them synchronously.
//   - Activate is the interactive pass: it backfills the user from the
//     durable snapshot and kicks off a non-blocking background refresh.
//
// Malformed persisted state never propagates past this package; it is
// logged and the bootstrap proceeds with whatever fields did parse.
//
//	boot := bootstrap.New(store, scopes, bootstrap.WithLogger(log))
//	if err := boot.Hydrate(ctx); err != nil { ... }
//	// render ...
//	if err := boot.Activate(ctx); err != nil { ... }
package bootstrap
