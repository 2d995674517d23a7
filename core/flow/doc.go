// Package flow implements the federated-login state machine shared by every
// provider. One generic engine is parameterized by a per-provider Descriptor
// instead of five near-identical implementations; Telegram (widget-driven,
// no redirect round trip) and Bluesky (backend-driven handshake, no client
// state) are degenerate configurations of the same engine.
//
// # Shape of a login
//
//	mbin := flow.New(flow.Mbin(), apiClient, store, handshakeScope)
//
//	if !mbin.CheckStatus(ctx) {
//		// provider disabled or unreachable: fail closed, no error shown
//	}
//	url, err := mbin.StartLogin(ctx, flow.StartParams{
//		Instance:  "HTTPS://kbin.example/",
//		ReturnURL: "/posts/42",
//	})
//	// navigate the user to url; on callback:
//	res, err := mbin.CompleteLogin(ctx, code, state)
//
// StartLogin persists the handshake record (state nonce, normalized
// instance, return URL) before it returns the authorization URL, because
// navigation may unload the calling context. CompleteLogin verifies the
// state byte-for-byte against the stored record, refuses the token exchange
// on mismatch, and clears the record on every terminal outcome so a
// lingering record always means an attempt is still in flight.
//
// Each attempt is stamped; a completion whose stamp is stale (a newer
// attempt has started) cannot clobber the newer attempt's loading and error
// state.
package flow
