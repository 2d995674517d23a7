// Package urlsafe validates untrusted navigation targets and normalizes
// federation instance hosts.
//
// The package guards two narrow attack surfaces of the login flows:
//
//   - Open redirects: any return-URL recovered from a query parameter or a
//     stored handshake record must pass IsSafeRedirectURL before it is used
//     as a navigation target.
//   - Scheme smuggling: javascript: and data: payloads hidden behind percent
//     encoding are rejected by decoding before inspection.
//
// Usage:
//
//	if urlsafe.IsSafeRedirectURL(returnURL) {
//		http.Redirect(w, r, returnURL, http.StatusFound)
//	}
//
//	host := urlsafe.NormalizeInstance("HTTPS://Mastodon.Social/")
//	// Output: "mastodon.social"
//
// Both functions are pure and never panic on malformed input.
package urlsafe
