// Package authtransport exposes the login flows and session store over
// HTTP. It mounts one route set per concern: provider availability, flow
// initiation, the provider callback, the Telegram widget exchange, the
// Bluesky ticket exchange, and logout.
//
// Every redirect back into the application passes through the
// urlsafe.IsSafeRedirectURL gate; unsafe or absolute targets fall back to
// the site root. Callback failures set short-lived flash cookies and send
// the user to the login page with the current location encoded as
// returnUrl, so the attempt can be retried in place.
package authtransport
