package session

import "errors"

var (
	// ErrNoToken is returned when an action requires a token and none is set,
	// including SetUser with a non-nil user on a tokenless store.
	ErrNoToken = errors.New("session: no token set")

	// ErrSessionInvalid wraps a refresh failure the backend confirmed as an
	// invalid session (401/403/404 with a valid body).
	ErrSessionInvalid = errors.New("session: session invalid")
)

// AuthStatusError is implemented by backend errors that can state whether
// they are authoritative proof of an invalid session. Anything else is
// treated as transient.
type AuthStatusError interface {
	error
	DefinitiveAuthFailure() bool
}

// isDefinitive reports whether err definitively proves the session invalid.
func isDefinitive(err error) bool {
	var authErr AuthStatusError
	return errors.As(err, &authErr) && authErr.DefinitiveAuthFailure()
}
