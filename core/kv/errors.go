package kv

import "errors"

var (
	// ErrNotFound is returned when a key is absent from a scope.
	ErrNotFound = errors.New("kv: key not found")

	// ErrNoSecret indicates the cookie scope was constructed without secrets.
	ErrNoSecret = errors.New("kv: no secret provided for cookie scope")

	// ErrSecretTooShort indicates a cookie secret doesn't meet the minimum length.
	ErrSecretTooShort = errors.New("kv: secret must be at least 32 characters long")

	// ErrInvalidSignature indicates a signed cookie value failed verification,
	// suggesting tampering or a fully rotated-out secret.
	ErrInvalidSignature = errors.New("kv: cookie signature verification failed")

	// ErrValueTooLarge indicates a value exceeds what a cookie can carry.
	ErrValueTooLarge = errors.New("kv: value exceeds maximum cookie size")
)
