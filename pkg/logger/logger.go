// Package logger provides slog attribute helpers shared across the authkit
// packages. Helpers follow the empty-Attr pattern: passing a nil error or an
// empty value yields an attribute slog silently drops, so call sites never
// need nil checks.
package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Provider tags a record with the login provider name.
func Provider(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("provider", name)
}

// Status tags a record with an HTTP status code.
func Status(code int) slog.Attr {
	if code == 0 {
		return slog.Attr{}
	}
	return slog.Int("status", code)
}

// Component tags a record with the emitting component, e.g. "bootstrap".
func Component(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("component", name)
}
