package urlsafe

import (
	"net/url"
	"strings"
)

// IsSafeRedirectURL reports whether url is safe to use as a post-action
// navigation target. Only same-origin relative paths pass: the value must be
// non-empty, start with a single "/" (protocol-relative "//host" is
// rejected), and must not smuggle a javascript: or data: scheme behind
// percent encoding.
func IsSafeRedirectURL(raw string) bool {
	if raw == "" {
		return false
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return false
	}

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		// Undecodable input is inspected as-is rather than rejected outright,
		// so a stray "%" cannot be used to bypass the substring checks below.
		decoded = raw
	}
	lower := strings.ToLower(decoded)

	if strings.Contains(lower, "javascript:") || strings.Contains(lower, "data:") {
		return false
	}

	return true
}

// NormalizeInstance canonicalizes a user-supplied federation instance host:
// surrounding whitespace and a leading http:// or https:// are stripped, a
// trailing slash is removed, and the result is lowercased. The function is
// idempotent, so the same normalized value is produced no matter how many
// times it passes through.
func NormalizeInstance(instance string) string {
	s := strings.ToLower(strings.TrimSpace(instance))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimSuffix(s, "/")
}
