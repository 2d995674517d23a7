package kv

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
)

const (
	// maxCookieSize is the conventional 4KB cookie limit.
	maxCookieSize = 4096
	// minSecretLength is the minimum secret length for HMAC-SHA256 keys.
	minSecretLength = 32
)

// Cookie is a Scope bound to a single request/response pair. Values are
// HMAC-SHA256 signed so a client cannot forge or tamper with them; multiple
// secrets are accepted for key rotation (first secret signs, all verify).
//
// Writes are buffered in an overlay so a Get issued after a Set within the
// same request observes the new value even though the request's Cookie
// header predates it.
type Cookie struct {
	w       http.ResponseWriter
	r       *http.Request
	secrets []string
	opts    cookieOptions

	mu      sync.Mutex
	overlay map[string]*string // nil value marks a pending delete
}

type cookieOptions struct {
	path     string
	domain   string
	maxAge   int
	secure   bool
	httpOnly bool
	sameSite http.SameSite
}

// CookieOption configures the Cookie scope.
type CookieOption func(*cookieOptions)

// WithCookiePath sets the cookie path (default "/").
func WithCookiePath(path string) CookieOption {
	return func(o *cookieOptions) {
		if path != "" {
			o.path = path
		}
	}
}

// WithCookieDomain sets the cookie domain.
func WithCookieDomain(domain string) CookieOption {
	return func(o *cookieOptions) {
		o.domain = domain
	}
}

// WithCookieMaxAge sets the cookie lifetime in seconds.
func WithCookieMaxAge(seconds int) CookieOption {
	return func(o *cookieOptions) {
		o.maxAge = seconds
	}
}

// WithCookieSecure restricts cookies to HTTPS.
func WithCookieSecure(secure bool) CookieOption {
	return func(o *cookieOptions) {
		o.secure = secure
	}
}

// NewCookie creates a cookie-backed scope for one request/response pair.
// At least one secret of 32+ characters is required.
func NewCookie(w http.ResponseWriter, r *http.Request, secrets []string, opts ...CookieOption) (*Cookie, error) {
	secrets = slices.DeleteFunc(slices.Clone(secrets), func(s string) bool { return s == "" })
	if len(secrets) == 0 {
		return nil, ErrNoSecret
	}
	for i, s := range secrets {
		if len(s) < minSecretLength {
			return nil, fmt.Errorf("%w: secret %d has %d chars, need at least %d",
				ErrSecretTooShort, i, len(s), minSecretLength)
		}
	}

	options := cookieOptions{
		path:     "/",
		httpOnly: true,
		sameSite: http.SameSiteLaxMode,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Cookie{
		w:       w,
		r:       r,
		secrets: secrets,
		opts:    options,
		overlay: make(map[string]*string),
	}, nil
}

// Get returns the verified value for key, checking buffered writes first.
// Tampered or malformed cookie values yield ErrInvalidSignature.
func (c *Cookie) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	pending, buffered := c.overlay[key]
	c.mu.Unlock()

	if buffered {
		if pending == nil {
			return "", ErrNotFound
		}
		return *pending, nil
	}

	cookie, err := c.r.Cookie(key)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrNotFound
		}
		return "", err
	}
	return c.verify(cookie.Value)
}

// Set signs value and queues a Set-Cookie header for the response.
func (c *Cookie) Set(_ context.Context, key, value string) error {
	signed := c.sign(value)

	cookie := &http.Cookie{
		Name:     key,
		Value:    signed,
		Path:     c.opts.path,
		Domain:   c.opts.domain,
		MaxAge:   c.opts.maxAge,
		Secure:   c.opts.secure,
		HttpOnly: c.opts.httpOnly,
		SameSite: c.opts.sameSite,
	}
	if len(cookie.String()) > maxCookieSize {
		return fmt.Errorf("%w: cookie %q", ErrValueTooLarge, key)
	}

	http.SetCookie(c.w, cookie)

	c.mu.Lock()
	c.overlay[key] = &value
	c.mu.Unlock()
	return nil
}

// Delete expires the cookie on the client and in the overlay.
func (c *Cookie) Delete(_ context.Context, key string) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     key,
		Value:    "",
		Path:     c.opts.path,
		Domain:   c.opts.domain,
		MaxAge:   -1,
		Secure:   c.opts.secure,
		HttpOnly: c.opts.httpOnly,
		SameSite: c.opts.sameSite,
	})

	c.mu.Lock()
	c.overlay[key] = nil
	c.mu.Unlock()
	return nil
}

// sign produces "base64(value)|base64(hmac)" using the primary secret.
func (c *Cookie) sign(value string) string {
	mac := hmac.New(sha256.New, []byte(c.secrets[0]))
	mac.Write([]byte(value))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(value)) + "|" + sig
}

// verify checks the signature against every secret so rotated-out keys keep
// verifying existing cookies.
func (c *Cookie) verify(signed string) (string, error) {
	parts := strings.SplitN(signed, "|", 2)
	if len(parts) != 2 {
		return "", ErrInvalidSignature
	}

	value, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidSignature
	}

	valid := slices.ContainsFunc(c.secrets, func(secret string) bool {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(value)
		expected := base64.URLEncoding.EncodeToString(mac.Sum(nil))
		return subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) == 1
	})
	if !valid {
		return "", ErrInvalidSignature
	}

	return string(value), nil
}
