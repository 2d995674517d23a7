package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
	"github.com/agorahq/authkit/pkg/logger"
)

// Storage keys. These must stay stable across deploys so sessions persisted
// by a previous release keep hydrating.
const (
	// TokenKey holds the bearer token in the persistent scope.
	TokenKey = "token"
	// UserDataKey holds the serialized user in the persistent scope.
	UserDataKey = "user_data"
	// DurableUserKey holds the serialized user in the durable scope.
	DurableUserKey = "user"
)

// Bootstrap populates a session store from persisted state.
type Bootstrap struct {
	store  *session.Store
	scopes kv.Scopes
	log    *slog.Logger
}

// Option configures the Bootstrap.
type Option func(*Bootstrap)

// WithLogger sets the logger for hydration diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bootstrap) {
		if log != nil {
			b.log = log
		}
	}
}

// New creates a Bootstrap over the given store and storage scopes.
func New(store *session.Store, scopes kv.Scopes, opts ...Option) *Bootstrap {
	b := &Bootstrap{
		store:  store,
		scopes: scopes,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hydrate is the pre-render pass: it reads the token cookie and, when
// present, the serialized user cookie, applies both to the store, and marks
// it initialized. Repeat calls are no-ops. Hydrate only fails on storage
// errors; malformed values are logged and skipped.
func (b *Bootstrap) Hydrate(ctx context.Context) error {
	snap := session.Snapshot{}

	token, err := b.read(ctx, b.scopes.Persistent, TokenKey)
	if err != nil {
		return err
	}
	snap.Token = token

	if snap.Token != "" {
		raw, err := b.read(ctx, b.scopes.Persistent, UserDataKey)
		if err != nil {
			return err
		}
		if raw != "" {
			snap.User = b.parseUser(raw, "user cookie")
		}
	}

	b.store.Initialize(snap)
	return nil
}

// Activate is the interactive pass. It backfills the user record from the
// durable snapshot when the store has a token but no user yet, then starts
// a non-blocking background refresh; the store applies the session-clearing
// rules to the refresh outcome.
func (b *Bootstrap) Activate(ctx context.Context) error {
	if b.store.Token() != "" && b.store.User() == nil {
		raw, err := b.read(ctx, b.scopes.Durable, DurableUserKey)
		if err != nil {
			return err
		}
		if raw != "" {
			if user := b.parseUser(raw, "durable snapshot"); user != nil {
				if err := b.store.SetUser(user); err != nil {
					b.log.Warn("could not apply durable snapshot", logger.Error(err))
				}
			}
		}
	}

	if b.store.Token() != "" && b.store.User() != nil {
		return b.store.FetchUser(ctx, session.FetchOptions{
			Force:      true,
			Background: true,
			Silent:     true,
		})
	}
	return nil
}

// Run executes both passes in order, for callers that render and interact
// in one process.
func (b *Bootstrap) Run(ctx context.Context) error {
	if err := b.Hydrate(ctx); err != nil {
		return err
	}
	return b.Activate(ctx)
}

// read treats a nil scope and a missing key as empty, and a corrupted value
// (for signed cookie scopes, a bad signature) as empty with a warning.
func (b *Bootstrap) read(ctx context.Context, scope kv.Scope, key string) (string, error) {
	if scope == nil {
		return "", nil
	}

	v, err := scope.Get(ctx, key)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, kv.ErrNotFound):
		return "", nil
	case errors.Is(err, kv.ErrInvalidSignature):
		b.log.Warn("discarding tampered persisted value", slog.String("key", key))
		return "", nil
	default:
		return "", err
	}
}

// parseUser decodes a serialized user, returning nil on malformed input.
func (b *Bootstrap) parseUser(raw, source string) *session.User {
	var user session.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		b.log.Warn("failed to parse persisted user, ignoring",
			slog.String("source", source), logger.Error(err))
		return nil
	}
	return &user
}
