package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/pkg/logger"
)

// defaultRefreshInterval throttles non-forced identity refreshes.
const defaultRefreshInterval = 5 * time.Minute

// durableUserKey is the durable-scope key the user snapshot is cached under.
// It must stay stable across deploys; the bootstrap package reads it too.
const durableUserKey = "user"

// API is the backend surface the store needs. The api package implements it.
type API interface {
	// CurrentUser fetches the identity record for the current token.
	CurrentUser(ctx context.Context) (*User, error)
	// Login exchanges credentials for a token/user pair.
	Login(ctx context.Context, email, password string) (Credentials, error)
	// Logout invalidates the current token server-side.
	Logout(ctx context.Context) error
}

// FetchOptions controls FetchUser behavior.
type FetchOptions struct {
	// Force bypasses the refresh-interval throttle.
	Force bool
	// Background runs the fetch in a goroutine and returns immediately.
	Background bool
	// Silent swallows transient failures instead of returning them.
	Silent bool
}

// Store owns the session state. All fields are private; reads go through
// accessors and writes through the defined actions.
type Store struct {
	mu          sync.RWMutex
	token       string
	user        *User
	initialized bool
	lastFetch   time.Time

	api             API
	durable         kv.Scope
	log             *slog.Logger
	refreshInterval time.Duration
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDurable attaches the durable scope so the cached user snapshot is
// purged together with the in-memory state on clear.
func WithDurable(scope kv.Scope) StoreOption {
	return func(s *Store) {
		s.durable = scope
	}
}

// WithRefreshInterval sets the minimum age before a non-forced FetchUser
// actually hits the backend.
func WithRefreshInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// NewStore creates an empty store bound to the given backend client.
func NewStore(api API, opts ...StoreOption) *Store {
	s := &Store{
		api:             api,
		log:             slog.Default(),
		refreshInterval: defaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the current bearer token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the current identity record, nil when unknown.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Initialized reports whether bootstrap hydration has completed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// LastFetchTime returns when the identity was last verified against the
// backend, zero if never.
func (s *Store) LastFetchTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch
}

// IsAuthenticated reports whether a token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// IsGuest is the inverse of IsAuthenticated.
func (s *Store) IsGuest() bool {
	return !s.IsAuthenticated()
}

// IsAdmin reports whether the current user carries the admin role.
func (s *Store) IsAdmin() bool {
	u := s.User()
	return u != nil && u.IsAdmin
}

// IsModerator reports whether the current user carries the moderator role.
func (s *Store) IsModerator() bool {
	u := s.User()
	return u != nil && u.IsModerator
}

// Karma returns the current user's karma score, zero for guests.
func (s *Store) Karma() int {
	u := s.User()
	if u == nil {
		return 0
	}
	return u.Karma
}

// SetToken stores the bearer token. It has no effect on the user record.
func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetUser stores the identity record. Setting a non-nil user while no token
// is present violates the token/user invariant and returns ErrNoToken.
func (s *Store) SetUser(user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user != nil && s.token == "" {
		return ErrNoToken
	}
	s.user = user
	return nil
}

// ClearToken clears the token, forces the user to nil, and purges the
// durable snapshot. Idempotent.
func (s *Store) ClearToken() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.lastFetch = time.Time{}
	durable := s.durable
	s.mu.Unlock()

	if durable != nil {
		if err := durable.Delete(context.Background(), durableUserKey); err != nil {
			s.log.Warn("failed to purge durable user snapshot", logger.Error(err))
		}
	}
}

// Initialize applies a persisted snapshot and marks the store initialized.
// Only the first call hydrates; repeat calls are no-ops, so both render
// passes can call it safely.
func (s *Store) Initialize(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	if snap.Token != "" {
		s.token = snap.Token
		if snap.User != nil {
			s.user = snap.User
		}
	}
	s.initialized = true
}

// ApplyCredentials stores a freshly issued token/user pair and stamps the
// fetch time. Login flows call this on successful exchange.
func (s *Store) ApplyCredentials(creds Credentials) error {
	if creds.Token == "" {
		return ErrNoToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = creds.Token
	s.user = creds.User
	s.lastFetch = time.Now()
	return nil
}

// FetchUser refreshes the identity record from the backend.
//
// A definitive authorization failure (401/403/404 with a valid body) clears
// the session. Every other failure preserves it: transient errors must not
// log users out. With Background set the refresh runs in a goroutine
// detached from the caller's cancellation and FetchUser returns nil
// immediately; with Silent set transient failures are logged instead of
// returned.
func (s *Store) FetchUser(ctx context.Context, opts FetchOptions) error {
	s.mu.RLock()
	token := s.token
	last := s.lastFetch
	s.mu.RUnlock()

	if token == "" {
		return ErrNoToken
	}
	if !opts.Force && !last.IsZero() && time.Since(last) < s.refreshInterval {
		return nil
	}

	if opts.Background {
		go func() {
			_ = s.fetch(context.WithoutCancel(ctx), opts)
		}()
		return nil
	}
	return s.fetch(ctx, opts)
}

func (s *Store) fetch(ctx context.Context, opts FetchOptions) error {
	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		if isDefinitive(err) {
			s.log.Warn("session invalid, clearing token", logger.Error(err))
			s.ClearToken()
			if opts.Silent {
				return nil
			}
			return errors.Join(ErrSessionInvalid, err)
		}

		s.log.Warn("user refresh failed, keeping session", logger.Error(err))
		if opts.Silent {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.user = user
	s.lastFetch = time.Now()
	s.mu.Unlock()
	return nil
}

// Login authenticates with email/password and applies the issued
// credentials.
func (s *Store) Login(ctx context.Context, email, password string) error {
	creds, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.ApplyCredentials(creds)
}

// Logout invalidates the session server-side and clears local state. The
// local session is cleared even when the backend call fails.
func (s *Store) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.ClearToken()
	if err != nil {
		s.log.Warn("backend logout failed", logger.Error(err))
	}
	return err
}
