package flow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/agorahq/authkit/core/api"
	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
	"github.com/agorahq/authkit/pkg/logger"
	"github.com/agorahq/authkit/pkg/urlsafe"
)

// ProviderAPI is the backend surface the engine needs; api.Client
// implements it.
type ProviderAPI interface {
	ProviderStatus(ctx context.Context, provider string) (api.ProviderStatus, error)
	InitiateLogin(ctx context.Context, provider, instance string) (api.Initiation, error)
	ExchangeCode(ctx context.Context, provider, code, state string) (session.Credentials, error)
	ExchangeWidget(ctx context.Context, provider string, payload any) (session.Credentials, error)
	ExchangeTicket(ctx context.Context, provider, ticket string) (session.Credentials, error)
}

// StartParams are the inputs to a login initiation.
type StartParams struct {
	// Instance is the user-supplied host for instance-based providers. It is
	// normalized before every use so one instance maps to one record.
	Instance string
	// ReturnURL is the optional deep-link to resume after success. It is
	// carried through the handshake verbatim and gated at navigation time.
	ReturnURL string
}

// Result is the outcome of a completion step.
type Result struct {
	Success   bool
	ReturnURL string
}

// Flow runs the login state machine for one provider.
type Flow struct {
	desc       Descriptor
	api        ProviderAPI
	sessions   *session.Store
	handshakes handshakes
	log        *slog.Logger
	metrics    *Metrics

	// redirectBase prefixes RedirectPath for backend-driven providers.
	redirectBase string

	mu          sync.Mutex
	attempt     uint64
	loading     bool
	err         error
	enabled     *bool
	botUsername string
}

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the flow's logger.
func WithLogger(log *slog.Logger) Option {
	return func(f *Flow) {
		if log != nil {
			f.log = log
		}
	}
}

// WithMetrics attaches attempt counters. Nil metrics are a no-op.
func WithMetrics(m *Metrics) Option {
	return func(f *Flow) {
		f.metrics = m
	}
}

// WithRedirectBase sets the backend origin prefixed to RedirectPath for
// backend-driven providers.
func WithRedirectBase(base string) Option {
	return func(f *Flow) {
		f.redirectBase = strings.TrimSuffix(base, "/")
	}
}

// New creates the flow for one provider. handshakeScope is the
// session-scoped ephemeral storage holding in-flight records.
// Misassembled descriptors panic: they are programmer errors, not runtime
// conditions.
func New(desc Descriptor, backend ProviderAPI, sessions *session.Store, handshakeScope kv.Scope, opts ...Option) *Flow {
	if err := desc.validate(); err != nil {
		panic(err)
	}

	f := &Flow{
		desc:       desc,
		api:        backend,
		sessions:   sessions,
		handshakes: handshakes{scope: handshakeScope},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the provider identifier.
func (f *Flow) Name() string { return f.desc.Name }

// Loading reports whether an attempt is in flight.
func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Err returns the most recent attempt's terminal error, nil after success.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Enabled returns the cached availability answer; unknown before the first
// CheckStatus.
func (f *Flow) Enabled() (enabled, known bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enabled == nil {
		return false, false
	}
	return *f.enabled, true
}

// BotUsername returns the widget bot identity cached by CheckStatus.
func (f *Flow) BotUsername() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.botUsername
}

// CheckStatus asks the backend whether this provider is enabled. Any
// failure is treated as "disabled"; availability checks fail closed and
// are never surfaced as user-facing errors.
func (f *Flow) CheckStatus(ctx context.Context) bool {
	status, err := f.api.ProviderStatus(ctx, f.desc.Name)
	if err != nil {
		f.log.Debug("provider status check failed, treating as disabled",
			logger.Provider(f.desc.Name), logger.Error(err))
		f.setAvailability(false, "")
		f.metrics.observe(f.desc.Name, stageStatus, outcomeUnavailable)
		return false
	}

	f.setAvailability(status.Enabled, status.BotUsername)
	f.metrics.observe(f.desc.Name, stageStatus, outcomeOK)
	return status.Enabled
}

func (f *Flow) setAvailability(enabled bool, bot string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = &enabled
	f.botUsername = bot
}

// StartLogin initiates the authorization handshake and returns the URL to
// navigate the user to. The handshake record is fully persisted before the
// URL is returned, because the caller's context may be unloaded by the
// navigation.
func (f *Flow) StartLogin(ctx context.Context, p StartParams) (string, error) {
	stamp := f.begin()
	url, err := f.startLogin(ctx, p)
	f.finish(stamp, err)

	if err != nil {
		f.metrics.observe(f.desc.Name, stageStart, outcomeError)
		return "", err
	}
	f.metrics.observe(f.desc.Name, stageStart, outcomeOK)
	return url, nil
}

func (f *Flow) startLogin(ctx context.Context, p StartParams) (string, error) {
	if f.desc.WidgetDriven {
		return "", ErrWidgetDriven
	}

	if f.desc.BackendRedirect {
		// The backend owns the whole handshake; only the return URL crosses
		// the round trip on this side.
		if err := f.handshakes.save(ctx, f.desc.Name, Record{ReturnURL: p.ReturnURL}); err != nil {
			return "", fmt.Errorf("flow: persist handshake: %w", err)
		}
		return f.redirectBase + f.desc.RedirectPath, nil
	}

	instance := ""
	if f.desc.RequiresInstance {
		instance = urlsafe.NormalizeInstance(p.Instance)
		if instance == "" {
			return "", ErrInstanceRequired
		}
	}

	init, err := f.api.InitiateLogin(ctx, f.desc.Name, instance)
	if err != nil {
		if f.desc.MapInitiateError != nil {
			err = f.desc.MapInitiateError(err)
		}
		return "", err
	}

	rec := Record{State: init.State, Instance: instance, ReturnURL: p.ReturnURL}
	if err := f.handshakes.save(ctx, f.desc.Name, rec); err != nil {
		return "", fmt.Errorf("flow: persist handshake: %w", err)
	}

	return init.URL, nil
}

// CompleteLogin finishes the handshake with the provider callback's code
// and state. The stored state is compared byte-for-byte; a mismatch is a
// terminal CSRF-suspected failure and the token exchange is not attempted.
// The handshake record is cleared on every terminal outcome.
func (f *Flow) CompleteLogin(ctx context.Context, code, state string) (Result, error) {
	stamp := f.begin()
	res, err := f.completeLogin(ctx, code, state)
	f.finish(stamp, err)

	if err != nil {
		f.metrics.observe(f.desc.Name, stageComplete, outcomeError)
		return res, err
	}
	f.metrics.observe(f.desc.Name, stageComplete, outcomeOK)
	return res, nil
}

func (f *Flow) completeLogin(ctx context.Context, code, state string) (Result, error) {
	rec, err := f.handshakes.load(ctx, f.desc.Name)
	if err != nil {
		return Result{}, fmt.Errorf("flow: load handshake: %w", err)
	}
	defer func() {
		if err := f.handshakes.clear(ctx, f.desc.Name); err != nil {
			f.log.Warn("failed to clear handshake record",
				logger.Provider(f.desc.Name), logger.Error(err))
		}
	}()

	if f.desc.RequiresState {
		if rec.State == "" || rec.State != state {
			return Result{}, ErrStateMismatch
		}
	}

	creds, err := f.api.ExchangeCode(ctx, f.desc.Name, code, state)
	if err != nil {
		return Result{}, err
	}
	if err := f.sessions.ApplyCredentials(creds); err != nil {
		return Result{}, err
	}

	return Result{Success: true, ReturnURL: rec.ReturnURL}, nil
}

// CompleteTicketLogin exchanges a one-time ticket for a session
// (backend-driven providers). Only the return URL survives the round trip.
func (f *Flow) CompleteTicketLogin(ctx context.Context, ticket string) (Result, error) {
	stamp := f.begin()
	res, err := f.completeTicketLogin(ctx, ticket)
	f.finish(stamp, err)

	if err != nil {
		f.metrics.observe(f.desc.Name, stageComplete, outcomeError)
		return res, err
	}
	f.metrics.observe(f.desc.Name, stageComplete, outcomeOK)
	return res, nil
}

func (f *Flow) completeTicketLogin(ctx context.Context, ticket string) (Result, error) {
	rec, err := f.handshakes.load(ctx, f.desc.Name)
	if err != nil {
		return Result{}, fmt.Errorf("flow: load handshake: %w", err)
	}
	defer func() {
		if err := f.handshakes.clear(ctx, f.desc.Name); err != nil {
			f.log.Warn("failed to clear handshake record",
				logger.Provider(f.desc.Name), logger.Error(err))
		}
	}()

	creds, err := f.api.ExchangeTicket(ctx, f.desc.Name, ticket)
	if err != nil {
		return Result{}, err
	}
	if err := f.sessions.ApplyCredentials(creds); err != nil {
		return Result{}, err
	}

	return Result{Success: true, ReturnURL: rec.ReturnURL}, nil
}

// RedirectToProvider initiates the handshake and, if an authorization URL
// came back, navigates the client to it.
func (f *Flow) RedirectToProvider(w http.ResponseWriter, r *http.Request, p StartParams) error {
	url, err := f.StartLogin(r.Context(), p)
	if err != nil {
		return err
	}
	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
	}
	return nil
}

// begin stamps a fresh attempt and resets the observable state.
func (f *Flow) begin() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
	f.loading = true
	f.err = nil
	return f.attempt
}

// finish records the attempt's outcome unless a newer attempt has started,
// in which case the stale result is dropped.
func (f *Flow) finish(stamp uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stamp != f.attempt {
		return
	}
	f.loading = false
	f.err = err
}
