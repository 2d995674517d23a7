package flow

import "errors"

var (
	// ErrProviderDisabled is returned when a login is attempted against a
	// provider whose integration is off or whose availability is unknown.
	ErrProviderDisabled = errors.New("flow: provider login is not available")

	// ErrStateMismatch is the terminal CSRF-suspected failure: the callback
	// state does not match the stored handshake record. The token exchange
	// is never attempted after it.
	ErrStateMismatch = errors.New("flow: state mismatch, possible CSRF attack")

	// ErrInstanceRequired is returned when an instance-based provider is
	// started without an instance host.
	ErrInstanceRequired = errors.New("flow: instance is required for this provider")

	// ErrInstanceForbidden means the target instance is not allowed by the
	// backend's instance policy.
	ErrInstanceForbidden = errors.New("flow: instance is not allowed")

	// ErrConnectionFailed means the backend could not reach the target
	// instance.
	ErrConnectionFailed = errors.New("flow: could not connect to instance")

	// ErrWidgetUnavailable is returned when the login widget cannot be set
	// up (provider disabled or bot identity unknown). Distinct from an
	// authentication failure.
	ErrWidgetUnavailable = errors.New("flow: login widget is not available")

	// ErrNotWidgetDriven and ErrWidgetDriven guard against calling the wrong
	// entry point for a provider's configuration.
	ErrNotWidgetDriven = errors.New("flow: provider is not widget-driven")
	ErrWidgetDriven    = errors.New("flow: widget-driven provider has no redirect initiation")
)
