package flow

import (
	"errors"
	"fmt"

	"github.com/agorahq/authkit/core/api"
)

// Descriptor is the capability profile of one login provider. The engine
// reads it to decide which handshake steps apply.
type Descriptor struct {
	// Name is the provider identifier used in backend paths and storage keys.
	Name string

	// RequiresInstance marks multi-instance (federated) providers whose
	// user-supplied host is normalized and carried through the handshake.
	RequiresInstance bool

	// RequiresState marks providers whose callback must present the state
	// nonce issued at initiation.
	RequiresState bool

	// WidgetDriven marks providers with no redirect round trip; a signed
	// widget payload is the trust anchor instead of a state check.
	WidgetDriven bool

	// BackendRedirect marks providers whose entire authorization handshake
	// lives on the backend; the client only carries the return URL and
	// exchanges a one-time ticket on return.
	BackendRedirect bool

	// RedirectPath is the backend path to send the user to for
	// BackendRedirect providers.
	RedirectPath string

	// MapInitiateError classifies initiation failures into the provider's
	// error taxonomy. Nil keeps errors untouched.
	MapInitiateError func(error) error
}

// Telegram is the widget-driven provider: a third-party widget collects a
// signed payload and no state handshake exists on this side.
func Telegram() Descriptor {
	return Descriptor{
		Name:         "telegram",
		WidgetDriven: true,
	}
}

// Mastodon is an instance-based provider with a full state handshake.
func Mastodon() Descriptor {
	return Descriptor{
		Name:             "mastodon",
		RequiresInstance: true,
		RequiresState:    true,
	}
}

// Mbin is an instance-based provider that additionally distinguishes
// "instance forbidden" and "connection failed" initiation outcomes.
func Mbin() Descriptor {
	return Descriptor{
		Name:             "mbin",
		RequiresInstance: true,
		RequiresState:    true,
		MapInitiateError: mapMbinInitiateError,
	}
}

// Reddit is a single-instance provider with a state handshake.
func Reddit() Descriptor {
	return Descriptor{
		Name:          "reddit",
		RequiresState: true,
	}
}

// Bluesky delegates the whole authorization handshake to the backend; the
// client only persists the return URL and exchanges a one-time ticket.
func Bluesky() Descriptor {
	return Descriptor{
		Name:            "bluesky",
		BackendRedirect: true,
		RedirectPath:    "/auth/bluesky/redirect",
	}
}

// mapMbinInitiateError lifts the backend's mbin error codes into the
// package sentinels so the UI can react differently to each.
func mapMbinInitiateError(err error) error {
	switch api.ErrorCode(err) {
	case api.CodeInstanceForbidden:
		return errors.Join(ErrInstanceForbidden, err)
	case api.CodeConnectionFailed:
		return errors.Join(ErrConnectionFailed, err)
	}
	return err
}

// Defaults returns the descriptors of every built-in provider.
func Defaults() []Descriptor {
	return []Descriptor{Telegram(), Mastodon(), Mbin(), Reddit(), Bluesky()}
}

// validate catches misassembled descriptors early.
func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("flow: descriptor has no name")
	}
	if d.WidgetDriven && (d.RequiresState || d.RequiresInstance || d.BackendRedirect) {
		return fmt.Errorf("flow: widget-driven descriptor %q cannot require a handshake", d.Name)
	}
	if d.BackendRedirect && d.RedirectPath == "" {
		return fmt.Errorf("flow: backend-redirect descriptor %q has no redirect path", d.Name)
	}
	return nil
}
