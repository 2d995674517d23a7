package flow

import (
	"context"
	"errors"

	"github.com/agorahq/authkit/core/kv"
)

// Storage key suffixes. Stable across deploys so in-flight logins survive a
// release.
const (
	stateKeySuffix     = "_oauth_state"
	instanceKeySuffix  = "_oauth_instance"
	returnURLKeySuffix = "_oauth_return_url"
)

// Record is one in-flight authorization attempt: the anti-CSRF state nonce,
// the normalized instance for federated providers, and the optional
// deep-link to resume after success.
type Record struct {
	State     string
	Instance  string
	ReturnURL string
}

// handshakes persists Records in the session-scoped ephemeral storage,
// one record per provider.
type handshakes struct {
	scope kv.Scope
}

// save writes the full record. An empty ReturnURL deletes any stale one so
// a later attempt can't resume an older navigation target.
func (h handshakes) save(ctx context.Context, provider string, rec Record) error {
	if rec.State != "" {
		if err := h.scope.Set(ctx, provider+stateKeySuffix, rec.State); err != nil {
			return err
		}
	}
	if rec.Instance != "" {
		if err := h.scope.Set(ctx, provider+instanceKeySuffix, rec.Instance); err != nil {
			return err
		}
	}
	if rec.ReturnURL != "" {
		return h.scope.Set(ctx, provider+returnURLKeySuffix, rec.ReturnURL)
	}
	return h.scope.Delete(ctx, provider+returnURLKeySuffix)
}

// load reads whatever parts of the record exist; absent or tampered keys
// yield zero fields rather than errors, so a forged record degrades into a
// state mismatch.
func (h handshakes) load(ctx context.Context, provider string) (Record, error) {
	var rec Record

	for _, part := range []struct {
		key  string
		dest *string
	}{
		{provider + stateKeySuffix, &rec.State},
		{provider + instanceKeySuffix, &rec.Instance},
		{provider + returnURLKeySuffix, &rec.ReturnURL},
	} {
		v, err := h.scope.Get(ctx, part.key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) || errors.Is(err, kv.ErrInvalidSignature) {
				continue
			}
			return Record{}, err
		}
		*part.dest = v
	}
	return rec, nil
}

// clear removes every part of the record. Called on every terminal outcome
// so a surviving record always means an attempt is outstanding.
func (h handshakes) clear(ctx context.Context, provider string) error {
	var errs []error
	for _, suffix := range []string{stateKeySuffix, instanceKeySuffix, returnURLKeySuffix} {
		if err := h.scope.Delete(ctx, provider+suffix); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
