package flow

import (
	"context"
	"fmt"
	"html"
)

// widgetScriptURL is the third-party widget loader.
const widgetScriptURL = "https://telegram.org/js/telegram-widget.js?22"

// WidgetUser is the signed payload the login widget hands back. Its Hash is
// the provider-side signature over the other fields; the backend verifies
// it, making the payload the trust anchor instead of a state nonce.
type WidgetUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// WidgetOptions tune the rendered widget.
type WidgetOptions struct {
	// Size is the widget size ("large", "medium", "small").
	Size string
	// Radius is the corner radius in pixels.
	Radius int
	// CallbackFunc is the page-global function the widget invokes with the
	// signed user payload.
	CallbackFunc string
}

func (o *WidgetOptions) defaults() {
	if o.Size == "" {
		o.Size = "large"
	}
	if o.Radius == 0 {
		o.Radius = 8
	}
	if o.CallbackFunc == "" {
		o.CallbackFunc = "onTelegramAuth"
	}
}

// WidgetScriptTag renders the script tag that mounts the login widget.
// CheckStatus must have found the provider enabled with a known bot
// identity first; otherwise ErrWidgetUnavailable is returned so the caller
// can show a "not available" message distinct from an authentication
// failure.
func (f *Flow) WidgetScriptTag(ctx context.Context, opts WidgetOptions) (string, error) {
	if !f.desc.WidgetDriven {
		return "", ErrNotWidgetDriven
	}

	enabled, known := f.Enabled()
	if !known {
		enabled = f.CheckStatus(ctx)
	}
	bot := f.BotUsername()
	if !enabled || bot == "" {
		return "", ErrWidgetUnavailable
	}

	opts.defaults()
	tag := fmt.Sprintf(
		`<script async src="%s" data-telegram-login="%s" data-size="%s" data-onauth="%s(user)" data-request-access="write" data-radius="%d"></script>`,
		widgetScriptURL,
		html.EscapeString(bot),
		html.EscapeString(opts.Size),
		html.EscapeString(opts.CallbackFunc),
		opts.Radius,
	)
	return tag, nil
}

// CompleteWidgetLogin submits the widget's signed payload for a session.
// There is no state check: the payload signature, verified by the backend,
// is the trust anchor.
func (f *Flow) CompleteWidgetLogin(ctx context.Context, user WidgetUser) (Result, error) {
	if !f.desc.WidgetDriven {
		return Result{}, ErrNotWidgetDriven
	}

	stamp := f.begin()
	res, err := f.completeWidgetLogin(ctx, user)
	f.finish(stamp, err)

	if err != nil {
		f.metrics.observe(f.desc.Name, stageComplete, outcomeError)
		return res, err
	}
	f.metrics.observe(f.desc.Name, stageComplete, outcomeOK)
	return res, nil
}

func (f *Flow) completeWidgetLogin(ctx context.Context, user WidgetUser) (Result, error) {
	creds, err := f.api.ExchangeWidget(ctx, f.desc.Name, user)
	if err != nil {
		return Result{}, err
	}
	if err := f.sessions.ApplyCredentials(creds); err != nil {
		return Result{}, err
	}
	return Result{Success: true}, nil
}
