package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agorahq/authkit/core/session"
	"github.com/agorahq/authkit/pkg/logger"
	"github.com/agorahq/authkit/pkg/urlsafe"
)

// TokenSource supplies the current bearer token, empty for guests.
// session.(*Store).Token satisfies it.
type TokenSource func() string

// ProviderStatus is the availability answer for one login provider.
type ProviderStatus struct {
	Enabled bool `json:"enabled"`
	// BotUsername is set for widget-driven providers (Telegram).
	BotUsername string `json:"bot_username,omitempty"`
}

// Initiation is the backend's answer to a login-initiation request.
type Initiation struct {
	State string `json:"state"`
	URL   string `json:"url"`
}

// Client talks to the platform backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
	log        *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenSource attaches the bearer-token supplier.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.token = src
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithClientLogger sets the logger used for request diagnostics.
func WithClientLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a backend client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderStatus checks whether the named provider integration is enabled.
func (c *Client) ProviderStatus(ctx context.Context, provider string) (ProviderStatus, error) {
	var out ProviderStatus
	err := c.do(ctx, http.MethodGet, "/auth/"+provider+"/status", nil, &out)
	return out, err
}

// InitiateLogin asks the backend for a state nonce and an authorization URL.
// instance is required for multi-instance providers and must already be
// normalized; it is normalized again here so the wire value can never differ
// from the stored one.
func (c *Client) InitiateLogin(ctx context.Context, provider, instance string) (Initiation, error) {
	path := "/auth/" + provider + "/redirect"
	if instance != "" {
		path += "?instance=" + url.QueryEscape(urlsafe.NormalizeInstance(instance))
	}

	var out Initiation
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ExchangeCode trades an authorization code and state for a session.
func (c *Client) ExchangeCode(ctx context.Context, provider, code, state string) (session.Credentials, error) {
	body := map[string]string{"code": code, "state": state}

	var out session.Credentials
	err := c.do(ctx, http.MethodPost, "/auth/"+provider+"/callback", body, &out)
	return out, err
}

// ExchangeWidget submits a signed widget payload (Telegram) for a session.
// The payload's provider-side signature is the trust anchor; the backend
// verifies it.
func (c *Client) ExchangeWidget(ctx context.Context, provider string, payload any) (session.Credentials, error) {
	var out session.Credentials
	err := c.do(ctx, http.MethodPost, "/auth/"+provider+"/callback", payload, &out)
	return out, err
}

// ExchangeTicket trades a one-time exchange code for a session (Bluesky).
func (c *Client) ExchangeTicket(ctx context.Context, provider, ticket string) (session.Credentials, error) {
	body := map[string]string{"exchange_code": ticket}

	var out session.Credentials
	err := c.do(ctx, http.MethodPost, "/auth/"+provider+"/exchange", body, &out)
	return out, err
}

// CurrentUser fetches the identity record for the current token.
func (c *Client) CurrentUser(ctx context.Context) (*session.User, error) {
	var out session.User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges email/password credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (session.Credentials, error) {
	body := map[string]string{"email": email, "password": password}

	var out session.Credentials
	err := c.do(ctx, http.MethodPost, "/login", body, &out)
	return out, err
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// errorBody is the backend's error payload shape.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecodeResponse, method, path, err)
	}
	return nil
}

// decodeError turns a non-2xx response into *Error. HasBody is set only
// when the body parses as JSON: a bare status from an intermediary is not
// proof of anything.
func (c *Client) decodeError(method, path string, resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(raw) > 0 {
		var payload errorBody
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.HasBody = true
			apiErr.Code = payload.ErrorCode
			apiErr.Message = payload.Message
		}
	}

	c.log.Debug("backend request failed",
		slog.String("method", method),
		slog.String("path", path),
		logger.Status(resp.StatusCode),
	)
	return apiErr
}
