package authtransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agorahq/authkit/core/api"
	"github.com/agorahq/authkit/core/flow"
	"github.com/agorahq/authkit/core/session"
	"github.com/agorahq/authkit/pkg/logger"
	"github.com/agorahq/authkit/pkg/urlsafe"
)

// defaultLoginPath is where callback failures send the user to retry.
const defaultLoginPath = "/auth/login"

// FlowFactory resolves the flow registry for one request. Cookie-backed
// handshake scopes are request-bound, so the registry is rebuilt per
// request; server-side scopes can return a shared registry instead.
type FlowFactory func(w http.ResponseWriter, r *http.Request) (flow.Registry, error)

// StaticFlows adapts an already built registry into a FlowFactory.
func StaticFlows(reg flow.Registry) FlowFactory {
	return func(http.ResponseWriter, *http.Request) (flow.Registry, error) {
		return reg, nil
	}
}

// CookieFlows builds a per-request registry whose handshake records live in
// signed cookies, so an in-flight login survives the provider round trip
// without server-side state.
func CookieFlows(descs []flow.Descriptor, backend flow.ProviderAPI, sessions *session.Store, secrets []string, opts ...flow.Option) FlowFactory {
	return func(w http.ResponseWriter, r *http.Request) (flow.Registry, error) {
		scope, err := kvCookieScope(w, r, secrets)
		if err != nil {
			return nil, err
		}
		return flow.NewRegistry(descs, backend, sessions, scope, opts...), nil
	}
}

// Handler serves the authentication routes.
type Handler struct {
	flows     FlowFactory
	sessions  *session.Store
	loginPath string
	log       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLoginPath overrides the page callback failures redirect to.
func WithLoginPath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.loginPath = path
		}
	}
}

// WithLogger sets the handler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// NewHandler creates the HTTP handler over a flow factory and the session
// store.
func NewHandler(flows FlowFactory, sessions *session.Store, opts ...Option) *Handler {
	h := &Handler{
		flows:     flows,
		sessions:  sessions,
		loginPath: defaultLoginPath,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the authentication endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/auth/{provider}/status", h.providerStatus)
	r.Post("/auth/{provider}/start", h.startLogin)
	r.Get("/auth/{provider}/callback", h.completeLogin)
	r.Post("/auth/telegram/widget", h.widgetLogin)
	r.Get("/auth/bluesky/exchange", h.ticketExchange)
	r.Post("/auth/logout", h.logout)
	return r
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*flow.Flow, bool) {
	reg, err := h.flows(w, r)
	if err != nil {
		h.log.Error("failed to build flow registry", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return nil, false
	}

	name := chi.URLParam(r, "provider")
	f, ok := reg.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "", "unknown provider")
		return nil, false
	}
	return f, true
}

type statusResponse struct {
	Enabled     bool   `json:"enabled"`
	BotUsername string `json:"bot_username,omitempty"`
}

func (h *Handler) providerStatus(w http.ResponseWriter, r *http.Request) {
	f, ok := h.resolve(w, r)
	if !ok {
		return
	}

	enabled := f.CheckStatus(r.Context())
	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:     enabled,
		BotUsername: f.BotUsername(),
	})
}

type startRequest struct {
	Instance  string `json:"instance"`
	ReturnURL string `json:"return_url"`
}

type startResponse struct {
	URL string `json:"url"`
}

func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request) {
	f, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	authURL, err := f.StartLogin(r.Context(), flow.StartParams{
		Instance:  req.Instance,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		h.log.Warn("login initiation failed",
			logger.Provider(f.Name()), logger.Error(err))
		writeError(w, statusFor(err), api.ErrorCode(err), userMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, startResponse{URL: authURL})
}

func (h *Handler) completeLogin(w http.ResponseWriter, r *http.Request) {
	f, ok := h.resolve(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	res, err := f.CompleteLogin(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		h.log.Warn("login callback failed",
			logger.Provider(f.Name()), logger.Error(err))
		h.authError(w, r, err)
		return
	}
	http.Redirect(w, r, safeReturnURL(res.ReturnURL), http.StatusFound)
}

type widgetResponse struct {
	Success   bool   `json:"success"`
	ReturnURL string `json:"return_url,omitempty"`
}

func (h *Handler) widgetLogin(w http.ResponseWriter, r *http.Request) {
	reg, err := h.flows(w, r)
	if err != nil {
		h.log.Error("failed to build flow registry", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	f, ok := reg.Get("telegram")
	if !ok {
		writeError(w, http.StatusNotFound, "", "unknown provider")
		return
	}

	var user flow.WidgetUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	res, err := f.CompleteWidgetLogin(r.Context(), user)
	if err != nil {
		h.log.Warn("widget login failed", logger.Provider(f.Name()), logger.Error(err))
		writeError(w, statusFor(err), api.ErrorCode(err), userMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, widgetResponse{
		Success:   res.Success,
		ReturnURL: safeReturnURL(res.ReturnURL),
	})
}

func (h *Handler) ticketExchange(w http.ResponseWriter, r *http.Request) {
	reg, err := h.flows(w, r)
	if err != nil {
		h.log.Error("failed to build flow registry", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "", "internal error")
		return
	}
	f, ok := reg.Get("bluesky")
	if !ok {
		writeError(w, http.StatusNotFound, "", "unknown provider")
		return
	}

	res, err := f.CompleteTicketLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Warn("ticket exchange failed", logger.Provider(f.Name()), logger.Error(err))
		h.authError(w, r, err)
		return
	}
	http.Redirect(w, r, safeReturnURL(res.ReturnURL), http.StatusFound)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		// The local session is cleared regardless; the backend miss is
		// logged and swallowed.
		h.log.Warn("backend logout failed", logger.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// authError records the failure in flash cookies and sends the user to the
// login page with the current location as returnUrl so the attempt can be
// retried.
func (h *Handler) authError(w http.ResponseWriter, r *http.Request, err error) {
	setFlash(w, userMessage(err), flashTypeError)
	target := h.loginPath + "?returnUrl=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

// safeReturnURL admits only app-internal targets; everything else falls
// back to the site root.
func safeReturnURL(raw string) string {
	if urlsafe.IsSafeRedirectURL(raw) {
		return raw
	}
	return "/"
}

// userMessage prefers the backend's message and falls back to a generic one.
func userMessage(err error) string {
	if msg := api.ErrorMessage(err); msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, flow.ErrStateMismatch):
		return "Authentication failed. Please try again."
	case errors.Is(err, flow.ErrInstanceRequired):
		return "Please enter your instance."
	case errors.Is(err, flow.ErrInstanceForbidden):
		return "This instance is not allowed."
	case errors.Is(err, flow.ErrConnectionFailed):
		return "Could not connect to the instance."
	case errors.Is(err, flow.ErrWidgetUnavailable), errors.Is(err, flow.ErrProviderDisabled):
		return "This login method is currently unavailable."
	}
	return "Authentication failed. Please try again."
}

// statusFor maps flow and backend errors to response status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrInstanceRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrInstanceForbidden):
		return http.StatusForbidden
	case errors.Is(err, flow.ErrConnectionFailed):
		return http.StatusBadGateway
	case errors.Is(err, flow.ErrStateMismatch):
		return http.StatusBadRequest
	case errors.Is(err, flow.ErrWidgetDriven), errors.Is(err, flow.ErrNotWidgetDriven):
		return http.StatusMethodNotAllowed
	case errors.Is(err, flow.ErrWidgetUnavailable), errors.Is(err, flow.ErrProviderDisabled):
		return http.StatusServiceUnavailable
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
