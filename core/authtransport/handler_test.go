package authtransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agorahq/authkit/core/api"
	"github.com/agorahq/authkit/core/authtransport"
	"github.com/agorahq/authkit/core/flow"
	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
)

type backendMock struct {
	mock.Mock
}

func (m *backendMock) ProviderStatus(ctx context.Context, provider string) (api.ProviderStatus, error) {
	args := m.Called(ctx, provider)
	return args.Get(0).(api.ProviderStatus), args.Error(1)
}

func (m *backendMock) InitiateLogin(ctx context.Context, provider, instance string) (api.Initiation, error) {
	args := m.Called(ctx, provider, instance)
	return args.Get(0).(api.Initiation), args.Error(1)
}

func (m *backendMock) ExchangeCode(ctx context.Context, provider, code, state string) (session.Credentials, error) {
	args := m.Called(ctx, provider, code, state)
	return args.Get(0).(session.Credentials), args.Error(1)
}

func (m *backendMock) ExchangeWidget(ctx context.Context, provider string, payload any) (session.Credentials, error) {
	args := m.Called(ctx, provider, payload)
	return args.Get(0).(session.Credentials), args.Error(1)
}

func (m *backendMock) ExchangeTicket(ctx context.Context, provider, ticket string) (session.Credentials, error) {
	args := m.Called(ctx, provider, ticket)
	return args.Get(0).(session.Credentials), args.Error(1)
}

type sessionAPIMock struct {
	mock.Mock
}

func (m *sessionAPIMock) CurrentUser(ctx context.Context) (*session.User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.(*session.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *sessionAPIMock) Login(ctx context.Context, email, password string) (session.Credentials, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(session.Credentials), args.Error(1)
}

func (m *sessionAPIMock) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func creds() session.Credentials {
	return session.Credentials{
		Token: "t1",
		User:  &session.User{ID: 7, Username: "ada"},
	}
}

type fixture struct {
	handler  http.Handler
	backend  *backendMock
	sessions *session.Store
	scope    *kv.Memory
}

func newFixture(t *testing.T, opts ...authtransport.Option) *fixture {
	t.Helper()

	backend := &backendMock{}
	sessions := session.NewStore(&sessionAPIMock{})
	scope := kv.NewMemory()
	reg := flow.NewRegistry(flow.Defaults(), backend, sessions, scope)
	h := authtransport.NewHandler(authtransport.StaticFlows(reg), sessions, opts...)

	return &fixture{
		handler:  h.Routes(),
		backend:  backend,
		sessions: sessions,
		scope:    scope,
	}
}

func TestHandler_ProviderStatus(t *testing.T) {
	t.Parallel()

	t.Run("reports availability and bot identity", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		fx.backend.On("ProviderStatus", mock.Anything, "telegram").
			Return(api.ProviderStatus{Enabled: true, BotUsername: "agora_bot"}, nil).Once()

		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/telegram/status", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"enabled":true,"bot_username":"agora_bot"}`, w.Body.String())
	})

	t.Run("unknown provider is a 404", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/github/status", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_StartLogin(t *testing.T) {
	t.Parallel()

	t.Run("returns the authorization url", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		fx.backend.On("InitiateLogin", mock.Anything, "mastodon", "mastodon.social").
			Return(api.Initiation{State: "s1", URL: "https://mastodon.social/authorize"}, nil).Once()

		body := strings.NewReader(`{"instance":"HTTPS://Mastodon.Social/","return_url":"/posts/42"}`)
		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/mastodon/start", body))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"url":"https://mastodon.social/authorize"}`, w.Body.String())
	})

	t.Run("missing instance is unprocessable", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/mastodon/start", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "instance")
	})

	t.Run("forbidden instance surfaces the backend code", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		fx.backend.On("InitiateLogin", mock.Anything, "mbin", "evil.example").
			Return(api.Initiation{}, &api.Error{
				Status: 422, Code: api.CodeInstanceForbidden,
				Message: "instance not allowed", HasBody: true,
			}).Once()

		body := strings.NewReader(`{"instance":"evil.example"}`)
		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/mbin/start", body))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"code":"instance_forbidden","message":"instance not allowed"}`, w.Body.String())
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		t.Parallel()

		fx := newFixture(t)
		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/reddit/start", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_CompleteLogin(t *testing.T) {
	t.Parallel()

	t.Run("redirects to the stored return url", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		fx := newFixture(t)
		require.NoError(t, fx.scope.Set(ctx, "reddit_oauth_state", "s1"))
		require.NoError(t, fx.scope.Set(ctx, "reddit_oauth_return_url", "/posts/42"))
		fx.backend.On("ExchangeCode", mock.Anything, "reddit", "code1", "s1").
			Return(creds(), nil).Once()

		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/reddit/callback?code=code1&state=s1", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/posts/42", w.Header().Get("Location"))
		assert.Equal(t, "t1", fx.sessions.Token())
	})

	t.Run("unsafe return url falls back to root", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		fx := newFixture(t)
		require.NoError(t, fx.scope.Set(ctx, "reddit_oauth_state", "s1"))
		require.NoError(t, fx.scope.Set(ctx, "reddit_oauth_return_url", "https://evil.example/phish"))
		fx.backend.On("ExchangeCode", mock.Anything, "reddit", "code1", "s1").
			Return(creds(), nil).Once()

		w := httptest.NewRecorder()
		fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/reddit/callback?code=code1&state=s1", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
	})

	t.Run("state mismatch sets flash and returns to login", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		fx := newFixture(t)
		require.NoError(t, fx.scope.Set(ctx, "reddit_oauth_state", "abc"))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/auth/reddit/callback?code=code1&state=xyz", nil)
		fx.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusFound, w.Code)

		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/auth/login", loc.Path)
		assert.Equal(t, r.URL.RequestURI(), loc.Query().Get("returnUrl"))

		cookies := w.Result().Cookies()
		byName := map[string]string{}
		for _, c := range cookies {
			byName[c.Name] = c.Value
		}
		assert.Equal(t, "error", byName["flash_type"])
		assert.NotEmpty(t, byName["flash_message"])

		assert.True(t, fx.sessions.IsGuest())
		fx.backend.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_WidgetLogin(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.backend.On("ExchangeWidget", mock.Anything, "telegram", mock.Anything).
		Return(creds(), nil).Once()

	body := strings.NewReader(`{"id":99,"first_name":"Ada","auth_date":1700000000,"hash":"sig"}`)
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/telegram/widget", body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"return_url":"/"}`, w.Body.String())
	assert.True(t, fx.sessions.IsAuthenticated())
}

func TestHandler_TicketExchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fx := newFixture(t)
	require.NoError(t, fx.scope.Set(ctx, "bluesky_oauth_return_url", "/feed"))
	fx.backend.On("ExchangeTicket", mock.Anything, "bluesky", "ticket1").
		Return(creds(), nil).Once()

	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/bluesky/exchange?code=ticket1", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/feed", w.Header().Get("Location"))
	assert.True(t, fx.sessions.IsAuthenticated())
}

func TestHandler_Logout(t *testing.T) {
	t.Parallel()

	sessionAPI := &sessionAPIMock{}
	sessionAPI.On("Logout", mock.Anything).Return(nil).Once()

	sessions := session.NewStore(sessionAPI)
	sessions.SetToken("t1")

	backend := &backendMock{}
	reg := flow.NewRegistry(flow.Defaults(), backend, sessions, kv.NewMemory())
	h := authtransport.NewHandler(authtransport.StaticFlows(reg), sessions)

	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, sessions.IsGuest())
	sessionAPI.AssertExpectations(t)
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("guest is sent to login with returnUrl", func(t *testing.T) {
		t.Parallel()

		sessions := session.NewStore(&sessionAPIMock{})
		mw := authtransport.RequireAuth(sessions, "/auth/login")

		w := httptest.NewRecorder()
		mw(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts/42?sort=top", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/auth/login", loc.Path)
		assert.Equal(t, "/posts/42?sort=top", loc.Query().Get("returnUrl"))
	})

	t.Run("authenticated requests pass through", func(t *testing.T) {
		t.Parallel()

		sessions := session.NewStore(&sessionAPIMock{})
		sessions.SetToken("t1")
		mw := authtransport.RequireAuth(sessions, "/auth/login")

		w := httptest.NewRecorder()
		mw(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts/42", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCookieFlows(t *testing.T) {
	t.Parallel()

	secrets := []string{"0123456789abcdef0123456789abcdef"}

	backend := &backendMock{}
	backend.On("InitiateLogin", mock.Anything, "mastodon", "mastodon.social").
		Return(api.Initiation{State: "s1", URL: "https://mastodon.social/authorize"}, nil).Once()
	backend.On("ExchangeCode", mock.Anything, "mastodon", "code1", "s1").
		Return(creds(), nil).Once()

	sessions := session.NewStore(&sessionAPIMock{})
	flows := authtransport.CookieFlows(flow.Defaults(), backend, sessions, secrets)
	h := authtransport.NewHandler(flows, sessions).Routes()

	// The handshake record crosses the provider round trip in signed
	// cookies issued by the start request.
	start := httptest.NewRecorder()
	body := strings.NewReader(`{"instance":"mastodon.social","return_url":"/posts/42"}`)
	h.ServeHTTP(start, httptest.NewRequest(http.MethodPost, "/auth/mastodon/start", body))
	require.Equal(t, http.StatusOK, start.Code)

	callback := httptest.NewRequest(http.MethodGet, "/auth/mastodon/callback?code=code1&state=s1", nil)
	for _, c := range start.Result().Cookies() {
		if c.MaxAge >= 0 {
			callback.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, callback)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/posts/42", w.Header().Get("Location"))
	assert.True(t, sessions.IsAuthenticated())
	backend.AssertExpectations(t)
}
