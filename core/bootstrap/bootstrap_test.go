package bootstrap_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/agorahq/authkit/core/bootstrap"
	"github.com/agorahq/authkit/core/kv"
	"github.com/agorahq/authkit/core/session"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) CurrentUser(ctx context.Context) (*session.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.User), args.Error(1)
}

func (m *mockAPI) Login(ctx context.Context, email, password string) (session.Credentials, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(session.Credentials), args.Error(1)
}

func (m *mockAPI) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type invalidSession struct{}

func (invalidSession) Error() string               { return "unauthenticated" }
func (invalidSession) DefinitiveAuthFailure() bool { return true }

func newScopes() kv.Scopes {
	return kv.Scopes{
		Persistent: kv.NewMemory(),
		Session:    kv.NewMemory(),
		Durable:    kv.NewMemory(),
	}
}

func TestBootstrap_Hydrate(t *testing.T) {
	t.Parallel()

	t.Run("token cookie and no user cookie", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))

		store := session.NewStore(&mockAPI{})
		boot := bootstrap.New(store, scopes)

		require.NoError(t, boot.Hydrate(ctx))
		assert.True(t, store.Initialized())
		assert.Equal(t, "t1", store.Token())
		assert.Nil(t, store.User())
	})

	t.Run("token and user cookies", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.UserDataKey, `{"id":7,"username":"ada"}`))

		store := session.NewStore(&mockAPI{})
		require.NoError(t, bootstrap.New(store, scopes).Hydrate(ctx))

		require.NotNil(t, store.User())
		assert.Equal(t, "ada", store.User().Username)
	})

	t.Run("malformed user cookie is swallowed", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.UserDataKey, `{not json`))

		store := session.NewStore(&mockAPI{})
		require.NoError(t, bootstrap.New(store, scopes).Hydrate(ctx))

		assert.True(t, store.Initialized())
		assert.Equal(t, "t1", store.Token())
		assert.Nil(t, store.User())
	})

	t.Run("no token yields initialized guest", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore(&mockAPI{})
		require.NoError(t, bootstrap.New(store, newScopes()).Hydrate(context.Background()))

		assert.True(t, store.Initialized())
		assert.True(t, store.IsGuest())
	})

	t.Run("repeat hydrate is a no-op", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))

		store := session.NewStore(&mockAPI{})
		boot := bootstrap.New(store, scopes)
		require.NoError(t, boot.Hydrate(ctx))

		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t2"))
		require.NoError(t, boot.Hydrate(ctx))
		assert.Equal(t, "t1", store.Token())
	})

	t.Run("nil scopes behave as empty storage", func(t *testing.T) {
		t.Parallel()

		store := session.NewStore(&mockAPI{})
		require.NoError(t, bootstrap.New(store, kv.Scopes{}).Hydrate(context.Background()))
		assert.True(t, store.Initialized())
	})
}

func TestBootstrap_Activate(t *testing.T) {
	t.Parallel()

	t.Run("backfills user from durable snapshot", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		api := &mockAPI{}
		api.On("CurrentUser", mock.Anything).Return(&session.User{ID: 7, Username: "ada"}, nil).Maybe()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Durable.Set(ctx, bootstrap.DurableUserKey, `{"id":7,"username":"ada"}`))

		store := session.NewStore(api)
		boot := bootstrap.New(store, scopes)
		require.NoError(t, boot.Hydrate(ctx))
		require.NoError(t, boot.Activate(ctx))

		require.NotNil(t, store.User())
		assert.Equal(t, "ada", store.User().Username)
	})

	t.Run("cookie user wins over durable snapshot", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		api := &mockAPI{}
		api.On("CurrentUser", mock.Anything).Return(&session.User{ID: 7, Username: "cookie"}, nil).Maybe()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.UserDataKey, `{"id":7,"username":"cookie"}`))
		require.NoError(t, scopes.Durable.Set(ctx, bootstrap.DurableUserKey, `{"id":7,"username":"durable"}`))

		store := session.NewStore(api)
		boot := bootstrap.New(store, scopes)
		require.NoError(t, boot.Run(ctx))

		assert.Equal(t, "cookie", store.User().Username)
	})

	t.Run("background refresh clears a definitively invalid session", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		api := &mockAPI{}
		api.On("CurrentUser", mock.Anything).Return(nil, invalidSession{}).Once()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Durable.Set(ctx, bootstrap.DurableUserKey, `{"id":7,"username":"ada"}`))

		store := session.NewStore(api, session.WithDurable(scopes.Durable))
		boot := bootstrap.New(store, scopes)
		require.NoError(t, boot.Run(ctx))

		assert.Eventually(t, func() bool { return store.IsGuest() }, 2*time.Second, 10*time.Millisecond)

		_, err := scopes.Durable.Get(ctx, bootstrap.DurableUserKey)
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("background refresh failure preserves session", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		done := make(chan struct{})
		api := &mockAPI{}
		api.On("CurrentUser", mock.Anything).
			Run(func(mock.Arguments) { defer close(done) }).
			Return(nil, context.DeadlineExceeded).Once()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Durable.Set(ctx, bootstrap.DurableUserKey, `{"id":7,"username":"ada"}`))

		store := session.NewStore(api)
		require.NoError(t, bootstrap.New(store, scopes).Run(ctx))

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("background refresh never ran")
		}
		assert.Equal(t, "t1", store.Token())
		assert.NotNil(t, store.User())
	})

	t.Run("no refresh without a user record", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		api := &mockAPI{}

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))

		store := session.NewStore(api)
		require.NoError(t, bootstrap.New(store, scopes).Run(ctx))

		api.AssertNotCalled(t, "CurrentUser", mock.Anything)
	})

	t.Run("malformed durable snapshot is ignored", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		scopes := newScopes()
		require.NoError(t, scopes.Persistent.Set(ctx, bootstrap.TokenKey, "t1"))
		require.NoError(t, scopes.Durable.Set(ctx, bootstrap.DurableUserKey, `garbage`))

		store := session.NewStore(&mockAPI{})
		require.NoError(t, bootstrap.New(store, scopes).Run(ctx))

		assert.Equal(t, "t1", store.Token())
		assert.Nil(t, store.User())
	})
}
