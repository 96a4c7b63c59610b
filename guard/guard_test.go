package guard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/guard"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/jrsteele09/reconfile-dashboard/token/mediumfake"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type testFixture struct {
	medium *mediumfake.FakeMedium
	store  *token.Store
	nav    *recordingNavigator
	guard  *guard.Guard
}

func setupTestFixture(t *testing.T, opts ...guard.Option) *testFixture {
	t.Helper()

	f := &testFixture{nav: &recordingNavigator{}}
	f.medium = mediumfake.NewFakeMedium(nil)
	f.store = token.NewStore(f.medium)
	f.guard = guard.New(f.store, f.nav, opts...)
	return f
}

func (f *testFixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Save(token.Pair{AccessToken: "a", RefreshToken: "r", AccessExpiresIn: 60, RefreshExpiresIn: 3600}))
}

func (f *testFixture) redirectPath(t *testing.T) *string {
	t.Helper()
	path, err := f.store.ReadRedirectPath()
	require.NoError(t, err)
	return path
}

func TestStateZeroValue(t *testing.T) {
	var s guard.State
	require.Equal(t, guard.Unknown, s)
	require.Equal(t, "unknown", s.String())
	require.Equal(t, "authenticated", guard.Authenticated.String())
}

func TestCheck(t *testing.T) {
	t.Run("Authenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)

		state, err := f.guard.Check("/?page=2")
		require.NoError(t, err)
		require.Equal(t, guard.Authenticated, state)
		require.Empty(t, f.nav.visited())
		require.Nil(t, f.redirectPath(t))
	})

	t.Run("RefreshTokenAloneIsEnough", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Save(token.Pair{AccessToken: "a", RefreshToken: "r", AccessExpiresIn: 0, RefreshExpiresIn: 3600}))

		state, err := f.guard.Evaluate()
		require.NoError(t, err)
		require.Equal(t, guard.Authenticated, state)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t)

		state, err := f.guard.Check("/?page=2&filter=acme")
		require.NoError(t, err)
		require.Equal(t, guard.Unauthenticated, state)
		require.Equal(t, []string{guard.DefaultSignInPath}, f.nav.visited())

		path := f.redirectPath(t)
		require.NotNil(t, path)
		require.Equal(t, "/?page=2&filter=acme", *path)
	})

	t.Run("CustomSignInPath", func(t *testing.T) {
		f := setupTestFixture(t, guard.WithSignInPath("/login"))
		_, err := f.guard.Check("/profile")
		require.NoError(t, err)
		require.Equal(t, []string{"/login"}, f.nav.visited())
	})

	t.Run("ForeignLocationIsNotSaved", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.guard.Check("//evil.example.com/")
		require.NoError(t, err)
		require.Equal(t, "/", *f.redirectPath(t))
	})

	t.Run("StoreFailure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.medium.FailReads(mediumfake.ErrFake)

		state, err := f.guard.Check("/")
		require.ErrorIs(t, err, mediumfake.ErrFake)
		require.Equal(t, guard.Unknown, state)
		require.Empty(t, f.nav.visited())
	})
}

func TestRun(t *testing.T) {
	t.Run("RedirectsOnMount", func(t *testing.T) {
		f := setupTestFixture(t)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		state, err := f.guard.Run(ctx, "/profile", time.Hour)
		require.NoError(t, err)
		require.NoError(t, ctx.Err())
		require.Equal(t, guard.Unauthenticated, state)
		require.Equal(t, []string{guard.DefaultSignInPath}, f.nav.visited())
		require.Equal(t, "/profile", *f.redirectPath(t))
	})

	t.Run("StopsWhenSessionEnds", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = f.store.Clear()
		}()

		state, err := f.guard.Run(context.Background(), "/", 10*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, guard.Unauthenticated, state)
		require.Len(t, f.nav.visited(), 1)
	})

	t.Run("ChecksBeforeFirstTick", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		state, err := f.guard.Run(ctx, "/", time.Hour)
		require.NoError(t, err)
		require.Equal(t, guard.Authenticated, state)
	})

	t.Run("StopsWithContext", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		state, err := f.guard.Run(ctx, "/", 10*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, guard.Authenticated, state)
		require.Empty(t, f.nav.visited())
	})
}

func TestSafePath(t *testing.T) {
	require.Equal(t, "/profile?tab=1", guard.SafePath("/profile?tab=1"))
	require.Equal(t, "/", guard.SafePath("https://evil.example.com"))
	require.Equal(t, "/", guard.SafePath("//evil.example.com"))
	require.Equal(t, "/", guard.SafePath("/\\evil.example.com"))
	require.Equal(t, "/", guard.SafePath(""))
}

func TestTakeRedirectPath(t *testing.T) {
	f := setupTestFixture(t)

	path, err := guard.TakeRedirectPath(f.store)
	require.NoError(t, err)
	require.Equal(t, "/", path)

	require.NoError(t, f.store.SaveRedirectPath("/?page=3"))
	path, err = guard.TakeRedirectPath(f.store)
	require.NoError(t, err)
	require.Equal(t, "/?page=3", path)
	require.Nil(t, f.redirectPath(t))
}
