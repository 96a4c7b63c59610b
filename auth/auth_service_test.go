package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/reconfile-dashboard/apiclient"
	"github.com/jrsteele09/reconfile-dashboard/apiclient/apifake"
	"github.com/jrsteele09/reconfile-dashboard/auth"
	"github.com/jrsteele09/reconfile-dashboard/forms"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/jrsteele09/reconfile-dashboard/token/mediumfake"
	"github.com/stretchr/testify/require"
)

const (
	testUserEmail    = "ana.silva@example.com"
	testUserPassword = "password123"
)

type testFixture struct {
	api     *apifake.Server
	now     time.Time
	medium  *mediumfake.FakeMedium
	store   *token.Store
	client  *apiclient.Client
	service *auth.Service
	user    apifake.User
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{now: time.Now()}
	f.api = apifake.NewServer()
	t.Cleanup(f.api.Close)
	f.user = f.api.AddUser(apifake.User{Name: "Ana Silva", Email: testUserEmail, Password: testUserPassword, IsActive: true})

	clock := func() time.Time { return f.now }
	f.medium = mediumfake.NewFakeMedium(clock)
	f.store = token.NewStore(f.medium, token.WithNowTime(clock))

	var err error
	f.client, err = apiclient.New(f.api.URL(), f.store)
	require.NoError(t, err)
	f.service, err = auth.NewService(f.client, f.store)
	require.NoError(t, err)
	return f
}

func (f *testFixture) signIn(t *testing.T) token.Pair {
	t.Helper()
	pair, err := f.service.SignIn(context.Background(), forms.SignInInput{Email: testUserEmail, Password: testUserPassword})
	require.NoError(t, err)
	return pair
}

func TestNewService(t *testing.T) {
	store := token.NewStore(mediumfake.NewFakeMedium(nil))
	client, err := apiclient.New("http://localhost/", store)
	require.NoError(t, err)

	_, err = auth.NewService(nil, store)
	require.Error(t, err)
	_, err = auth.NewService(client, nil)
	require.Error(t, err)
}

func TestSignIn(t *testing.T) {
	t.Run("PersistsTokens", func(t *testing.T) {
		f := setupTestFixture(t)
		pair := f.signIn(t)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		tokens, err := f.store.Read()
		require.NoError(t, err)
		require.Equal(t, pair.AccessToken, *tokens.AccessToken)
		require.Equal(t, pair.RefreshToken, *tokens.RefreshToken)

		access, ok := f.medium.Entry(token.AccessTokenKey)
		require.True(t, ok)
		require.Equal(t, token.ExpiresAt(f.now, token.ExpiryDays(pair.AccessExpiresIn)), access.Expires)
		refresh, ok := f.medium.Entry(token.RefreshTokenKey)
		require.True(t, ok)
		require.Equal(t, token.ExpiresAt(f.now, token.ExpiryDays(pair.RefreshExpiresIn)), refresh.Expires)

		var resp apiclient.Response[apifake.User]
		require.NoError(t, f.client.Get(context.Background(), "users/current", nil, &resp))
		require.Equal(t, testUserEmail, resp.Data.Email)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SignIn(context.Background(), forms.SignInInput{Email: testUserEmail, Password: "wrong-password"})

		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnauthorized, apiErr.Code)
		require.Equal(t, "Invalid email or password", apiErr.Error())

		tokens, err := f.store.Read()
		require.NoError(t, err)
		require.Nil(t, tokens.AccessToken)
	})

	t.Run("ValidationSkipsNetwork", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.SignIn(context.Background(), forms.SignInInput{Email: "nope"})

		var verrs forms.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.NotEmpty(t, verrs.Get("email"))
		require.Equal(t, 0, f.api.Calls("POST /auth/signin"))
	})
}

func TestSignUp(t *testing.T) {
	input := forms.SignUpInput{Name: "Bruno Costa", Email: "bruno@example.com", Password: "secret1", ConfirmPassword: "secret1"}

	t.Run("PersistsTokens", func(t *testing.T) {
		f := setupTestFixture(t)
		pair, err := f.service.SignUp(context.Background(), input)
		require.NoError(t, err)

		tokens, err := f.store.Read()
		require.NoError(t, err)
		require.Equal(t, pair.RefreshToken, *tokens.RefreshToken)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		f := setupTestFixture(t)
		in := input
		in.Email = testUserEmail
		_, err := f.service.SignUp(context.Background(), in)

		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, apiclient.ErrorTypeConflict, apiErr.Type)
	})

	t.Run("PasswordsDoNotMatch", func(t *testing.T) {
		f := setupTestFixture(t)
		in := input
		in.ConfirmPassword = "other"
		_, err := f.service.SignUp(context.Background(), in)

		var verrs forms.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Equal(t, "Passwords do not match", verrs.Get("confirmPassword"))
		require.Equal(t, 0, f.api.Calls("POST /auth/signup"))
	})
}

func TestRefresh(t *testing.T) {
	t.Run("RotatesPair", func(t *testing.T) {
		f := setupTestFixture(t)
		first := f.signIn(t)

		second, err := f.service.Refresh(context.Background(), first.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		tokens, err := f.store.Read()
		require.NoError(t, err)
		require.Equal(t, second.RefreshToken, *tokens.RefreshToken)
	})

	t.Run("RefreshTokenIsSingleUse", func(t *testing.T) {
		f := setupTestFixture(t)
		first := f.signIn(t)
		_, err := f.service.Refresh(context.Background(), first.RefreshToken)
		require.NoError(t, err)

		_, err = f.service.Refresh(context.Background(), first.RefreshToken)
		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.True(t, apiErr.IsUnauthorized())
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{}}`))
		}))
		defer srv.Close()

		store := token.NewStore(mediumfake.NewFakeMedium(nil))
		client, err := apiclient.New(srv.URL, store)
		require.NoError(t, err)
		service, err := auth.NewService(client, store)
		require.NoError(t, err)

		_, err = service.Refresh(context.Background(), "refresh")
		require.ErrorIs(t, err, apperrors.ErrEmptyTokenResponse)
	})
}

func TestSignOut(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t)
	require.NoError(t, f.store.SaveRedirectPath("/profile"))

	require.NoError(t, f.service.SignOut())

	tokens, err := f.store.Read()
	require.NoError(t, err)
	require.Nil(t, tokens.AccessToken)
	require.Nil(t, tokens.RefreshToken)

	path, err := f.store.ReadRedirectPath()
	require.NoError(t, err)
	require.NotNil(t, path)
}

func TestSessionRecovery(t *testing.T) {
	recovering := func(f *testFixture) *apiclient.Client {
		return f.client.WithRecovery(f.service, func() { _ = f.service.SignOut() })
	}

	t.Run("ExpiredAccessToken", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)
		f.api.ExpireAccessTokens()

		var resp apiclient.Response[apifake.User]
		require.NoError(t, recovering(f).Get(context.Background(), "users/current", nil, &resp))
		require.Equal(t, testUserEmail, resp.Data.Email)
		require.Equal(t, 1, f.api.Calls("POST /auth/refresh"))
		require.Equal(t, 2, f.api.Calls("GET /users/current"))
	})

	t.Run("BothTokensInvalid", func(t *testing.T) {
		f := setupTestFixture(t)
		f.signIn(t)
		f.api.ExpireAccessTokens()
		f.api.RevokeRefreshTokens()

		err := recovering(f).Get(context.Background(), "users/current", nil, nil)
		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "Invalid refresh token", apiErr.Error())
		require.Equal(t, 1, f.api.Calls("GET /users/current"))

		tokens, err := f.store.Read()
		require.NoError(t, err)
		require.Nil(t, tokens.AccessToken)
		require.Nil(t, tokens.RefreshToken)
	})
}
