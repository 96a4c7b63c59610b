package server_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/reconfile-dashboard/apiclient/apifake"
	"github.com/jrsteele09/reconfile-dashboard/internal/config"
	"github.com/jrsteele09/reconfile-dashboard/server"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/jrsteele09/reconfile-dashboard/token/sessionstore"
	"github.com/stretchr/testify/require"
)

const (
	testUserName     = "Ana Silva"
	testUserEmail    = "ana.silva@example.com"
	testUserPassword = "password123"
)

type testFixture struct {
	api    *apifake.Server
	user   apifake.User
	ts     *httptest.Server
	jar    *cookiejar.Jar
	client *http.Client
}

func testConfig(apiURL string, storage config.TokenStorage) config.Settings {
	return config.Settings{
		EnvVars: config.EnvVars{Port: "0", AppName: "Reconfile", Env: "TEST", LogLevel: "error"},
		API:     config.API{BaseURL: apiURL, Timeout: 5 * time.Second},
		Session: config.Session{
			Storage:           string(storage),
			RedirectPathTTL:   5 * time.Minute,
			GuardPollInterval: 5 * time.Second,
		},
	}
}

func setupTestFixture(t *testing.T, storage config.TokenStorage, overrides ...func(*config.Settings)) *testFixture {
	t.Helper()

	f := &testFixture{api: apifake.NewServer()}
	t.Cleanup(f.api.Close)
	f.user = f.api.AddUser(apifake.User{Name: testUserName, Email: testUserEmail, Password: testUserPassword, IsActive: true})
	f.api.SetSuppliers([]apifake.Supplier{
		{ID: "s1", PartnerName: "Northwind", CustomerName: "Acme Corp", SubscriptionID: "sub-1", ProductName: "Azure Plan", ChargeStartDate: "2024-01-01", BillingPreTaxTotal: 100.5, BillingCurrency: "USD", IsActive: true},
		{ID: "s2", PartnerName: "Northwind", CustomerName: "Globex", SubscriptionID: "sub-2", ProductName: "Microsoft 365", ChargeStartDate: "2024-02-01", BillingPreTaxTotal: 49.5, BillingCurrency: "USD", IsActive: false},
	})

	cfg := testConfig(f.api.URL(), storage)
	for _, override := range overrides {
		override(&cfg)
	}
	srv, err := server.New(cfg)
	require.NoError(t, err)
	f.ts = httptest.NewServer(srv)
	t.Cleanup(f.ts.Close)

	f.jar, err = cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: f.jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *testFixture) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *testFixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+path, nil)
	require.NoError(t, err)
	return f.do(t, req)
}

func (f *testFixture) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(t, req)
}

func (f *testFixture) upload(t *testing.T, fileName string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+server.RouteSupplierImport, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, _ := f.do(t, req)
	return resp
}

func (f *testFixture) signIn(t *testing.T) *http.Response {
	t.Helper()
	resp, _ := f.postForm(t, server.RouteSignIn, url.Values{"email": {testUserEmail}, "password": {testUserPassword}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return resp
}

func (f *testFixture) cookie(t *testing.T, name string) (string, bool) {
	t.Helper()
	u, err := url.Parse(f.ts.URL)
	require.NoError(t, err)
	for _, c := range f.jar.Cookies(u) {
		if c.Name == name {
			v, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			return v, true
		}
	}
	return "", false
}

func noticeOf(t *testing.T, resp *http.Response, kind string) string {
	t.Helper()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get(kind)
}

func TestRouteGuard(t *testing.T) {
	t.Run("RedirectsAndRestoresLocation", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)

		resp, _ := f.get(t, "/?page=2&filter=acme")
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteSignIn, resp.Header.Get("Location"))
		saved, ok := f.cookie(t, token.RedirectPathKey)
		require.True(t, ok)
		require.Equal(t, "/?page=2&filter=acme", saved)

		resp = f.signIn(t)
		require.Equal(t, "/?page=2&filter=acme", resp.Header.Get("Location"))
		_, ok = f.cookie(t, token.RedirectPathKey)
		require.False(t, ok)

		resp = f.signIn(t)
		require.Equal(t, "/", resp.Header.Get("Location"))
	})

	t.Run("SignInPageSkipsAuthenticatedUser", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, _ := f.get(t, server.RouteSignIn)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteHome, resp.Header.Get("Location"))
	})

	t.Run("SignOutForgetsTokens", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, _ := f.get(t, server.RouteSignOut)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteSignIn, resp.Header.Get("Location"))
		_, ok := f.cookie(t, token.RefreshTokenKey)
		require.False(t, ok)

		resp, _ = f.get(t, server.RouteProfile)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteSignIn, resp.Header.Get("Location"))
	})
}

func TestSessionCheck(t *testing.T) {
	newPoll := func(t *testing.T, f *testFixture) *http.Request {
		req, err := http.NewRequest(http.MethodGet, f.ts.URL+server.RouteSessionCheck, nil)
		require.NoError(t, err)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Current-URL", f.ts.URL+"/?filter=globex")
		return req
	}

	t.Run("Authenticated", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, _ := f.do(t, newPoll(t, f))
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Empty(t, resp.Header.Get("HX-Redirect"))
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)

		resp, _ := f.do(t, newPoll(t, f))
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Equal(t, server.RouteSignIn, resp.Header.Get("HX-Redirect"))
		saved, ok := f.cookie(t, token.RedirectPathKey)
		require.True(t, ok)
		require.Equal(t, "/?filter=globex", saved)
	})
}

func TestSignIn(t *testing.T) {
	t.Run("InvalidCredentials", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		resp, body := f.postForm(t, server.RouteSignIn, url.Values{"email": {testUserEmail}, "password": {"wrong-password"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Invalid email or password")
		require.Contains(t, body, testUserEmail)
		_, ok := f.cookie(t, token.RefreshTokenKey)
		require.False(t, ok)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		resp, body := f.postForm(t, server.RouteSignIn, url.Values{"email": {"not-an-email"}})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.Contains(t, body, "Enter a valid email address")
		require.Contains(t, body, "Password is required")
		require.Zero(t, f.api.Calls("POST /auth/signin"))
	})

	t.Run("SignUpSignsIn", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		resp, _ := f.postForm(t, server.RouteSignUp, url.Values{
			"name":            {"Bruno Costa"},
			"email":           {"bruno.costa@example.com"},
			"password":        {"secret99"},
			"confirmPassword": {"secret99"},
		})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteHome, resp.Header.Get("Location"))
		_, ok := f.cookie(t, token.RefreshTokenKey)
		require.True(t, ok)
	})

	t.Run("SignUpPasswordMismatch", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		resp, body := f.postForm(t, server.RouteSignUp, url.Values{
			"name":            {"Bruno Costa"},
			"email":           {"bruno.costa@example.com"},
			"password":        {"secret99"},
			"confirmPassword": {"secret98"},
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.Contains(t, body, "Passwords do not match")
		require.Zero(t, f.api.Calls("POST /auth/signup"))
	})
}

func TestDashboard(t *testing.T) {
	t.Run("RendersOverviewAndList", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, body := f.get(t, "/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Welcome back, "+testUserName)
		require.Contains(t, body, "150.00 USD")
		require.Contains(t, body, "Acme Corp")
		require.Contains(t, body, "Globex")
		require.Contains(t, body, "Page 1 of 1 (2 records)")
		require.Contains(t, body, `hx-trigger="every 5000ms"`)
	})

	t.Run("SubSecondPollInterval", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie, func(c *config.Settings) {
			c.Session.GuardPollInterval = 250 * time.Millisecond
		})
		f.signIn(t)

		_, body := f.get(t, "/")
		require.Contains(t, body, `hx-trigger="every 250ms"`)
	})

	t.Run("FilterIsForwarded", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, body := f.get(t, "/?filter=acme&page=1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Acme Corp")
		require.NotContains(t, body, "Microsoft 365")

		query := f.api.LastSupplierQuery()
		require.Equal(t, "acme", query.Get("filter"))
		require.Equal(t, "1", query.Get("page"))
	})

	t.Run("RefreshesExpiredAccessToken", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)
		refreshBefore, _ := f.cookie(t, token.RefreshTokenKey)
		f.api.ExpireAccessTokens()

		resp, body := f.get(t, "/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Acme Corp")
		require.Equal(t, 1, f.api.Calls("POST /auth/refresh"))

		refreshAfter, ok := f.cookie(t, token.RefreshTokenKey)
		require.True(t, ok)
		require.NotEqual(t, refreshBefore, refreshAfter)

		resp, _ = f.get(t, "/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, f.api.Calls("POST /auth/refresh"))
	})

	t.Run("FailedSiblingCallKeepsSession", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)
		refreshBefore, _ := f.cookie(t, token.RefreshTokenKey)
		f.api.ExpireAccessTokens()
		f.api.SetRefreshDelay(200 * time.Millisecond)
		f.api.FailRoute("GET /suppliers/overview", http.StatusInternalServerError)

		resp, body := f.get(t, "/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Service unavailable")
		require.Contains(t, body, "Acme Corp")
		require.Equal(t, 1, f.api.Calls("POST /auth/refresh"))

		refreshAfter, ok := f.cookie(t, token.RefreshTokenKey)
		require.True(t, ok)
		require.NotEqual(t, refreshBefore, refreshAfter)
	})

	t.Run("LostSessionRedirectsToSignIn", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)
		f.api.ExpireAccessTokens()
		f.api.RevokeRefreshTokens()

		resp, _ := f.get(t, "/?page=2")
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, server.RouteSignIn, resp.Header.Get("Location"))
		_, ok := f.cookie(t, token.RefreshTokenKey)
		require.False(t, ok)
		saved, ok := f.cookie(t, token.RedirectPathKey)
		require.True(t, ok)
		require.Equal(t, "/?page=2", saved)
	})
}

func TestSupplierImport(t *testing.T) {
	t.Run("UploadsSpreadsheet", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp := f.upload(t, "billing-2024-02.xlsx", []byte("PK\x03\x04 fake workbook"))
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "Spreadsheet imported successfully.", noticeOf(t, resp, "success"))

		imported, ok := f.api.LastImport()
		require.True(t, ok)
		require.Equal(t, "billing-2024-02.xlsx", imported.FileName)
	})

	t.Run("RejectsOtherFileTypes", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp := f.upload(t, "billing.csv", []byte("a,b,c"))
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "Only .xlsx spreadsheets can be imported.", noticeOf(t, resp, "error"))
		require.Zero(t, f.api.Calls("POST /suppliers/import"))
	})

	t.Run("RejectsEmptyFile", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp := f.upload(t, "billing.xlsx", nil)
		require.Equal(t, "The selected spreadsheet is empty.", noticeOf(t, resp, "error"))
		require.Zero(t, f.api.Calls("POST /suppliers/import"))
	})

	t.Run("NoticeIsShownOnDashboard", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		_, body := f.get(t, "/?success=Spreadsheet+imported+successfully.")
		require.Contains(t, body, "Spreadsheet imported successfully.")
		require.NotContains(t, body, "success=Spreadsheet")
	})
}

func TestProfile(t *testing.T) {
	t.Run("ShowsCurrentUser", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, body := f.get(t, server.RouteProfile)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, testUserEmail)
		require.Contains(t, body, ">AS<")
	})

	t.Run("UpdatesDetails", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, _ := f.postForm(t, server.RouteProfile, url.Values{"name": {"Ana Maria Silva"}, "email": {testUserEmail}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "Profile updated.", noticeOf(t, resp, "success"))

		user, ok := f.api.User(f.user.ID)
		require.True(t, ok)
		require.Equal(t, "Ana Maria Silva", user.Name)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, body := f.postForm(t, server.RouteProfile, url.Values{"name": {""}, "email": {testUserEmail}})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		require.Contains(t, body, "Name is required")
		require.Zero(t, f.api.Calls("PUT /users/current"))
	})

	t.Run("WrongCurrentPassword", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, body := f.postForm(t, server.RouteProfilePassword, url.Values{"oldPassword": {"nope"}, "newPassword": {"secret99"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "Current password is incorrect")
	})

	t.Run("ChangesPassword", func(t *testing.T) {
		f := setupTestFixture(t, config.TokenStorageCookie)
		f.signIn(t)

		resp, _ := f.postForm(t, server.RouteProfilePassword, url.Values{"oldPassword": {testUserPassword}, "newPassword": {"secret99"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "Password changed.", noticeOf(t, resp, "success"))

		user, ok := f.api.User(f.user.ID)
		require.True(t, ok)
		require.Equal(t, "secret99", user.Password)
	})
}

func TestMemoryTokenStorage(t *testing.T) {
	f := setupTestFixture(t, config.TokenStorageMemory)
	f.signIn(t)

	_, ok := f.cookie(t, sessionstore.SessionCookieName)
	require.True(t, ok)
	_, ok = f.cookie(t, token.AccessTokenKey)
	require.False(t, ok)
	_, ok = f.cookie(t, token.RefreshTokenKey)
	require.False(t, ok)

	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Acme Corp")
}

func TestSessionFixation(t *testing.T) {
	f := setupTestFixture(t, config.TokenStorageMemory)
	u, err := url.Parse(f.ts.URL)
	require.NoError(t, err)
	planted := uuid.NewString()
	f.jar.SetCookies(u, []*http.Cookie{{Name: sessionstore.SessionCookieName, Value: planted, Path: "/"}})

	f.signIn(t)
	issued, ok := f.cookie(t, sessionstore.SessionCookieName)
	require.True(t, ok)
	require.NotEqual(t, planted, issued)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sessionstore.SessionCookieName, Value: planted})
	resp, err := (&http.Client{CheckRedirect: f.client.CheckRedirect}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, server.RouteSignIn, resp.Header.Get("Location"))
}

func TestOperationalRoutes(t *testing.T) {
	f := setupTestFixture(t, config.TokenStorageCookie)

	t.Run("Health", func(t *testing.T) {
		resp, body := f.get(t, server.RouteHealth)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "ok", body)
	})

	t.Run("Metrics", func(t *testing.T) {
		f.signIn(t)
		resp, body := f.get(t, server.RouteMetrics)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, body, "reconfile_api_requests_total")
		require.Contains(t, body, "go_goroutines")
	})

	t.Run("StaticAssets", func(t *testing.T) {
		resp, body := f.get(t, "/css/app.css")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
		require.Contains(t, body, ".card")

		resp, _ = f.get(t, "/css/missing.css")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestNew(t *testing.T) {
	_, err := server.New(testConfig("http://localhost:3333/", config.TokenStorageRedis))
	require.Error(t, err)

	_, err = server.New(testConfig("http://localhost:3333/", config.TokenStorageRedis), server.WithSessionRepo(sessionstore.NewInMemoryRepo()))
	require.NoError(t, err)
}
