package web_test

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"git.sr.ht/~jakintosh/authclient/internal/testutil"
	"git.sr.ht/~jakintosh/authclient/internal/web"
	"git.sr.ht/~jakintosh/authclient/pkg/authtest"
	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "password"
)

func setupApp(t *testing.T) (*authtest.API, http.Handler) {
	t.Helper()
	api, srv := authtest.NewServer(t, authtest.Options{})
	err := api.AddUser(authtest.User{
		Email:       testEmail,
		Permissions: []string{"metrics.list"},
		Roles:       []string{"editor"},
	}, testPassword)
	if err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	app, err := web.New(web.Options{
		APIURL:   srv.URL,
		Cookies:  store.DefaultCookieOptions,
		Logger:   log.New(io.Discard, "", 0),
		LogLevel: client.LogLevelNone,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return api, app.Router()
}

func signInForm(email, password string) string {
	return url.Values{"email": {email}, "password": {password}}.Encode()
}

func TestNew_RequiresAPIURL(t *testing.T) {
	t.Parallel()

	if _, err := web.New(web.Options{}); err == nil {
		t.Error("expected error without api url")
	}
}

func TestSignInPage(t *testing.T) {
	t.Parallel()
	_, router := setupApp(t)

	// guests see the form
	result := testutil.Get(router, "/", nil)
	testutil.ExpectStatus(t, http.StatusOK, result)
	if !strings.Contains(string(result.Body), `name="password"`) {
		t.Errorf("expected sign-in form, got %s", result.Body)
	}
}

func TestSignInPage_SignedInRedirects(t *testing.T) {
	t.Parallel()
	api, router := setupApp(t)
	pair, _ := api.IssuePair(testEmail)

	// a browser with a token goes straight to the dashboard
	result := testutil.Get(router, "/", nil, testutil.SessionCookies(pair))
	if location := testutil.ExpectRedirect(t, result); location != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %s", location)
	}
}

func TestSignIn(t *testing.T) {
	t.Parallel()
	_, router := setupApp(t)

	result := testutil.Post(router, "/", signInForm(testEmail, testPassword), nil, testutil.FormURLEncoded())

	// success redirects to the dashboard
	if location := testutil.ExpectRedirect(t, result); location != "/dashboard" {
		t.Errorf("expected redirect to /dashboard, got %s", location)
	}

	// both tokens are stored as cookies
	access, ok := testutil.ResponseCookie(result, tokens.AccessTokenName)
	if !ok || access.Value == "" {
		t.Fatalf("expected access token cookie, got %v", result.Headers.Values("Set-Cookie"))
	}
	if !access.HttpOnly || !access.Secure {
		t.Errorf("expected secure http-only cookie, got %+v", access)
	}
	if refresh, ok := testutil.ResponseCookie(result, tokens.RefreshTokenName); !ok || refresh.Value == "" {
		t.Error("expected refresh token cookie")
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	t.Parallel()
	_, router := setupApp(t)

	result := testutil.Post(router, "/", signInForm(testEmail, "wrong"), nil, testutil.FormURLEncoded())

	// the form is shown again with the e-mail kept
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	body := string(result.Body)
	if !strings.Contains(body, "Invalid e-mail or password.") {
		t.Errorf("expected error message, got %s", body)
	}
	if !strings.Contains(body, testEmail) {
		t.Errorf("expected e-mail to be kept, got %s", body)
	}
	if _, ok := testutil.ResponseCookie(result, tokens.AccessTokenName); ok {
		t.Error("expected no cookies on failed sign in")
	}
}

func TestDashboard_Guest(t *testing.T) {
	t.Parallel()
	_, router := setupApp(t)

	result := testutil.Get(router, "/dashboard", nil)
	if location := testutil.ExpectRedirect(t, result); location != "/" {
		t.Errorf("expected redirect to /, got %s", location)
	}
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	api, router := setupApp(t)
	pair, _ := api.IssuePair(testEmail)

	result := testutil.Get(router, "/dashboard", nil, testutil.SessionCookies(pair))
	testutil.ExpectStatus(t, http.StatusOK, result)

	// the page shows the user the API reported
	body := string(result.Body)
	for _, want := range []string{testEmail, "metrics.list", "editor"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q on dashboard, got %s", want, body)
		}
	}

	// nothing was refreshed, so no cookies were rewritten
	if cookies := result.Headers.Values("Set-Cookie"); len(cookies) != 0 {
		t.Errorf("expected no cookies, got %v", cookies)
	}
}

func TestDashboard_ExpiredTokenRefreshes(t *testing.T) {
	t.Parallel()
	api, router := setupApp(t)
	pair, _ := api.IssuePair(testEmail)
	api.ExpireAccessTokens()

	result := testutil.Get(router, "/dashboard", nil, testutil.SessionCookies(pair))

	// the page still renders after one refresh
	testutil.ExpectStatus(t, http.StatusOK, result)
	if !strings.Contains(string(result.Body), testEmail) {
		t.Errorf("expected dashboard, got %s", result.Body)
	}
	if calls := api.RefreshCalls(); calls != 1 {
		t.Errorf("expected 1 refresh call, got %d", calls)
	}

	// the rotated pair is written back to the browser
	access, ok := testutil.ResponseCookie(result, tokens.AccessTokenName)
	if !ok || access.Value == "" || access.Value == pair.Access {
		t.Errorf("expected new access token cookie, got %v", result.Headers.Values("Set-Cookie"))
	}
	refresh, ok := testutil.ResponseCookie(result, tokens.RefreshTokenName)
	if !ok || refresh.Value == pair.Refresh {
		t.Error("expected rotated refresh token cookie")
	}
}

func TestDashboard_RevokedTokenSignsOut(t *testing.T) {
	t.Parallel()
	api, router := setupApp(t)
	pair, _ := api.IssuePair(testEmail)
	api.Revoke(pair.Access)

	result := testutil.Get(router, "/dashboard", nil, testutil.SessionCookies(pair))

	// an invalid token sends the user back to sign in
	if location := testutil.ExpectRedirect(t, result); location != "/" {
		t.Errorf("expected redirect to /, got %s", location)
	}
	access, ok := testutil.ResponseCookie(result, tokens.AccessTokenName)
	if !ok || access.MaxAge >= 0 {
		t.Errorf("expected access token cookie to be expired, got %v", result.Headers.Values("Set-Cookie"))
	}
	if calls := api.RefreshCalls(); calls != 0 {
		t.Errorf("expected no refresh, got %d", calls)
	}
}

func TestSignOut(t *testing.T) {
	t.Parallel()
	api, router := setupApp(t)
	pair, _ := api.IssuePair(testEmail)

	result := testutil.Post(router, "/signout", "", nil, testutil.SessionCookies(pair))

	if location := testutil.ExpectRedirect(t, result); location != "/" {
		t.Errorf("expected redirect to /, got %s", location)
	}
	for _, name := range []string{tokens.AccessTokenName, tokens.RefreshTokenName} {
		cookie, ok := testutil.ResponseCookie(result, name)
		if !ok || cookie.Value != "" || cookie.MaxAge >= 0 {
			t.Errorf("expected %s to be cleared, got %+v", name, cookie)
		}
	}
}
