package authtest_test

import (
	"net/http"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/authclient/internal/testutil"
	"git.sr.ht/~jakintosh/authclient/pkg/authtest"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

func TestSignIn_Success(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")

	// valid credentials return a token pair
	body := `{
		"email": "alice@example.com",
		"password": "password"
	}`
	var response authtest.SignInResponse
	result := testutil.PostJSON(env.Router, "/sessions", body, &response)
	testutil.ExpectStatus(t, http.StatusOK, result)
	if response.Token == "" {
		t.Error("expected non-empty access token")
	}
	if response.RefreshToken == "" {
		t.Error("expected non-empty refresh token")
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")

	// wrong password returns 401 with credentials code
	body := `{
		"email": "alice@example.com",
		"password": "nope"
	}`
	var response authtest.ErrorResponse
	result := testutil.PostJSON(env.Router, "/sessions", body, &response)
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	if response.Code != authtest.CodeInvalidCredentials {
		t.Errorf("expected code %s, got %s", authtest.CodeInvalidCredentials, response.Code)
	}
}

func TestSignIn_BadJSON(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	result := testutil.PostJSON(env.Router, "/sessions", `{`, nil)
	testutil.ExpectStatus(t, http.StatusBadRequest, result)
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	user := authtest.User{
		Email:       "alice@example.com",
		Permissions: []string{"users.list"},
		Roles:       []string{"editor"},
	}
	if err := env.API.AddUser(user, "password"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	pair := env.IssueTestPair(t, "alice@example.com")

	// live token returns the user profile
	var response authtest.User
	result := testutil.Get(env.Router, "/me", &response, testutil.Bearer(pair.Access))
	testutil.ExpectStatus(t, http.StatusOK, result)
	if response.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %s", response.Email)
	}
	if len(response.Roles) != 1 || response.Roles[0] != "editor" {
		t.Errorf("unexpected roles %v", response.Roles)
	}
}

func TestMe_Unauthorized(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")
	expiring := env.IssueTestPair(t, "alice@example.com")
	revoking := env.IssueTestPair(t, "alice@example.com")
	env.API.ExpireAccessTokens()
	env.API.Revoke(revoking.Access)

	tests := []struct {
		name    string
		headers []testutil.Header
		code    string
	}{
		{"no token", nil, authtest.CodeTokenInvalid},
		{"garbage token", []testutil.Header{testutil.Bearer("garbage")}, authtest.CodeTokenInvalid},
		{"revoked token", []testutil.Header{testutil.Bearer(revoking.Access)}, authtest.CodeTokenInvalid},
		{"expired token", []testutil.Header{testutil.Bearer(expiring.Access)}, authtest.CodeTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response authtest.ErrorResponse
			result := testutil.Get(env.Router, "/me", &response, tt.headers...)
			testutil.ExpectStatus(t, http.StatusUnauthorized, result)
			if response.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, response.Code)
			}
		})
	}
}

func TestMe_NaturallyExpired(t *testing.T) {
	t.Parallel()
	api := authtest.NewAPI(authtest.Options{AccessLifetime: -time.Minute})
	if err := api.AddUser(authtest.User{Email: "alice@example.com"}, "password"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	pair, _ := api.IssuePair("alice@example.com")

	// a token past its exp claim answers token.expired
	var response authtest.ErrorResponse
	result := testutil.Get(api.Router(), "/me", &response, testutil.Bearer(pair.Access))
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	if response.Code != authtest.CodeTokenExpired {
		t.Errorf("expected code %s, got %s", authtest.CodeTokenExpired, response.Code)
	}
	if api.ExpiredResponses() != 1 {
		t.Errorf("expected 1 expired response, got %d", api.ExpiredResponses())
	}
}

func TestRefresh_Rotates(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")
	pair := env.IssueTestPair(t, "alice@example.com")

	// valid refresh returns a new pair
	body := `{"refreshToken": "` + pair.Refresh + `"}`
	var next tokens.Pair
	result := testutil.PostJSON(env.Router, "/refresh", body, &next)
	testutil.ExpectStatus(t, http.StatusOK, result)
	if next.Access == "" || next.Access == pair.Access {
		t.Errorf("expected new access token, got %q", next.Access)
	}
	if next.Refresh == "" || next.Refresh == pair.Refresh {
		t.Errorf("expected new refresh token, got %q", next.Refresh)
	}

	// the old refresh token is consumed
	var response authtest.ErrorResponse
	result = testutil.PostJSON(env.Router, "/refresh", body, &response)
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	if response.Code != authtest.CodeTokenInvalid {
		t.Errorf("expected code %s, got %s", authtest.CodeTokenInvalid, response.Code)
	}
	if env.API.RefreshCalls() != 2 {
		t.Errorf("expected 2 refresh calls, got %d", env.API.RefreshCalls())
	}
}

func TestRefresh_Fail(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")
	pair := env.IssueTestPair(t, "alice@example.com")
	env.API.FailRefresh(http.StatusServiceUnavailable)

	// forced failure answers with the configured status
	body := `{"refreshToken": "` + pair.Refresh + `"}`
	result := testutil.PostJSON(env.Router, "/refresh", body, nil)
	testutil.ExpectStatus(t, http.StatusServiceUnavailable, result)

	// clearing the failure restores refresh
	env.API.FailRefresh(0)
	result = testutil.PostJSON(env.Router, "/refresh", body, nil)
	testutil.ExpectStatus(t, http.StatusOK, result)
}

func TestEcho(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	env.RegisterTestUser(t, "alice@example.com", "password")
	pair := env.IssueTestPair(t, "alice@example.com")

	// echo reports method, body and subject
	var response authtest.EchoResponse
	result := testutil.PostJSON(env.Router, "/echo", `{"n":1}`, &response, testutil.Bearer(pair.Access))
	testutil.ExpectStatus(t, http.StatusOK, result)
	if response.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", response.Method)
	}
	if response.Body != `{"n":1}` {
		t.Errorf("expected body echoed, got %q", response.Body)
	}
	if response.Subject != "alice@example.com" {
		t.Errorf("expected subject alice@example.com, got %s", response.Subject)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	// status endpoint answers with the requested code
	result := testutil.Get(env.Router, "/status/503", nil)
	testutil.ExpectStatus(t, http.StatusServiceUnavailable, result)

	// and every call is recorded
	requests := env.API.Requests()
	if len(requests) != 1 || requests[0].Status != http.StatusServiceUnavailable {
		t.Errorf("unexpected recorded requests %+v", requests)
	}
}
