package authtest

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultIssuerDomain   = "api.test"
	DefaultAccessLifetime = 15 * time.Minute
)

// Options configures an API. The zero value is usable.
type Options struct {
	IssuerDomain   string
	AccessLifetime time.Duration
	SigningKey     *ecdsa.PrivateKey
	// PasswordCost is the bcrypt cost for seeded users. Defaults to
	// bcrypt.MinCost to keep tests fast.
	PasswordCost int
	// Logger receives one line per request. Defaults to discarding.
	Logger *log.Logger
}

// User is the profile returned by the sessions and me endpoints.
type User struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

type account struct {
	user         User
	passwordHash []byte
}

// Request is one call the API received, recorded after it was answered.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Status        int
}

// API is an in-process fake of a bearer-token API: it signs users in,
// rotates refresh tokens, and answers 401 {"code": "token.expired"} or
// {"code": "token.invalid"} the way the real one does. Tests drive expiry
// and refresh failures through its control methods.
type API struct {
	server *tokens.Server
	opts   Options
	log    *log.Logger

	mu          sync.Mutex
	accounts    map[string]*account
	refresh     map[string]string
	issued      map[string]bool
	expired     map[string]bool
	revoked     map[string]bool
	refreshFail int
	refreshHold chan struct{}
	refreshes   int
	expiries    int
	requests    []Request
}

func NewAPI(opts Options) *API {
	if opts.IssuerDomain == "" {
		opts.IssuerDomain = DefaultIssuerDomain
	}
	if opts.AccessLifetime == 0 {
		opts.AccessLifetime = DefaultAccessLifetime
	}
	if opts.SigningKey == nil {
		opts.SigningKey = SharedKey()
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.MinCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &API{
		server:   tokens.InitServer(opts.SigningKey, opts.IssuerDomain),
		opts:     opts,
		log:      logger,
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
		issued:   make(map[string]bool),
		expired:  make(map[string]bool),
		revoked:  make(map[string]bool),
	}
}

// NewServer starts the API on an httptest server that is closed when the
// test ends.
func NewServer(t testing.TB, opts Options) (*API, *httptest.Server) {
	t.Helper()
	api := NewAPI(opts)
	srv := httptest.NewServer(api.Router())
	t.Cleanup(func() {
		api.ReleaseRefresh()
		srv.Close()
	})
	return api, srv
}

// AddUser seeds an account with a bcrypt-hashed password.
func (a *API) AddUser(user User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.opts.PasswordCost)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", user.Email, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[user.Email] = &account{user: user, passwordHash: hash}
	return nil
}

// IssuePair signs an existing user in without a password.
func (a *API) IssuePair(email string) (tokens.Pair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.accounts[email]; !ok {
		return tokens.Pair{}, fmt.Errorf("unknown user %s", email)
	}
	return a.issuePairLocked(email)
}

func (a *API) issuePairLocked(email string) (tokens.Pair, error) {
	access, err := a.server.IssueAccessToken(email, a.opts.AccessLifetime)
	if err != nil {
		return tokens.Pair{}, err
	}
	refresh := a.server.IssueRefreshToken()
	a.issued[access.Encoded()] = true
	a.refresh[refresh] = email
	return tokens.Pair{Access: access.Encoded(), Refresh: refresh}, nil
}

// ExpireAccessTokens makes every access token issued so far answer
// token.expired, as if its lifetime had run out.
func (a *API) ExpireAccessTokens() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for access := range a.issued {
		a.expired[access] = true
	}
}

// Revoke makes an access token answer token.invalid.
func (a *API) Revoke(access string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[access] = true
}

// FailRefresh makes the refresh endpoint answer with status. Zero restores
// normal behavior.
func (a *API) FailRefresh(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshFail = status
}

// HoldRefresh blocks refresh calls until ReleaseRefresh is called.
func (a *API) HoldRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshHold == nil {
		a.refreshHold = make(chan struct{})
	}
}

// ReleaseRefresh lets held refresh calls continue. It is safe to call when
// nothing is held.
func (a *API) ReleaseRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refreshHold != nil {
		close(a.refreshHold)
		a.refreshHold = nil
	}
}

// RefreshCalls counts requests to the refresh endpoint.
func (a *API) RefreshCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshes
}

// ExpiredResponses counts token.expired answers.
func (a *API) ExpiredResponses() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiries
}

// Requests returns the calls received so far, in the order they completed.
func (a *API) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.requests))
	copy(out, a.requests)
	return out
}
