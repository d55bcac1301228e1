package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

const (
	DefaultSignInPath     = "/sessions"
	DefaultMePath         = "/me"
	DefaultSignedInRoute  = "/dashboard"
	DefaultSignedOutRoute = client.DefaultSignedOutRoute
)

type Config struct {
	SignInPath    string
	MePath        string
	SignedInRoute string
}

// User is the signed-in user as reported by the API.
type User struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

func (u User) HasPermission(permission string) bool {
	return slices.Contains(u.Permissions, permission)
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	Permissions  []string `json:"permissions"`
	Roles        []string `json:"roles"`
}

// Session tracks who is signed in on top of an authorized API client.
type Session struct {
	api    client.AuthAPI
	config Config

	mu   sync.RWMutex
	user *User
}

func New(api client.AuthAPI, config Config) *Session {
	if config.SignInPath == "" {
		config.SignInPath = DefaultSignInPath
	}
	if config.MePath == "" {
		config.MePath = DefaultMePath
	}
	if config.SignedInRoute == "" {
		config.SignedInRoute = DefaultSignedInRoute
	}
	return &Session{api: api, config: config}
}

// SignIn exchanges credentials for a token pair, stores it, and navigates to
// the signed-in route.
func (s *Session) SignIn(ctx context.Context, creds Credentials) (User, error) {
	var res signInResponse
	err := s.api.PostUncoordinated(ctx, s.config.SignInPath, creds, &res)
	if err != nil {
		var statusErr *client.StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized ||
			statusErr.StatusCode == http.StatusBadRequest) {
			return User{}, fmt.Errorf("%w: %w", client.ErrInvalidCredentials, err)
		}
		return User{}, fmt.Errorf("sign in failed: %w", err)
	}
	if res.Token == "" || res.RefreshToken == "" {
		return User{}, fmt.Errorf("sign in failed: response missing tokens")
	}

	pair := tokens.Pair{Access: res.Token, Refresh: res.RefreshToken}
	if err := s.api.SetTokens(ctx, pair); err != nil {
		return User{}, err
	}

	user := User{
		Email:       creds.Email,
		Permissions: res.Permissions,
		Roles:       res.Roles,
	}
	s.setUser(&user)
	s.api.Navigate(s.config.SignedInRoute)
	return user, nil
}

// Restore loads the user for a stored session. A session whose user cannot
// be fetched is signed out.
func (s *Session) Restore(ctx context.Context) (User, error) {
	if s.api.AccessToken() == "" {
		return User{}, client.ErrNotSignedIn
	}

	var user User
	if err := s.api.Get(ctx, s.config.MePath, &user); err != nil {
		s.SignOut(ctx)
		return User{}, fmt.Errorf("failed to restore session: %w", err)
	}
	s.setUser(&user)
	return user, nil
}

// User returns the signed-in user, if any.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// SignOut forgets the user and signs the client out.
func (s *Session) SignOut(ctx context.Context) error {
	s.setUser(nil)
	return s.api.SignOut(ctx)
}

func (s *Session) setUser(user *User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}
