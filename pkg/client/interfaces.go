package client

import (
	"context"
	"net/http"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// API makes authorized JSON calls.
// Consuming projects should depend on this interface rather than *Client
// to enable testing with mock implementations.
type API interface {
	Do(req *http.Request) (*http.Response, error)
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Put(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
}

// Authenticator manages the session tokens behind an API.
type Authenticator interface {
	AccessToken() string
	SetTokens(ctx context.Context, pair tokens.Pair) error
	SignOut(ctx context.Context) error
	PostUncoordinated(ctx context.Context, path string, in, out any) error
	Navigate(route string)
}

// AuthAPI exposes both authorized calls and session management.
type AuthAPI interface {
	API
	Authenticator
}

// Compile-time check that *Client implements AuthAPI.
var _ API = (*Client)(nil)
var _ Authenticator = (*Client)(nil)
var _ AuthAPI = (*Client)(nil)
