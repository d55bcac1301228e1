package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

const (
	DefaultRefreshPath    = "/refresh"
	DefaultRefreshTimeout = 30 * time.Second
	DefaultSignedOutRoute = "/"
)

// Config configures a Client. Only BaseURL is required.
type Config struct {
	// BaseURL is the API root every request path is resolved against.
	BaseURL string
	// Store persists the token pair. Defaults to an in-memory store.
	Store store.TokenStore
	// Navigator receives the signed-out route on sign-out. Defaults to
	// NopNavigator.
	Navigator Navigator
	// Transport sends requests, including the refresh call. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout bounds each call made through the client, sign-in included.
	// A call queued behind a refresh is not interrupted while it waits; it
	// fails once the refresh settles if its deadline has passed. The
	// refresh call itself is bounded by RefreshTimeout alone. Zero means no
	// timeout.
	Timeout time.Duration

	RefreshPath string
	// RefreshTimeout bounds a single refresh call.
	RefreshTimeout time.Duration
	SignedOutRoute string
	// SignOutOnRefreshFailure signs the user out when a refresh call
	// fails. By default a failed refresh only fails the queued requests.
	SignOutOnRefreshFailure bool

	LogLevel LogLevel
	Logger   *log.Logger
}

// Client is an HTTP client for a bearer-token API that refreshes an expired
// access token once and replays every request that hit the expiry.
type Client struct {
	baseURL   *url.URL
	store     store.TokenStore
	navigator Navigator
	config    Config

	base  http.RoundTripper
	coord *Coordinator
	http  *http.Client
	log   *logger
}

// New builds a Client and loads any stored access token into the default
// Authorization header.
func New(ctx context.Context, config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("client: base url required")
	}
	baseURL, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	if config.Store == nil {
		config.Store = store.NewMemory()
	}
	if config.Navigator == nil {
		config.Navigator = NopNavigator
	}
	if config.Transport == nil {
		config.Transport = http.DefaultTransport
	}
	if config.RefreshPath == "" {
		config.RefreshPath = DefaultRefreshPath
	}
	if config.RefreshTimeout == 0 {
		config.RefreshTimeout = DefaultRefreshTimeout
	}
	if config.SignedOutRoute == "" {
		config.SignedOutRoute = DefaultSignedOutRoute
	}

	c := &Client{
		baseURL:   baseURL,
		store:     config.Store,
		navigator: config.Navigator,
		config:    config,
		base:      config.Transport,
		log:       newLogger(config.LogLevel, config.Logger),
	}
	c.coord = newCoordinator(
		c.refresh,
		c.loadRefreshToken,
		c.store.Save,
		config.RefreshTimeout,
		c.log,
	)
	c.http = &http.Client{
		Transport: &Transport{
			base:    c.base,
			coord:   c.coord,
			signOut: c.SignOut,
			log:     c.log,
		},
		Timeout: config.Timeout,
	}

	pair, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: failed to load tokens: %w", err)
	}
	c.coord.SetToken(pair.Access)
	if pair.Access != "" {
		c.log.debugf("client: restored access token %s\n", tokens.Prefix(pair.Access))
	}
	return c, nil
}

// HTTPClient returns the coordinated *http.Client. Requests sent through it
// carry the current access token and survive access-token expiry.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Coordinator exposes the refresh state shared by all requests.
func (c *Client) Coordinator() *Coordinator { return c.coord }

func (c *Client) Store() store.TokenStore { return c.store }

func (c *Client) Navigate(route string) { c.navigator.Navigate(route) }

// AccessToken returns the token currently sent in the Authorization header.
func (c *Client) AccessToken() string { return c.coord.Token() }

// SetTokens stores a freshly issued pair and starts sending its access token.
func (c *Client) SetTokens(ctx context.Context, pair tokens.Pair) error {
	if err := c.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	c.coord.SetToken(pair.Access)
	return nil
}

// SignOut clears the stored tokens and the Authorization header, then
// navigates to the signed-out route. A refresh still in flight is
// abandoned and its queued requests fail with ErrNotSignedIn. Navigation
// happens even when the store fails to clear.
func (c *Client) SignOut(ctx context.Context) error {
	c.coord.SignOut()
	err := c.store.Clear(ctx)
	if err != nil {
		c.log.errorf("client: failed to clear tokens: %v\n", err)
		err = fmt.Errorf("failed to clear tokens: %w", err)
	}
	c.navigator.Navigate(c.config.SignedOutRoute)
	c.log.infof("client: signed out\n")
	return err
}

// Watch follows changes another process makes to the token store, keeping
// the Authorization header in step. Stores that cannot be watched return a
// no-op stop function.
func (c *Client) Watch() (stop func() error, err error) {
	watcher, ok := c.store.(store.Watcher)
	if !ok {
		return func() error { return nil }, nil
	}
	return watcher.Watch(func(pair tokens.Pair) {
		if pair.Access != c.coord.Token() {
			c.log.debugf("client: token store changed, now %s\n", tokens.Prefix(pair.Access))
			c.coord.SetToken(pair.Access)
		}
	})
}

// URL resolves an API path, optionally carrying a query, against the base
// URL.
func (c *Client) URL(path string) string {
	rawPath, rawQuery, _ := strings.Cut(path, "?")
	u := c.baseURL.JoinPath(rawPath)
	u.RawQuery = rawQuery
	return u.String()
}

// NewRequest builds a request for an API path. A non-nil body is encoded as
// JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends a request through the coordinated client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// DoJSON sends a request and decodes a 2xx JSON response into out, which may
// be nil. Any other status is returned as a *StatusError.
func (c *Client) DoJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decodeResponse(req, res, out)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	req, err := c.NewRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	req, err := c.NewRequest(ctx, http.MethodPut, path, in)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := c.NewRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.DoJSON(req, nil)
}

// PostUncoordinated posts JSON straight to the base transport with no
// Authorization header and no expiry handling. Sign-in and refresh use it.
func (c *Client) PostUncoordinated(ctx context.Context, path string, in, out any) error {
	return c.postUncoordinated(ctx, path, in, out, c.config.Timeout)
}

func (c *Client) postUncoordinated(
	ctx context.Context,
	path string,
	in, out any,
	timeout time.Duration,
) error {
	req, err := c.NewRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	hc := &http.Client{Transport: c.base, Timeout: timeout}
	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return decodeResponse(req, res, out)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	var pair tokens.Pair
	// ctx already carries the refresh timeout
	err := c.postUncoordinated(ctx, c.config.RefreshPath, refreshRequest{refreshToken}, &pair, 0)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			err = fmt.Errorf("%w: %w", ErrRefreshRequest, err)
		}
		if c.config.SignOutOnRefreshFailure {
			c.SignOut(ctx)
		}
		return tokens.Pair{}, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return tokens.Pair{}, ErrRefreshResponse
	}
	return pair, nil
}

func (c *Client) loadRefreshToken(ctx context.Context) (string, error) {
	pair, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load refresh token: %w", err)
	}
	return pair.Refresh, nil
}

func decodeResponse(req *http.Request, res *http.Response, out any) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		return newStatusError(req, res.StatusCode, data)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
