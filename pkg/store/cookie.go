package store

import (
	"context"
	"log"
	"net/http"
	"sync"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// CookieOptions configures the attributes of the token cookies.
type CookieOptions struct {
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
	Path     string
}

// DefaultCookieOptions are secure, HTTP-only, SameSite=Lax cookies at "/".
var DefaultCookieOptions = CookieOptions{
	Secure:   true,
	HttpOnly: true,
	SameSite: http.SameSiteLaxMode,
	Path:     tokens.Path,
}

var insecureCookieWarning sync.Once

// Cookie stores the pair as cookies on one request/response exchange, for
// server-rendered apps that call the API on behalf of a browser. It must be
// created per request.
type Cookie struct {
	w    http.ResponseWriter
	r    *http.Request
	opts CookieOptions

	mu      sync.Mutex
	written *tokens.Pair
}

func NewCookie(
	w http.ResponseWriter,
	r *http.Request,
	opts CookieOptions,
) *Cookie {
	if opts.Path == "" {
		opts.Path = tokens.Path
	}
	if !opts.Secure {
		insecureCookieWarning.Do(func() {
			log.Println("store: WARNING: token cookies are not marked Secure")
		})
	}
	return &Cookie{w: w, r: r, opts: opts}
}

// Load prefers what this exchange already wrote over the request cookies.
func (c *Cookie) Load(context.Context) (tokens.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.written != nil {
		return *c.written, nil
	}
	return tokens.Pair{
		Access:  cookieValue(c.r, tokens.AccessTokenName),
		Refresh: cookieValue(c.r, tokens.RefreshTokenName),
	}, nil
}

func (c *Cookie) Save(_ context.Context, pair tokens.Pair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	maxAge := int(tokens.MaxAge.Seconds())
	http.SetCookie(c.w, c.cookie(tokens.AccessTokenName, pair.Access, maxAge))
	http.SetCookie(c.w, c.cookie(tokens.RefreshTokenName, pair.Refresh, maxAge))
	c.written = &pair
	return nil
}

func (c *Cookie) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	http.SetCookie(c.w, c.cookie(tokens.AccessTokenName, "", -1))
	http.SetCookie(c.w, c.cookie(tokens.RefreshTokenName, "", -1))
	c.written = &tokens.Pair{}
	return nil
}

func (c *Cookie) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.opts.Path,
		MaxAge:   maxAge,
		Secure:   c.opts.Secure,
		HttpOnly: c.opts.HttpOnly,
		SameSite: c.opts.SameSite,
	}
}

func cookieValue(r *http.Request, name string) string {
	if cookie, err := r.Cookie(name); err == nil {
		return cookie.Value
	}
	return ""
}
