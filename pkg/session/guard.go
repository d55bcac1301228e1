package session

import (
	"net/http"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// GuestOnly redirects requests that already carry an access token cookie to
// route, and serves next otherwise. It guards sign-in pages.
func GuestOnly(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(tokens.AccessTokenName); err == nil && cookie.Value != "" {
			http.Redirect(w, r, route, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SignedInOnly redirects requests without an access token cookie to route,
// and serves next otherwise.
func SignedInOnly(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(tokens.AccessTokenName); err != nil || cookie.Value == "" {
			http.Redirect(w, r, route, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
