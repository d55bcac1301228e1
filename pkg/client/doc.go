// Package client is an HTTP client for bearer-token APIs that keeps a user
// session alive across access-token expiry.
//
// Requests carry "Authorization: Bearer <access>". When the API answers 401
// with a body of {"code": "token.expired"}, the client refreshes the token
// pair once, no matter how many requests hit the expiry at the same time,
// and replays each of those requests with the new access token. Any other
// 401 signs the user out. Every other response passes through untouched.
//
// # Quick Start
//
//	import (
//	    "git.sr.ht/~jakintosh/authclient/pkg/client"
//	    "git.sr.ht/~jakintosh/authclient/pkg/store"
//	)
//
//	tokenStore := store.NewFile(filepath.Join(configDir, "tokens.json"))
//	api, err := client.New(ctx, client.Config{
//	    BaseURL: "https://api.example.com",
//	    Store:   tokenStore,
//	})
//	if err != nil {
//	    return err
//	}
//
//	var me struct{ Email string `json:"email"` }
//	if err := api.Get(ctx, "/me", &me); err != nil {
//	    return err
//	}
//
// Existing code built around *http.Client can use HTTPClient instead:
//
//	hc := api.HTTPClient()
//	res, err := hc.Get(api.URL("/reports?year=2024"))
//
// # Refresh Coordination
//
// The first expired response starts a refresh: the stored refresh token is
// posted to RefreshPath as {"refreshToken": "..."} and the response
// {"token": "...", "refreshToken": "..."} is saved to the store. Expired
// responses that arrive while the refresh is in flight queue behind it.
// When it succeeds every queued request is replayed with the new token, one
// after another in the order the requests expired; when it fails every
// queued request fails with the same error:
//
//	err := api.Get(ctx, "/reports", &reports)
//	var urlErr *url.Error
//	if errors.As(err, &urlErr) {
//	    // the refresh call could not reach the API
//	}
//
// A request is replayed at most once. If the replay expires again, the 401
// is returned to the caller as a *StatusError matching ErrTokenExpired.
//
// # Signing Out
//
// A 401 with any other code (or none) clears the store, drops the
// Authorization header and sends the Navigator to SignedOutRoute. Signing
// out while a refresh is in flight discards the refreshed pair; the
// requests queued on it fail with ErrNotSignedIn.
//
// Server handlers can redirect the browser instead:
//
//	api, err := client.New(r.Context(), client.Config{
//	    BaseURL:   apiURL,
//	    Store:     store.NewCookie(w, r, store.DefaultCookieOptions),
//	    Navigator: client.RedirectNavigator(w, r),
//	})
//
// # Error Handling
//
//	err := api.Post(ctx, "/reports", report, nil)
//	switch {
//	case errors.Is(err, client.ErrTokenExpired):
//	    // replay expired again
//	case errors.Is(err, client.ErrUnauthorized):
//	    // user was signed out
//	case errors.Is(err, client.ErrRefreshRequest):
//	    // refresh endpoint rejected the refresh token
//	}
//
// # Testing
//
// Depend on the API or AuthAPI interfaces rather than *Client, and run
// integration tests against the fake API in the authtest package.
package client
