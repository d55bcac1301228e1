// Package authtest provides a fake bearer-token API for testing clients.
//
// The API signs users in, issues short-lived ES256 access tokens with
// single-use refresh tokens, and answers unauthorized requests with
// 401 {"code": "token.expired"} or 401 {"code": "token.invalid"}.
//
// # Usage
//
//	func TestReports(t *testing.T) {
//	    api, srv := authtest.NewServer(t, authtest.Options{})
//	    api.AddUser(authtest.User{Email: "alice@example.com"}, "password")
//	    pair, _ := api.IssuePair("alice@example.com")
//
//	    // point the code under test at srv.URL, seeded with pair
//	}
//
// # Driving Expiry
//
// Tests control the token lifecycle directly:
//
//	api.ExpireAccessTokens()              // every issued token now answers token.expired
//	api.Revoke(pair.Access)               // this token now answers token.invalid
//	api.FailRefresh(http.StatusBadGateway) // refresh calls now fail
//	api.HoldRefresh()                     // refresh calls block...
//	api.ReleaseRefresh()                  // ...until released
//
// RefreshCalls, ExpiredResponses and Requests report what the API saw.
package authtest
