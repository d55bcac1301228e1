// Package tokens holds the session token types shared by the client, the
// token stores and the fake API.
//
// A session is a Pair: a short-lived access token sent as
// "Authorization: Bearer <access>" and a long-lived refresh token used only
// to obtain a new pair from the refresh endpoint. Both are stored under
// AccessTokenName and RefreshTokenName with a MaxAge of 30 days and Path "/".
//
// # Reading Claims
//
// The client treats tokens as opaque, but when the access token is a JWT its
// claims can be read without verification:
//
//	token := new(tokens.AccessToken)
//	if err := token.Decode(pair.Access); err == nil {
//	    fmt.Printf("signed in as %s until %s\n", token.Subject(), token.Expiration())
//	}
//
// # Issuing Tokens
//
// Server issues ES256 access tokens and opaque refresh tokens. It backs the
// fake API used in tests:
//
//	server := tokens.InitServer(signingKey, "api.test")
//	access, err := server.IssueAccessToken("alice@example.com", time.Minute)
//	refresh := server.IssueRefreshToken()
//
//	// later, on the API side
//	if _, err := server.Verify(access.Encoded()); errors.Is(err, tokens.ErrTokenExpired) {
//	    // answer 401 {"code": "token.expired"}
//	}
package tokens
