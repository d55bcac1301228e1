// Package session signs users in and out on top of an authorized client and
// remembers who is signed in.
//
//	api, _ := client.New(ctx, client.Config{BaseURL: apiURL, Store: tokenStore})
//	sess := session.New(api, session.Config{})
//
//	// fresh sign-in
//	user, err := sess.SignIn(ctx, session.Credentials{Email: email, Password: password})
//
//	// or pick up a stored session on start
//	user, err := sess.Restore(ctx)
//
// Sign-in posts to /sessions and stores the returned pair; Restore asks /me
// who the stored token belongs to and signs out if it cannot tell.
package session
