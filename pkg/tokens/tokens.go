package tokens

import (
	"errors"
	"time"
)

// Names of the two stored session entries. They match the cookie names used
// by the web front-end so a server-rendered app and this client share state.
const (
	AccessTokenName  = "nextauth.token"
	RefreshTokenName = "nextauth.refreshToken"
)

const (
	// MaxAge is the lifetime given to both stored entries.
	MaxAge = 30 * 24 * time.Hour
	// Path is the scope given to both stored entries.
	Path = "/"
)

var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
)

// Pair is an access token and the refresh token that can replace it.
// The JSON field names are the ones used by the sessions and refresh
// endpoints.
type Pair struct {
	Access  string `json:"token"`
	Refresh string `json:"refreshToken"`
}

func (p Pair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// Bearer returns the Authorization header value for an access token.
func Bearer(access string) string {
	return "Bearer " + access
}

// Prefix shortens a token for log output.
func Prefix(token string) string {
	const n = 12
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}
