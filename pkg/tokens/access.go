package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is the client's read-only view of an access token.
//
// The client never verifies signatures; the API server does that. Decoding
// only exposes the claims so callers can show who is signed in and when the
// token lapses. Opaque (non-JWT) tokens fail to decode with
// ErrTokenMalformed and are otherwise usable as-is.
type AccessToken struct {
	issuer     string
	issuedAt   time.Time
	expiration time.Time
	audience   []string
	subject    string
	encoded    string
}

func (t *AccessToken) Issuer() string        { return t.issuer }
func (t *AccessToken) IssuedAt() time.Time   { return t.issuedAt }
func (t *AccessToken) Expiration() time.Time { return t.expiration }
func (t *AccessToken) Audience() []string    { return t.audience }
func (t *AccessToken) Subject() string       { return t.subject }
func (t *AccessToken) Encoded() string       { return t.encoded }

// Expired reports whether the exp claim is in the past. Tokens without an
// exp claim never expire from the client's point of view.
func (t *AccessToken) Expired(now time.Time) bool {
	return !t.expiration.IsZero() && t.expiration.Before(now)
}

// Decode reads the claims of encToken without verifying its signature.
func (t *AccessToken) Decode(encToken string) error {
	if strings.Count(encToken, ".") != 2 {
		return ErrTokenMalformed
	}

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(encToken, claims)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	t.fromClaims(claims, encToken)
	return nil
}

func (t *AccessToken) fromClaims(claims *jwt.RegisteredClaims, encToken string) {
	t.issuer = claims.Issuer
	t.subject = claims.Subject
	t.audience = claims.Audience
	t.issuedAt = time.Time{}
	t.expiration = time.Time{}
	if claims.IssuedAt != nil {
		t.issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		t.expiration = claims.ExpiresAt.Time
	}
	t.encoded = encToken
}

// classify maps jwt validation errors onto this package's sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
