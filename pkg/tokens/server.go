package tokens

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Server issues and verifies ES256 access tokens. Production tokens come
// from the API; Server exists for the fake API in authtest and the test
// server binary.
type Server struct {
	signingKey   *ecdsa.PrivateKey
	issuerDomain string
}

func InitServer(
	signingKey *ecdsa.PrivateKey,
	issuerDomain string,
) *Server {
	return &Server{
		signingKey:   signingKey,
		issuerDomain: issuerDomain,
	}
}

func (server *Server) IssueAccessToken(
	subject string,
	lifetime time.Duration,
) (*AccessToken, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    server.issuerDomain,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		// distinct tokens for the same subject within one second
		ID: uuid.NewString(),
	}

	encToken, err := jwt.
		NewWithClaims(jwt.SigningMethodES256, claims).
		SignedString(server.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %v", err)
	}

	token := &AccessToken{}
	token.fromClaims(claims, encToken)
	return token, nil
}

// IssueRefreshToken returns a new opaque refresh token.
func (server *Server) IssueRefreshToken() string {
	return uuid.NewString()
}

// Verify checks the signature, issuer and expiry of encToken. Expired
// tokens fail with ErrTokenExpired so callers can tell them apart.
func (server *Server) Verify(encToken string) (*AccessToken, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		encToken,
		claims,
		func(*jwt.Token) (any, error) {
			return &server.signingKey.PublicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(server.issuerDomain),
	)
	if err != nil {
		return nil, classify(err)
	}

	token := &AccessToken{}
	token.fromClaims(claims, encToken)
	return token, nil
}
