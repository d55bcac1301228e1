// Package testutil provides test environment setup and utilities for package tests.
package testutil

import (
	"net/http"
	"testing"

	"git.sr.ht/~jakintosh/authclient/pkg/authtest"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// TestEnv provides all dependencies needed for testing against the fake API
type TestEnv struct {
	API    *authtest.API
	Router http.Handler
}

// SetupTestEnv creates an isolated fake API with its router
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()

	api := authtest.NewAPI(authtest.Options{})
	t.Cleanup(api.ReleaseRefresh)

	return &TestEnv{
		API:    api,
		Router: api.Router(),
	}
}

// RegisterTestUser seeds a user with no permissions or roles
func (env *TestEnv) RegisterTestUser(
	t *testing.T,
	email string,
	password string,
) {
	t.Helper()
	user := authtest.User{Email: email, Permissions: []string{}, Roles: []string{}}
	if err := env.API.AddUser(user, password); err != nil {
		t.Fatalf("failed to register test user: %v", err)
	}
}

// IssueTestPair signs a registered user in without a password
func (env *TestEnv) IssueTestPair(
	t *testing.T,
	email string,
) tokens.Pair {
	t.Helper()
	pair, err := env.API.IssuePair(email)
	if err != nil {
		t.Fatalf("failed to issue test pair: %v", err)
	}
	return pair
}
