// Package store persists the session token pair.
//
// Every TokenStore keeps two entries, tokens.AccessTokenName and
// tokens.RefreshTokenName, scoped to tokens.Path and expiring tokens.MaxAge
// after they were last saved. Loading when nothing is stored (or everything
// has expired) returns an empty pair and no error.
package store

import (
	"context"
	"errors"

	"git.sr.ht/~jakintosh/authclient/internal/database"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

var ErrUnknownKind = errors.New("unknown store kind")

type TokenStore interface {
	Load(ctx context.Context) (tokens.Pair, error)
	Save(ctx context.Context, pair tokens.Pair) error
	Clear(ctx context.Context) error
}

// Watcher is implemented by stores that can report changes made outside
// this process.
type Watcher interface {
	Watch(onChange func(tokens.Pair)) (stop func() error, err error)
}

var (
	_ TokenStore = (*Memory)(nil)
	_ TokenStore = (*Cookie)(nil)
	_ TokenStore = (*File)(nil)
	_ TokenStore = (*Redis)(nil)
	_ TokenStore = (*database.SQLiteStore)(nil)
	_ Watcher    = (*File)(nil)
)

// OpenSQLite opens (or creates) a SQLite token database at path.
func OpenSQLite(path string) (*database.SQLiteStore, error) {
	return database.NewSQLiteStore(path)
}
