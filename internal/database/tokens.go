package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// Load returns the stored pair. Expired entries read as empty.
func (s *SQLiteStore) Load(ctx context.Context) (tokens.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value
		FROM token
		WHERE name IN (?1, ?2)
		  AND expiration > ?3;`,
		tokens.AccessTokenName,
		tokens.RefreshTokenName,
		time.Now().Unix(),
	)
	if err != nil {
		return tokens.Pair{}, fmt.Errorf("couldn't query token: %v", err)
	}
	defer rows.Close()

	var pair tokens.Pair
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return tokens.Pair{}, fmt.Errorf("couldn't scan token: %v", err)
		}
		switch name {
		case tokens.AccessTokenName:
			pair.Access = value
		case tokens.RefreshTokenName:
			pair.Refresh = value
		}
	}
	if err := rows.Err(); err != nil {
		return tokens.Pair{}, fmt.Errorf("couldn't read token rows: %v", err)
	}
	return pair, nil
}

// Save replaces both entries, each expiring tokens.MaxAge from now.
func (s *SQLiteStore) Save(ctx context.Context, pair tokens.Pair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("couldn't begin token save: %v", err)
	}
	defer tx.Rollback()

	expiration := time.Now().Add(tokens.MaxAge).Unix()
	entries := []struct{ name, value string }{
		{tokens.AccessTokenName, pair.Access},
		{tokens.RefreshTokenName, pair.Refresh},
	}
	for _, entry := range entries {
		if err := upsertToken(ctx, tx, entry.name, entry.value, expiration); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("couldn't commit token save: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM token
		WHERE name IN (?1, ?2);`,
		tokens.AccessTokenName,
		tokens.RefreshTokenName,
	)
	if err != nil {
		return fmt.Errorf("couldn't delete from token: %v", err)
	}
	return nil
}

func upsertToken(
	ctx context.Context,
	tx *sql.Tx,
	name string,
	value string,
	expiration int64,
) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token (name, value, path, expiration)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (name) DO UPDATE
		SET value=excluded.value,
			path=excluded.path,
			expiration=excluded.expiration;`,
		name,
		value,
		tokens.Path,
		expiration,
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert token '%s': %v", name, err)
	}
	return nil
}

// expire backdates every entry; tests use it to simulate lapsed storage.
func (s *SQLiteStore) expire(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE token SET expiration = 0;`)
	return err
}
