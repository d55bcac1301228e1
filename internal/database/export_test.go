package database

import "context"

func (s *SQLiteStore) Expire(ctx context.Context) error { return s.expire(ctx) }
