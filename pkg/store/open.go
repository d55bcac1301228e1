package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	KindMemory = "memory"
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// Options selects and configures a store for Open.
type Options struct {
	Kind string
	// Path is the file or database path for the file and sqlite kinds.
	Path string
	// RedisAddr and RedisPrefix configure the redis kind.
	RedisAddr   string
	RedisPrefix string
}

// Open builds the store described by opts. The returned close function
// releases any connection the store holds and is never nil.
func Open(opts Options) (TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch opts.Kind {
	case "", KindMemory:
		return NewMemory(), noop, nil

	case KindFile:
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("file store requires a path")
		}
		return NewFile(opts.Path), noop, nil

	case KindSQLite:
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("sqlite store requires a path")
		}
		db, err := OpenSQLite(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil

	case KindRedis:
		if opts.RedisAddr == "" {
			return nil, nil, fmt.Errorf("redis store requires an address")
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		return NewRedis(client, opts.RedisPrefix), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}
