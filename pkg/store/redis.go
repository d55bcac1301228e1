package store

import (
	"context"
	"fmt"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"github.com/redis/go-redis/v9"
)

// Redis keeps the pair in Redis under "<prefix>:<name>" keys whose TTL is
// the entry lifetime. Several processes (or hosts) sharing a prefix share a
// session.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "authclient"
	}
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) key(name string) string {
	return s.prefix + ":" + name
}

func (s *Redis) Load(ctx context.Context) (tokens.Pair, error) {
	values, err := s.client.MGet(ctx,
		s.key(tokens.AccessTokenName),
		s.key(tokens.RefreshTokenName),
	).Result()
	if err != nil {
		return tokens.Pair{}, fmt.Errorf("failed to load tokens: %w", err)
	}

	str := func(v any) string {
		s, _ := v.(string)
		return s
	}
	return tokens.Pair{
		Access:  str(values[0]),
		Refresh: str(values[1]),
	}, nil
}

func (s *Redis) Save(ctx context.Context, pair tokens.Pair) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(tokens.AccessTokenName), pair.Access, tokens.MaxAge)
		pipe.Set(ctx, s.key(tokens.RefreshTokenName), pair.Refresh, tokens.MaxAge)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	err := s.client.Del(ctx,
		s.key(tokens.AccessTokenName),
		s.key(tokens.RefreshTokenName),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}
