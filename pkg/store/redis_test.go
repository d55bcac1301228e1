package store_test

import (
	"context"
	"testing"

	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis_SaveLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := store.NewRedis(client, "app")

	if err := s.Save(ctx, tokens.Pair{Access: "a1", Refresh: "r1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// keys are prefixed and expire after MaxAge
	key := "app:" + tokens.AccessTokenName
	if got, _ := mr.Get(key); got != "a1" {
		t.Errorf("%s = %q, want a1", key, got)
	}
	if ttl := mr.TTL(key); ttl != tokens.MaxAge {
		t.Errorf("TTL = %v, want %v", ttl, tokens.MaxAge)
	}

	pair, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pair.Access != "a1" || pair.Refresh != "r1" {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func TestRedis_LoadEmpty(t *testing.T) {
	t.Parallel()
	_, client := newTestRedis(t)

	pair, err := store.NewRedis(client, "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !pair.Empty() {
		t.Errorf("expected empty pair, got %+v", pair)
	}
}

func TestRedis_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := store.NewRedis(client, "app")
	_ = s.Save(ctx, tokens.Pair{Access: "a1", Refresh: "r1"})

	// after MaxAge the entries are gone
	mr.FastForward(tokens.MaxAge)
	pair, _ := s.Load(ctx)
	if !pair.Empty() {
		t.Errorf("expected empty pair after expiry, got %+v", pair)
	}
}

func TestRedis_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, client := newTestRedis(t)
	s := store.NewRedis(client, "app")
	_ = s.Save(ctx, tokens.Pair{Access: "a1", Refresh: "r1"})

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if mr.Exists("app:" + tokens.RefreshTokenName) {
		t.Error("refresh token key should be deleted")
	}
}

func TestRedis_Unavailable(t *testing.T) {
	t.Parallel()
	mr, client := newTestRedis(t)
	mr.Close()

	// a dead server surfaces as an error
	if _, err := store.NewRedis(client, "app").Load(context.Background()); err == nil {
		t.Error("expected error from closed server")
	}
}
