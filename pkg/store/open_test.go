package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"git.sr.ht/~jakintosh/authclient/pkg/store"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
	"github.com/alicebob/miniredis/v2"
)

func TestOpen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		opts store.Options
	}{
		{"default", store.Options{}},
		{"memory", store.Options{Kind: store.KindMemory}},
		{"file", store.Options{Kind: store.KindFile, Path: filepath.Join(dir, "tokens.json")}},
		{"sqlite", store.Options{Kind: store.KindSQLite, Path: filepath.Join(dir, "tokens.db")}},
		{"redis", store.Options{Kind: store.KindRedis, RedisAddr: mr.Addr(), RedisPrefix: "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closeStore, err := store.Open(tt.opts)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer closeStore()

			// every kind round-trips a pair
			pair := tokens.Pair{Access: "T1", Refresh: "R1"}
			if err := s.Save(context.Background(), pair); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := s.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded != pair {
				t.Errorf("expected %+v, got %+v", pair, loaded)
			}
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts store.Options
	}{
		{"unknown", store.Options{Kind: "etcd"}},
		{"file without path", store.Options{Kind: store.KindFile}},
		{"sqlite without path", store.Options{Kind: store.KindSQLite}},
		{"redis without addr", store.Options{Kind: store.KindRedis}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := store.Open(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, _, err := store.Open(store.Options{Kind: "etcd"})
	if !errors.Is(err, store.ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}
