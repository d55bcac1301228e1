package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/authclient/internal/watch"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

type fileEntry struct {
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

// File keeps the pair in a JSON file readable only by its owner. Every Load
// reads the file, so other processes sharing it see each other's writes.
type File struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFile(path string) *File {
	return &File{path: path, now: time.Now}
}

func (f *File) Path() string { return f.path }

func (f *File) Load(context.Context) (tokens.Pair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (tokens.Pair, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return tokens.Pair{}, nil
	}
	if err != nil {
		return tokens.Pair{}, fmt.Errorf("failed to read tokens: %w", err)
	}

	entries := map[string]fileEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return tokens.Pair{}, fmt.Errorf("failed to parse tokens: %w", err)
	}

	now := f.now()
	value := func(name string) string {
		entry, ok := entries[name]
		if !ok || !now.Before(entry.Expires) {
			return ""
		}
		return entry.Value
	}
	return tokens.Pair{
		Access:  value(tokens.AccessTokenName),
		Refresh: value(tokens.RefreshTokenName),
	}, nil
}

func (f *File) Save(_ context.Context, pair tokens.Pair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	expires := f.now().Add(tokens.MaxAge)
	entries := map[string]fileEntry{
		tokens.AccessTokenName:  {Value: pair.Access, Path: tokens.Path, Expires: expires},
		tokens.RefreshTokenName: {Value: pair.Refresh, Path: tokens.Path, Expires: expires},
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	return f.write(data)
}

func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove tokens: %w", err)
	}
	return nil
}

// write replaces the file atomically so concurrent readers never see a
// partial document.
func (f *File) write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tokens: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tokens: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace tokens: %w", err)
	}
	return nil
}

// Watch calls onChange with the newly loaded pair whenever the file changes
// on disk, including changes made by this process.
func (f *File) Watch(onChange func(tokens.Pair)) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return watch.File(f.path, watch.DefaultDelay, func() {
		pair, err := f.Load(context.Background())
		if err != nil {
			return
		}
		onChange(pair)
	})
}
