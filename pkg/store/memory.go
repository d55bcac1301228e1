package store

import (
	"context"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

// Memory keeps the pair in process memory.
type Memory struct {
	mu      sync.RWMutex
	pair    tokens.Pair
	expires time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Load(context.Context) (tokens.Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expires.IsZero() || !m.now().Before(m.expires) {
		return tokens.Pair{}, nil
	}
	return m.pair, nil
}

func (m *Memory) Save(_ context.Context, pair tokens.Pair) error {
	m.mu.Lock()
	m.pair = pair
	m.expires = m.now().Add(tokens.MaxAge)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.pair = tokens.Pair{}
	m.expires = time.Time{}
	m.mu.Unlock()
	return nil
}
