package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ratefeed/internal/provider"
)

// Entry is a memoized quote and the time it was stored.
type Entry struct {
	Symbol   string         `json:"symbol"`
	Quote    provider.Quote `json:"quote"`
	StoredAt time.Time      `json:"stored_at"`
}

// Store keeps one entry per symbol. Entries are overwritten on every
// write and never expired by the store itself.
type Store interface {
	// Read returns nil, nil when no entry exists.
	Read(ctx context.Context, symbol string) (*Entry, error)
	Write(ctx context.Context, symbol string, q provider.Quote) error
}

// IsFresh reports whether e was stored less than ttl before now.
func IsFresh(e *Entry, ttl time.Duration, now time.Time) bool {
	return e != nil && now.Sub(e.StoredAt) < ttl
}

// Policy decides whether a cached entry short-circuits a live fetch.
type Policy string

const (
	// PolicyAlways serves any cached entry without fetching.
	PolicyAlways Policy = "always"
	// PolicyTTL serves only entries younger than the TTL.
	PolicyTTL Policy = "ttl"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyAlways:
		return PolicyAlways, nil
	case PolicyTTL, "ttl-checked", "":
		return PolicyTTL, nil
	default:
		return "", fmt.Errorf("unknown cache policy %q", s)
	}
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	Now func() time.Time

	mu    sync.RWMutex
	items map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Entry)}
}

func (m *MemoryStore) Read(_ context.Context, symbol string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[symbol]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *MemoryStore) Write(_ context.Context, symbol string, q provider.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]Entry)
	}
	m.items[symbol] = Entry{Symbol: symbol, Quote: q, StoredAt: now(m.Now)}
	return nil
}

func now(f func() time.Time) time.Time {
	if f != nil {
		return f().UTC()
	}
	return time.Now().UTC()
}
