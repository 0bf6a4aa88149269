package ratelimit

import (
	"context"
	"sync"
	"time"

	"ratefeed/internal/provider"
)

// MinInterval enforces a minimum gap between upstream calls. Scraped
// sources block clients that poll too often, so callers wait here until
// the interval has elapsed or their context ends.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Source() provider.Source { return m.P.Source() }

func (m *MinInterval) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	if m.Interval <= 0 {
		return m.P.Fetch(ctx, symbol)
	}
	// Hold the lock across the call so waiters are serialized.
	m.mu.Lock()
	defer m.mu.Unlock()
	if wait := time.Until(m.last.Add(m.Interval)); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return provider.Quote{}, provider.Unavailable(m.P.Source(), symbol, 0, ctx.Err())
		case <-t.C:
		}
	}
	q, err := m.P.Fetch(ctx, symbol)
	m.last = time.Now()
	return q, err
}
