package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"ratefeed/internal/provider"
)

// Outcome tells how a quote returned by Provider was obtained.
type Outcome uint8

const (
	// OutcomeLive means the upstream was queried and the result stored.
	OutcomeLive Outcome = iota + 1
	// OutcomeCached means a stored entry was served without a fetch.
	OutcomeCached
	// OutcomeStale means the fetch failed and the last stored entry was served.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLive:
		return "live"
	case OutcomeCached:
		return "cached"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// OutcomeFetcher is implemented by providers that report where a quote came from.
type OutcomeFetcher interface {
	FetchWithOutcome(ctx context.Context, symbol string) (provider.Quote, Outcome, error)
}

// DefaultFetchTimeout bounds a shared upstream call when FetchTimeout is unset.
const DefaultFetchTimeout = 30 * time.Second

// Provider wraps a provider with a per-symbol store. A failed fetch falls
// back to whatever entry the store holds, however old. Concurrent misses
// for one symbol share a single upstream call, which runs detached from
// the callers' cancellation and is bounded by FetchTimeout instead.
type Provider struct {
	P            provider.Provider
	Store        Store
	TTL          time.Duration
	Policy       Policy
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Now          func() time.Time

	group singleflight.Group
}

var _ provider.Provider = (*Provider)(nil)

func (c *Provider) Source() provider.Source { return c.P.Source() }

func (c *Provider) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	q, _, err := c.FetchWithOutcome(ctx, symbol)
	return q, err
}

func (c *Provider) FetchWithOutcome(ctx context.Context, symbol string) (provider.Quote, Outcome, error) {
	if c.Store == nil {
		q, err := c.P.Fetch(ctx, symbol)
		return q, OutcomeLive, err
	}
	sym := provider.Canonical(symbol)
	log := c.logger().With("source", c.P.Source().String(), "symbol", sym)

	if e := c.read(ctx, log, sym); e != nil && c.serveCached(e) {
		return e.Quote, OutcomeCached, nil
	}

	ch := c.group.DoChan(sym, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout())
		defer cancel()
		q, err := c.P.Fetch(fctx, sym)
		if err != nil {
			return nil, err
		}
		if err := c.Store.Write(fctx, sym, q); err != nil {
			log.Warn("cache write failed", "err", err)
		}
		return q, nil
	})
	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(provider.Quote), OutcomeLive, nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if e := c.read(ctx, log, sym); e != nil {
		log.Warn("serving stale quote", "stored_at", e.StoredAt, "err", err)
		return e.Quote, OutcomeStale, nil
	}
	if !provider.IsUnavailable(err) && !provider.IsInvalidSymbol(err) {
		err = provider.Unavailable(c.P.Source(), sym, 0, err)
	}
	return provider.Quote{}, 0, err
}

func (c *Provider) serveCached(e *Entry) bool {
	switch c.Policy {
	case PolicyAlways:
		return true
	default:
		return c.TTL > 0 && IsFresh(e, c.TTL, now(c.Now))
	}
}

// read treats store failures as a miss.
func (c *Provider) read(ctx context.Context, log *slog.Logger, sym string) *Entry {
	e, err := c.Store.Read(ctx, sym)
	if err != nil {
		log.Warn("cache read failed", "err", err)
		return nil
	}
	return e
}

func (c *Provider) fetchTimeout() time.Duration {
	if c.FetchTimeout > 0 {
		return c.FetchTimeout
	}
	return DefaultFetchTimeout
}

func (c *Provider) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
