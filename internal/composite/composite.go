package composite

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ratefeed/internal/power"
	"ratefeed/internal/provider"
	"ratefeed/internal/provider/cache"
)

const (
	DefaultUSDTSymbol   = "BTCUSDT"
	DefaultJPYSymbol    = "BTCJPY"
	DefaultFetchTimeout = 8 * time.Second
)

// MultiplierResolver is satisfied by *power.Resolver.
type MultiplierResolver interface {
	Resolve(ctx context.Context, sel power.Selector) (power.Resolution, error)
}

// Calculator derives USDT→JPY through BTC. USDT quotes BTC/USDT, JPY quotes
// BTC/JPY, and Pivot quotes BTC/JPY from the cache-shielded scrape.
type Calculator struct {
	Resolver MultiplierResolver
	USDT     provider.Provider
	JPY      provider.Provider
	Pivot    provider.Provider

	USDTSymbol   string
	JPYSymbol    string
	FetchTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

type legs struct {
	usdt, jpy, pivot provider.Quote
	pivotStale       bool
}

// Compute returns a complete Rate or a *ComputationError, never both.
// Upstream calls outlive a cancelled ctx so the cache stays warm; only
// their FetchTimeout bounds them.
func (c *Calculator) Compute(ctx context.Context, sel power.Selector) (*Rate, error) {
	res, err := c.Resolver.Resolve(ctx, sel)
	if err != nil {
		return nil, &ComputationError{Stage: "resolve power", Cause: err}
	}

	l, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	cross, err := Cross(l.usdt, l.jpy, res.Power)
	if err != nil {
		return nil, &ComputationError{Stage: "derive cross", Cause: err}
	}
	spread, err := SpreadPercent(cross.Bid, cross.Ask)
	if err != nil {
		return nil, &ComputationError{Stage: "derive spread", Cause: err}
	}
	secondary, err := scaledRatio(l.pivot.Last, l.usdt.Last, res.Power)
	if err != nil {
		return nil, &ComputationError{Stage: "derive secondary", Cause: err}
	}

	rate := &Rate{
		Bid:           cross.Bid,
		Ask:           cross.Ask,
		Last:          cross.Last,
		SpreadPercent: spread,
		SecondaryLast: secondary,
		Power:         res.Power,
		PowerOutcome:  res.Outcome,
		USDT:          l.usdt,
		JPY:           l.jpy,
		Pivot:         l.pivot,
		PivotStale:    l.pivotStale,
		CalculatedAt:  c.now(),
	}
	c.logger().Debug("composite rate",
		"bid", rate.Bid.String(), "ask", rate.Ask.String(), "last", rate.Last.String(),
		"power", rate.Power.String(), "power_outcome", res.Outcome.String(), "pivot_stale", l.pivotStale)
	return rate, nil
}

func (c *Calculator) fetch(ctx context.Context) (legs, error) {
	timeout := c.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)

	var (
		l legs
		g errgroup.Group
	)
	g.Go(func() error {
		q, err := c.USDT.Fetch(fctx, symbolOr(c.USDTSymbol, DefaultUSDTSymbol))
		if err != nil {
			return &ComputationError{Stage: "fetch " + c.USDT.Source().String(), Cause: err}
		}
		l.usdt = q
		return nil
	})
	g.Go(func() error {
		q, err := c.JPY.Fetch(fctx, symbolOr(c.JPYSymbol, DefaultJPYSymbol))
		if err != nil {
			return &ComputationError{Stage: "fetch " + c.JPY.Source().String(), Cause: err}
		}
		l.jpy = q
		return nil
	})
	g.Go(func() error {
		sym := symbolOr(c.JPYSymbol, DefaultJPYSymbol)
		var (
			q   provider.Quote
			o   cache.Outcome
			err error
		)
		if of, ok := c.Pivot.(cache.OutcomeFetcher); ok {
			q, o, err = of.FetchWithOutcome(fctx, sym)
		} else {
			q, err = c.Pivot.Fetch(fctx, sym)
		}
		if err != nil {
			return &ComputationError{Stage: "fetch " + c.Pivot.Source().String(), Cause: err}
		}
		l.pivot, l.pivotStale = q, o == cache.OutcomeStale
		return nil
	})

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- g.Wait()
	}()
	select {
	case err := <-done:
		if err != nil {
			return legs{}, err
		}
		return l, nil
	case <-ctx.Done():
		return legs{}, &ComputationError{Stage: "fetch", Cause: ctx.Err()}
	}
}

func symbolOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func (c *Calculator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Calculator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
