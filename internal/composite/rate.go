package composite

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

// ErrZeroQuote is returned instead of dividing by a zero price.
var ErrZeroQuote = errors.New("composite: division by zero quote")

// ComputationError wraps any failure of one computation. Stage names the
// step that failed; Cause keeps the adapter or store error reachable.
type ComputationError struct {
	Stage string
	Cause error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("composite rate failed at %s: %v", e.Stage, e.Cause)
}

func (e *ComputationError) Unwrap() error { return e.Cause }

const pricePlaces = 2

var hundred = decimal.NewFromInt(100)

// Rate is one USDT→JPY derivation. Quotes are kept as fetched, before scaling.
type Rate struct {
	Bid           decimal.Decimal `json:"bid"`
	Ask           decimal.Decimal `json:"ask"`
	Last          decimal.Decimal `json:"last"`
	SpreadPercent decimal.Decimal `json:"spread_percent"`
	SecondaryLast decimal.Decimal `json:"secondary_last"`

	Power        decimal.Decimal `json:"power"`
	PowerOutcome power.Outcome   `json:"power_outcome"`

	USDT  provider.Quote `json:"usdt"`
	JPY   provider.Quote `json:"jpy"`
	Pivot provider.Quote `json:"pivot"`

	// PivotStale is set when the scraped quote came from an expired cache entry.
	PivotStale bool `json:"pivot_stale"`

	CalculatedAt time.Time `json:"calculated_at"`
}

// RoundHalfUp rounds to places digits, ties away from zero.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// Prices is a rounded bid/ask/last triple.
type Prices struct {
	Bid  decimal.Decimal
	Ask  decimal.Decimal
	Last decimal.Decimal
}

// Cross divides the JPY leg by the USDT leg after scaling both by p.
// Bid and ask are crossed: bid uses the USDT ask, ask uses the USDT bid.
func Cross(usdt, jpy provider.Quote, p decimal.Decimal) (Prices, error) {
	bid, err := scaledRatio(jpy.Bid, usdt.Ask, p)
	if err != nil {
		return Prices{}, fmt.Errorf("bid: %w", err)
	}
	ask, err := scaledRatio(jpy.Ask, usdt.Bid, p)
	if err != nil {
		return Prices{}, fmt.Errorf("ask: %w", err)
	}
	last, err := scaledRatio(jpy.Last, usdt.Last, p)
	if err != nil {
		return Prices{}, fmt.Errorf("last: %w", err)
	}
	return Prices{Bid: bid, Ask: ask, Last: last}, nil
}

// SpreadPercent is (ask-bid)/bid*100 rounded to two places. Quotients are
// rounded once, from the exact remainder (DivRound is half away from zero).
func SpreadPercent(bid, ask decimal.Decimal) (decimal.Decimal, error) {
	if bid.IsZero() {
		return decimal.Decimal{}, ErrZeroQuote
	}
	return ask.Sub(bid).Mul(hundred).DivRound(bid, pricePlaces), nil
}

func scaledRatio(num, den, p decimal.Decimal) (decimal.Decimal, error) {
	den = den.Mul(p)
	if den.IsZero() {
		return decimal.Decimal{}, ErrZeroQuote
	}
	return num.Mul(p).DivRound(den, pricePlaces), nil
}
