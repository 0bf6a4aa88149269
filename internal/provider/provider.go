package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the normalized shape returned by all providers.
// Prices are kept as decimals in the source's quote currency.
type Quote struct {
	Symbol           string          `json:"symbol"`
	Bid              decimal.Decimal `json:"bid"`
	Ask              decimal.Decimal `json:"ask"`
	Last             decimal.Decimal `json:"last"`
	ChangePercent24h decimal.Decimal `json:"change_percent_24h"`
	Volume24h        decimal.Decimal `json:"volume_24h"`
	ObservedAt       time.Time       `json:"observed_at"`
	Source           Source          `json:"source"`
}

// Validate checks that no price is negative.
func (q Quote) Validate() error {
	for _, p := range []struct {
		field string
		v     decimal.Decimal
	}{{"bid", q.Bid}, {"ask", q.Ask}, {"last", q.Last}} {
		if p.v.IsNegative() {
			return &QuoteParseError{Source: q.Source, Field: p.field, Err: fmt.Errorf("negative value %s", p.v)}
		}
	}
	return nil
}

// Provider fetches one instrument from one upstream.
//
//go:generate mockgen -package=providermock -destination=providermock/provider.go -source=provider.go Provider
type Provider interface {
	Source() Source
	Fetch(ctx context.Context, symbol string) (Quote, error)
}

// ErrUnknownSource is returned by Registry.Get for sources that were not registered.
var ErrUnknownSource = errors.New("provider: source not registered")

// Registry maps sources to their configured provider.
type Registry map[Source]Provider

// Register stores p under its own source.
func (r Registry) Register(p Provider) { r[p.Source()] = p }

func (r Registry) Get(s Source) (Provider, error) {
	p, ok := r[s]
	if !ok || p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, s)
	}
	return p, nil
}
