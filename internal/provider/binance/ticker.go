package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ratefeed/internal/provider"
)

// codeInvalidSymbol is returned by Binance for unknown trading pairs.
const codeInvalidSymbol = -1121

type ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	Volume             string `json:"volume"`
	CloseTime          int64  `json:"closeTime"`
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Fetch retrieves the 24h rolling ticker for symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	sym := provider.Canonical(symbol)
	src := c.Source()

	query := url.Values{}
	query.Set("symbol", sym)
	u := fmt.Sprintf("%s/api/v3/ticker/24hr?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, provider.Unavailable(src, sym, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, provider.Unavailable(src, sym, 0, fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
	case res.StatusCode >= 400 && res.StatusCode < 500:
		var ae apiError
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		if json.Unmarshal(b, &ae) == nil && ae.Code == codeInvalidSymbol {
			return provider.Quote{}, &provider.InvalidSymbolError{Source: src, Symbol: sym}
		}
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("api error: %s", string(b)))
	default:
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("unexpected status code: %d", res.StatusCode))
	}

	var t ticker24h
	if err := json.NewDecoder(res.Body).Decode(&t); err != nil {
		return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "body", Err: err}
	}
	return t.quote(src, sym)
}

func (t ticker24h) quote(src provider.Source, sym string) (provider.Quote, error) {
	bid, err := provider.ParseDecimal(src, "bidPrice", t.BidPrice)
	if err != nil {
		return provider.Quote{}, err
	}
	ask, err := provider.ParseDecimal(src, "askPrice", t.AskPrice)
	if err != nil {
		return provider.Quote{}, err
	}
	last, err := provider.ParseDecimal(src, "lastPrice", t.LastPrice)
	if err != nil {
		return provider.Quote{}, err
	}
	change, err := provider.ParseOptionalDecimal(src, "priceChangePercent", t.PriceChangePercent)
	if err != nil {
		return provider.Quote{}, err
	}
	vol, err := provider.ParseOptionalDecimal(src, "volume", t.Volume)
	if err != nil {
		return provider.Quote{}, err
	}

	observed := time.Now().UTC()
	if t.CloseTime > 0 {
		observed = time.UnixMilli(t.CloseTime).UTC()
	}
	q := provider.Quote{
		Symbol:           sym,
		Bid:              bid,
		Ask:              ask,
		Last:             last,
		ChangePercent24h: change,
		Volume24h:        vol,
		ObservedAt:       observed,
		Source:           src,
	}
	if err := q.Validate(); err != nil {
		return provider.Quote{}, err
	}
	return q, nil
}
