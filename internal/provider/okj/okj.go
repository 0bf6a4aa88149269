package okj

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
)

const baseURL = "https://www.okcoin.jp"

// Client fetches spot tickers from the OKJ (OKCoin Japan) v3 API.
type Client struct {
	baseURL    string
	httpClient httpx.Doer
	header     http.Header
}

// Option is a configuration option for the OKJ client.
type Option func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(hc httpx.Doer) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{"Accept": []string{"application/json"}},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Source() provider.Source { return provider.OKJ }

type ticker struct {
	InstrumentID  string `json:"instrument_id"`
	BestBid       string `json:"best_bid"`
	BestAsk       string `json:"best_ask"`
	Last          string `json:"last"`
	Open24h       string `json:"open_24h"`
	BaseVolume24h string `json:"base_volume_24h"`
	Timestamp     string `json:"timestamp"`
}

// Fetch retrieves the ticker for symbol, e.g. BTCJPY -> /instruments/BTC_JPY/ticker.
func (c *Client) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	sym := provider.Canonical(symbol)
	src := c.Source()

	u := fmt.Sprintf("%s/api/spot/v3/instruments/%s/ticker", c.baseURL, url.PathEscape(provider.FormatSymbol(sym, "_")))
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

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// the instrument is part of the path, so an unknown one is a 404
		return provider.Quote{}, &provider.InvalidSymbolError{Source: src, Symbol: sym}
	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("request failed: %s", string(b)))
	}

	var t ticker
	if err := json.NewDecoder(res.Body).Decode(&t); err != nil {
		return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "body", Err: err}
	}
	return t.quote(src, sym)
}

func (t ticker) quote(src provider.Source, sym string) (provider.Quote, error) {
	bid, err := provider.ParseDecimal(src, "best_bid", t.BestBid)
	if err != nil {
		return provider.Quote{}, err
	}
	ask, err := provider.ParseDecimal(src, "best_ask", t.BestAsk)
	if err != nil {
		return provider.Quote{}, err
	}
	last, err := provider.ParseDecimal(src, "last", t.Last)
	if err != nil {
		return provider.Quote{}, err
	}
	open, err := provider.ParseOptionalDecimal(src, "open_24h", t.Open24h)
	if err != nil {
		return provider.Quote{}, err
	}
	vol, err := provider.ParseOptionalDecimal(src, "base_volume_24h", t.BaseVolume24h)
	if err != nil {
		return provider.Quote{}, err
	}

	observed := time.Now().UTC()
	if t.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, t.Timestamp)
		if err != nil {
			return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "timestamp", Err: err}
		}
		observed = ts.UTC()
	}
	q := provider.Quote{
		Symbol:           sym,
		Bid:              bid,
		Ask:              ask,
		Last:             last,
		ChangePercent24h: provider.ChangePercent(last, open),
		Volume24h:        vol,
		ObservedAt:       observed,
		Source:           src,
	}
	if err := q.Validate(); err != nil {
		return provider.Quote{}, err
	}
	return q, nil
}

var _ provider.Provider = (*Client)(nil)
