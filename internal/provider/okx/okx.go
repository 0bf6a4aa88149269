package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
)

const baseURL = "https://www.okx.com"

// codeInstrumentNotFound is the OKX application code for unknown instruments.
const codeInstrumentNotFound = "51001"

// Client fetches spot tickers from the OKX v5 market API.
type Client struct {
	baseURL    string
	httpClient httpx.Doer
	header     http.Header
}

// Option is a configuration option for the OKX client.
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

func (c *Client) Source() provider.Source { return provider.OKX }

type envelope struct {
	Code string   `json:"code"`
	Msg  string   `json:"msg"`
	Data []ticker `json:"data"`
}

type ticker struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	AskPx   string `json:"askPx"`
	BidPx   string `json:"bidPx"`
	Open24h string `json:"open24h"`
	Vol24h  string `json:"vol24h"`
	TS      string `json:"ts"`
}

// Fetch retrieves the ticker for symbol, e.g. BTCJPY -> instId=BTC-JPY.
func (c *Client) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	sym := provider.Canonical(symbol)
	src := c.Source()

	query := url.Values{}
	query.Set("instId", provider.FormatSymbol(sym, "-"))
	u := fmt.Sprintf("%s/api/v5/market/ticker?%s", c.baseURL, query.Encode())
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

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("reading body: %w", err))
	}

	// OKX reports application errors in the envelope, sometimes on a 4xx.
	var env envelope
	decodeErr := json.Unmarshal(b, &env)
	if decodeErr == nil && env.Code == codeInstrumentNotFound {
		return provider.Quote{}, &provider.InvalidSymbolError{Source: src, Symbol: sym}
	}
	if res.StatusCode != http.StatusOK {
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("request failed: %s", string(b)))
	}
	if decodeErr != nil {
		return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "body", Err: decodeErr}
	}
	if env.Code != "0" {
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("api error %s: %s", env.Code, env.Msg))
	}
	if len(env.Data) == 0 {
		return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "data", Err: provider.ErrMissingField}
	}
	return env.Data[0].quote(src, sym)
}

func (t ticker) quote(src provider.Source, sym string) (provider.Quote, error) {
	bid, err := provider.ParseDecimal(src, "bidPx", t.BidPx)
	if err != nil {
		return provider.Quote{}, err
	}
	ask, err := provider.ParseDecimal(src, "askPx", t.AskPx)
	if err != nil {
		return provider.Quote{}, err
	}
	last, err := provider.ParseDecimal(src, "last", t.Last)
	if err != nil {
		return provider.Quote{}, err
	}
	open, err := provider.ParseOptionalDecimal(src, "open24h", t.Open24h)
	if err != nil {
		return provider.Quote{}, err
	}
	vol, err := provider.ParseOptionalDecimal(src, "vol24h", t.Vol24h)
	if err != nil {
		return provider.Quote{}, err
	}

	observed := time.Now().UTC()
	if ms, err := strconv.ParseInt(t.TS, 10, 64); err == nil && ms > 0 {
		observed = time.UnixMilli(ms).UTC()
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
