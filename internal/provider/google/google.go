// Package google scrapes the currency converter card of a Google search
// result page. The page has no bid/ask, so both are set to the scraped price.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
)

const (
	baseURL   = "https://www.google.com"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// priceSelectors are tried in order; the first match wins.
var priceSelectors = []string{
	"div.BNeawe.iBp4i.AP7Wnd",
	"div.BNeawe.s3v9rd.AP7Wnd",
}

var numberRe = regexp.MustCompile(`[\d,.]+`)

var errPriceNotFound = errors.New("price element not found")

type Client struct {
	baseURL    string
	httpClient httpx.Doer
	now        func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(hc httpx.Doer) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock overrides the fetch timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(options ...Option) *Client {
	c := &Client{baseURL: baseURL, httpClient: http.DefaultClient, now: time.Now}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Source() provider.Source { return provider.Google }

// Fetch searches "<BASE>/<QUOTE> price" and extracts the displayed rate.
func (c *Client) Fetch(ctx context.Context, symbol string) (provider.Quote, error) {
	sym := provider.Canonical(symbol)
	src := c.Source()

	query := url.Values{}
	query.Set("q", provider.FormatSymbol(sym, "/")+" price")
	u := fmt.Sprintf("%s/search?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return provider.Quote{}, provider.Unavailable(src, sym, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, provider.Unavailable(src, sym, 0, fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return provider.Quote{}, provider.Unavailable(src, sym, res.StatusCode, fmt.Errorf("unexpected status code: %d", res.StatusCode))
	}

	price, err := extractPrice(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return provider.Quote{}, &provider.QuoteParseError{Source: src, Field: "price", Err: err}
	}

	return provider.Quote{
		Symbol:     sym,
		Bid:        price,
		Ask:        price,
		Last:       price,
		ObservedAt: c.now().UTC(),
		Source:     src,
	}, nil
}

func extractPrice(r io.Reader) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse html: %w", err)
	}
	var text string
	for _, sel := range priceSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			text = strings.TrimSpace(s.Text())
			break
		}
	}
	if text == "" {
		return decimal.Zero, errPriceNotFound
	}
	m := numberRe.FindString(text)
	if m == "" {
		return decimal.Zero, fmt.Errorf("no number in %q", text)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", m, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative price %s", d)
	}
	return d, nil
}

var _ provider.Provider = (*Client)(nil)
