package binance

import (
	"net/http"

	"ratefeed/internal/httpx"
	"ratefeed/internal/provider"
)

const baseURL = "https://api.binance.com"

// Client is a client for the Binance spot market data API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient httpx.Doer
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the Binance client.
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
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a new Binance client.
func New(options ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Source() provider.Source { return provider.Binance }

var _ provider.Provider = (*Client)(nil)
