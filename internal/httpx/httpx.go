package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Doer is what every upstream adapter needs from an HTTP client.
//
//go:generate mockgen -package=httpxmock -destination=httpxmock/doer.go -source=httpx.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// Option tweaks the transport built by New.
type Option func(*http.Transport) error

// WithProxy routes all requests through the given proxy URL.
// An empty string keeps the environment proxy settings.
func WithProxy(raw string) Option {
	return func(t *http.Transport) error {
		if raw == "" {
			return nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		t.Proxy = http.ProxyURL(u)
		return nil
	}
}

func New(timeout time.Duration, opts ...Option) (*Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(transport); err != nil {
			return nil, err
		}
	}
	return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "ratefeed/1.0"}, nil
}

// Do sends req using its own context, filling in the default
// User-Agent and headers when the request does not set them.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}
