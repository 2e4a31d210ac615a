// Package fetch provides the HTTP client used to retrieve page templates,
// fragments and scripts.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fragnav/fragnav/internal/errors"
)

// Config holds configuration for the template fetcher.
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	UserAgent           string
	MaxBodySize         int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		UserAgent:           "fragnav/1.0",
		MaxBodySize:         5 * 1024 * 1024,
	}
}

// Client fetches templates relative to a site base URL.
type Client struct {
	client    *http.Client
	base      *url.URL
	userAgent string
	maxBody   int64
}

// New creates a fetcher anchored at the given base URL.
func New(baseURL string, cfg Config) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewParseError(baseURL, "base_url", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		base:      base,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodySize,
	}, nil
}

// Resolve resolves a template reference against the base URL.
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", errors.NewParseError(ref, "resolve", err)
	}
	return c.base.ResolveReference(parsed).String(), nil
}

// GetText fetches a template reference and returns its body as text.
// Non-2xx responses are reported as errors.
func (c *Client) GetText(ctx context.Context, ref string) (string, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, target)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if httpErr := errors.FromHTTPStatus(resp.StatusCode, target); httpErr != nil {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return "", httpErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return "", errors.NewNetworkError(target, "body_read", err)
	}
	return string(body), nil
}

// Warm fetches a reference and discards the body. It is used for prefetch
// warm-ups and for awaiting external script load attempts, where only the
// load-or-error signal matters.
func (c *Client) Warm(ctx context.Context, ref string) error {
	target, err := c.Resolve(ref)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
	if httpErr := errors.FromHTTPStatus(resp.StatusCode, target); httpErr != nil {
		return httpErr
	}
	return nil
}

func (c *Client) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.NewParseError(target, "request_creation", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,text/css,application/javascript;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(target, "request", err)
	}
	return resp, nil
}

// Close closes idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
