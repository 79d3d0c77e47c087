// Package fetch provides a shared HTTP client with bounded retries for
// outbound GET requests. All network-calling components receive one
// configured *Client instead of constructing their own.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultTimeout is the per-request socket timeout.
const DefaultTimeout = 10 * time.Second

// DefaultMaxAttempts bounds retries for transient failures.
const DefaultMaxAttempts = 3

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Client wraps an *http.Client with retry-on-transient-failure behavior.
type Client struct {
	httpClient  *http.Client
	log         *slog.Logger
	maxAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMaxAttempts overrides the retry bound.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// NewClient creates a retrying HTTP client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		log:         slog.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRetryBackoff creates the exponential backoff policy used between
// retry attempts.
func newRetryBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.Multiplier = 2
	return bo
}

// retryable reports whether a status code indicates a transient failure.
// 5xx and 429 are retried; other 4xx are not.
func retryable(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// get issues a GET request, retrying transport errors, 5xx, and 429 up
// to maxAttempts times. The caller owns the response body on success.
func (c *Client) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	bo := newRetryBackoff()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("request failed", "attempt", attempt, "url", url, "error", err)
		} else if retryable(resp.StatusCode) {
			resp.Body.Close()
			lastErr = &StatusError{URL: url, Code: resp.StatusCode}
			c.log.Warn("request failed", "attempt", attempt, "url", url, "status", resp.StatusCode)
		} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, &StatusError{URL: url, Code: resp.StatusCode}
		} else {
			return resp, nil
		}

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, lastErr)
}

// GetJSON fetches a URL and decodes the JSON response body into v.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	resp, err := c.get(ctx, url, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// GetBody fetches a URL and returns the open response body.
func (c *Client) GetBody(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download fetches a URL and writes the body to dest.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dest, err)
	}
	return nil
}

// IsNotFoundStatus reports whether err is a StatusError with code 404.
func IsNotFoundStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
