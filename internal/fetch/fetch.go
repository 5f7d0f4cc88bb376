package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = 1 * time.Second

	userAgent = "book-recom-web/1.0"
)

// Options controls a single GetJSON call. Zero values fall back to the
// defaults above.
type Options struct {
	Headers    map[string]string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

// Client is a retrying JSON-over-HTTP GET client shared by every source
// adapter. It keeps no per-request state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	base       Options
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// NewClientWithDefaults returns a client whose zero-valued call options fall
// back to base instead of the package defaults.
func NewClientWithDefaults(base Options) *Client {
	return &Client{httpClient: &http.Client{}, base: base}
}

// GetJSON performs an HTTP GET against url and decodes the response body
// into out. Each attempt is bounded by Options.Timeout; a non-2xx status or
// a decode failure counts as a failed attempt. Between attempts the client
// waits RetryDelay * 2^attempt. After Retries failed attempts the last
// error is returned and out must be considered garbage.
func (c *Client) GetJSON(ctx context.Context, url string, out any, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.base.Timeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = c.base.Retries
	}
	if retries <= 0 {
		retries = defaultRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = c.base.RetryDelay
	}
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		err := c.doAttempt(ctx, url, out, opts.Headers, timeout)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < retries-1 {
			backoff := retryDelay * (1 << attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) doAttempt(ctx context.Context, url string, out any, headers map[string]string, timeout time.Duration) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
