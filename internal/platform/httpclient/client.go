// Package httpclient is the rate-limited, retrying HTTP client shared by the
// network-backed source adapters.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds a single response read.
const maxBodyBytes = 64 << 20

// Options configures a Client. Zero values take defaults.
type Options struct {
	Timeout         time.Duration // per attempt, default 30s
	RequestsPerSec  float64       // default 5
	Burst           int           // default 5
	MaxRetries      uint64        // default 3
	MaxRetryElapsed time.Duration // default 30s
	UserAgent       string
	Headers         map[string]string
	Transport       http.RoundTripper
}

// Client wraps http.Client with a token-bucket limiter and exponential backoff.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	maxElapsed time.Duration
	userAgent  string
	headers    map[string]string
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "marketdata-hub/1.0"
	}
	return &Client{
		http:       &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		maxRetries: opts.MaxRetries,
		maxElapsed: opts.MaxRetryElapsed,
		userAgent:  opts.UserAgent,
		headers:    opts.Headers,
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Get fetches url and returns the body. 5xx, 429 and transport errors are
// retried with exponential backoff; other statuses fail immediately.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			se := &StatusError{URL: url, StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return se
			}
			return backoff.Permanent(se)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = c.maxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}
