// Package httpx provides a retrying HTTP client shared by the Lead database
// client and the external annotation services.
package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Default retry parameters. The initial interval doubles on each attempt.
const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 500 * time.Millisecond
)

// StatusError is returned by Do when the server keeps answering with a
// retryable status (429 or any 5xx) until the retry budget is exhausted.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// Client wraps an http.Client with exponential-backoff retries for
// transport failures and retryable status codes. Requests with other
// status codes (including 404) are returned to the caller unchanged so
// "not found" stays a meaningful answer rather than an error.
type Client struct {
	hc              *http.Client
	maxRetries      uint64
	initialInterval time.Duration
	logger          *zap.Logger
}

// New creates a retrying client around hc. If hc is nil a client with a
// 30 second timeout is used.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		hc:              hc,
		maxRetries:      DefaultMaxRetries,
		initialInterval: DefaultInitialInterval,
		logger:          zap.NewNop(),
	}
}

// SetLogger sets the logger used for retry warnings.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// SetRetries overrides the retry count and initial backoff interval.
func (c *Client) SetRetries(max uint64, initial time.Duration) {
	c.maxRetries = max
	c.initialInterval = initial
}

// Do executes req, retrying on connection failures, timeouts, 429 and 5xx
// responses. The request body must be replayable (GetBody is used to rewind
// between attempts, which http.NewRequest sets up for byte readers).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	op := func() (*http.Response, error) {
		attempt := req.Clone(req.Context())
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("rewind request body: %w", err))
			}
			attempt.Body = body
		}

		resp, err := c.hc.Do(attempt)
		if err != nil {
			c.logger.Warn("request failed, will retry",
				zap.String("url", req.URL.String()),
				zap.Error(err))
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			c.logger.Warn("retryable status, will retry",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode))
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.Multiplier = 2

	return backoff.RetryWithData(op,
		backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), req.Context()))
}
