package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"depositrates/internal/ratelimit"
)

const (
	// DefaultTimeout bounds every single page request
	DefaultTimeout = 20 * time.Second

	// DefaultUserAgent mimics a desktop browser; several bank sites reject
	// obvious bot clients
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/124.0.0.0 Safari/537.36"

	// Default retry configuration
	defaultRetryCount       = 0
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
)

// ClientConfig holds the tunables of a page Client.
type ClientConfig struct {
	Timeout          time.Duration
	UserAgent        string
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:          DefaultTimeout,
		UserAgent:        DefaultUserAgent,
		RetryCount:       defaultRetryCount,
		RetryWaitTime:    defaultRetryWaitTime,
		RetryMaxWaitTime: defaultRetryMaxWaitTime,
	}
}

// Client downloads provider rate pages.
type Client struct {
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewHTTPClient creates a page client with a fixed per-request timeout, retry
// logic with exponential backoff and per-host rate limiting
func NewHTTPClient(cfg ClientConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}

	c := &Client{limiter: limiter, logger: logger}
	c.client = resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(cfg.RetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(c.retryHook)

	return c
}

// Get fetches pageURL and returns the response body.
func (c *Client) Get(ctx context.Context, pageURL string) ([]byte, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, NewClientError(0, fmt.Sprintf("invalid url %q: %v", pageURL, err))
	}

	if err := c.limiter.Wait(ctx, u.Host); err != nil {
		return nil, ClassifyTransportError(err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return nil, ClassifyHTTPError(resp.StatusCode())
	}

	return resp.Bytes(), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.client.Close()
}

// retryCondition determines whether a request should be retried based on the response and error
func retryCondition(r *resty.Response, err error) bool {
	// Retry on network errors
	if err != nil {
		return true
	}

	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == 429, code == 408:
		return true
	default:
		return false
	}
}

// retryHook logs retry attempts for observability
func (c *Client) retryHook(r *resty.Response, err error) {
	if err != nil {
		c.logger.Debug("retrying request due to error",
			zap.String("url", r.Request.URL),
			zap.Int("attempt", r.Request.Attempt),
			zap.Error(err))
		return
	}

	c.logger.Debug("retrying request due to status code",
		zap.String("url", r.Request.URL),
		zap.Int("attempt", r.Request.Attempt),
		zap.Int("status_code", r.StatusCode()))
}
