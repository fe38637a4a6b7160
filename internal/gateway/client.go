// Package gateway performs JSON HTTP calls against the SIWF backend gateway
// on behalf of the SDK and normalizes failures into a single error shape.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/siwf/internal/metrics"
	siwferr "github.com/mrz1836/siwf/pkg/errors"
)

// DefaultBaseURL is the local gateway used when nothing is configured.
const DefaultBaseURL = "http://localhost:3013"

const (
	// RequestIDHeader carries a per-call correlation ID.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// FetchFunc is the transport callback handed to the SDK.
type FetchFunc func(ctx context.Context, method, path string, body any) (*http.Response, error)

// Logger is the interface for gateway logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Options configures a Client.
type Options struct {
	// BaseURL is either absolute (http://host:port/prefix) or a relative
	// proxy prefix such as /api, which then requires Origin.
	BaseURL string

	// Origin resolves a relative BaseURL, e.g. http://localhost:3000.
	Origin string

	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Retry         RetryConfig

	HTTPClient *http.Client
	Logger     Logger
	Metrics    *metrics.Metrics
}

// Client is the gateway transport.
type Client struct {
	base     *url.URL
	relative string
	http     *http.Client
	limiter  *RateLimiter
	retry    RetryConfig
	logger   Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a gateway client.
func New(opts Options) (*Client, error) {
	c := &Client{
		http:    opts.HTTPClient,
		limiter: NewRateLimiter(opts.RatePerSecond, opts.Burst),
		retry:   opts.Retry,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Global
	}
	if c.retry.MaxAttempts < 1 {
		c.retry = DefaultRetryConfig()
	}

	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}

	if isAbsolute(base) {
		u, err := parseAbsolute(base)
		if err != nil {
			return nil, err
		}
		c.base = u
		return c, nil
	}

	if opts.Origin == "" {
		return nil, siwferr.WithSuggestion(
			siwferr.WithDetails(
				siwferr.WithMessage(siwferr.ErrConfigInvalid, "relative gateway base URL needs an origin"),
				map[string]string{"base_url": base},
			),
			"set gateway.origin or use an absolute gateway.base_url",
		)
	}
	u, err := parseAbsolute(opts.Origin)
	if err != nil {
		return nil, err
	}
	c.base = u
	c.relative = strings.TrimRight(base, "/")
	return c, nil
}

func isAbsolute(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func parseAbsolute(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrConfigInvalid, "invalid gateway URL"),
			map[string]string{"url": s},
		)
	}
	return u, nil
}

// BaseURL returns the configured base.
func (c *Client) BaseURL() string {
	if c.relative != "" {
		return c.relative
	}
	return c.base.String()
}

// Func returns the client as an SDK transport callback.
func (c *Client) Func() FetchFunc {
	return c.Fetch
}

// URL builds the request URL for path. An absolute base is resolved like a
// browser resolves a link; a relative base is prefixed verbatim.
func (c *Client) URL(path string) (string, error) {
	if c.relative != "" {
		path = c.relative + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", siwferr.WithCause(
			siwferr.WithDetails(siwferr.WithMessage(siwferr.ErrInvalidInput, "invalid gateway path"),
				map[string]string{"path": path}),
			err,
		)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// Fetch performs one gateway call. On success the live response is returned
// and the caller must close its body. Non-success statuses become *Error.
func (c *Client) Fetch(ctx context.Context, method, path string, body any) (*http.Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, siwferr.WithDetails(
			siwferr.WithMessage(siwferr.ErrInvalidInput, "gateway supports GET and POST only"),
			map[string]string{"method": method},
		)
	}

	target, err := c.URL(path)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if method == http.MethodPost && body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, siwferr.WithCause(
				siwferr.WithMessage(siwferr.ErrInvalidInput, "gateway request body is not JSON-serializable"),
				err,
			)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.retry.MaxAttempts
	}
	requestID := uuid.NewString()

	c.logger.Debug("gateway %s %s (request %s)", method, target, requestID)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		resp, retryAfter, err := c.do(ctx, method, target, requestID, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == attempts-1 || !retryable(err) {
			break
		}

		delay := backoff(attempt, c.retry.BaseDelay, c.retry.MaxDelay)
		if retryAfter > delay {
			delay = retryAfter
		}
		c.metrics.RecordGatewayRetry()
		c.logger.Debug("gateway %s %s retrying in %s: %v", method, target, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.Error("gateway %s %s failed: %v", method, target, lastErr)
	return nil, lastErr
}

// do performs a single attempt. It returns the Retry-After hint on failure.
func (c *Client) do(ctx context.Context, method, target, requestID string, payload []byte) (*http.Response, time.Duration, error) {
	if err := c.limiter.Wait(ctx, c.base.Host); err != nil {
		return nil, 0, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordGatewayCall(time.Since(start), err)
		return nil, 0, fmt.Errorf("gateway %s %s: %w", method, target, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.RecordGatewayCall(time.Since(start), nil)
		return resp, 0, nil
	}

	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	gerr := parseError(resp.StatusCode, raw)
	c.metrics.RecordGatewayCall(time.Since(start), gerr)

	return nil, parseRetryAfter(resp.Header.Get("Retry-After"), c.now()), gerr
}
