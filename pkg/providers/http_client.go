package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	// Name identifies the upstream in errors and logs
	Name string

	// Timeout bounds a whole non-streaming request (0 = no client timeout)
	Timeout time.Duration

	// MaxRetries is the number of retries for transient failures
	MaxRetries int

	// MaxIdleConns is the size of the connection pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host connection pool size
	MaxIdleConnsPerHost int

	// IdleConnTimeout closes idle pooled connections
	IdleConnTimeout time.Duration
}

// ClientStats reports request counters.
type ClientStats struct {
	TotalRequests  int64
	FailedRequests int64
}

// HTTPClient sends vendor requests with connection pooling and retries
// transient errors with exponential backoff.
type HTTPClient struct {
	config ClientConfig

	// client has no overall timeout so streaming bodies are not cut off;
	// non-streaming requests apply config.Timeout through the context
	client *http.Client

	total  atomic.Int64
	failed atomic.Int64
}

// NewHTTPClient creates a pooled client.
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Stats returns request counters.
func (c *HTTPClient) Stats() ClientStats {
	return ClientStats{
		TotalRequests:  c.total.Load(),
		FailedRequests: c.failed.Load(),
	}
}

// Send performs req and returns a 2xx response whose body the caller must
// close. Network errors and 5xx responses are retried; 4xx responses are
// returned as typed errors without retry. Send does not apply the client
// timeout, so it is suitable for streaming.
func (c *HTTPClient) Send(ctx context.Context, target string, req *VendorRequest) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying upstream request",
				"target", target,
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, &CancellationError{Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		resp, err := c.do(ctx, req)
		c.total.Add(1)
		if err != nil {
			c.failed.Add(1)
			if ctx.Err() != nil {
				return nil, &CancellationError{Cause: ctx.Err()}
			}
			lastErr = &UpstreamTransportError{Target: target, Message: "request failed", Cause: err}
			slog.Warn("upstream request failed, will retry",
				"target", target,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		c.failed.Add(1)
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &UpstreamTransportError{
				Target:     target,
				StatusCode: resp.StatusCode,
				Message:    "authentication failed",
				Cause:      &AuthError{Target: target, Message: string(errorBody)},
			}

		case http.StatusTooManyRequests:
			return nil, &UpstreamTransportError{
				Target:     target,
				StatusCode: resp.StatusCode,
				Message:    "rate limited",
				Cause: &RateLimitError{
					Target:     target,
					RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
					Message:    string(errorBody),
				},
			}
		}

		lastErr = &UpstreamTransportError{
			Target:     target,
			StatusCode: resp.StatusCode,
			Message:    string(errorBody),
		}
		if resp.StatusCode < 500 {
			return nil, lastErr
		}

		slog.Warn("upstream returned error status, will retry",
			"target", target,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

// SendAndRead performs a non-streaming request bounded by the client timeout
// and returns the response body.
func (c *HTTPClient) SendAndRead(ctx context.Context, target string, req *VendorRequest) ([]byte, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.Send(ctx, target, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &CancellationError{Cause: ctx.Err()}
		}
		return nil, &UpstreamTransportError{Target: target, Message: "failed to read response", Cause: err}
	}
	return body, nil
}

// Do performs a single attempt without retries or status mapping. Capability
// probes use it to inspect the raw response.
func (c *HTTPClient) Do(ctx context.Context, req *VendorRequest) (*http.Response, error) {
	resp, err := c.do(ctx, req)
	c.total.Add(1)
	if err != nil {
		c.failed.Add(1)
	}
	return resp, err
}

func (c *HTTPClient) do(ctx context.Context, req *VendorRequest) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(httpReq)
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
