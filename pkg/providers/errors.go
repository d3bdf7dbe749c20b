package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBackendNotConfigured is returned when a backend route is needed but
	// no backend base URL or credentials are configured.
	ErrBackendNotConfigured = errors.New("inference backend not configured")

	// ErrNoAPIKey is returned when a direct route is needed but the vendor's
	// API key is not available.
	ErrNoAPIKey = errors.New("vendor API key not available")
)

// ConfigurationError represents a missing or invalid mandatory per-vendor field.
// It is the only error translators return.
type ConfigurationError struct {
	// Vendor is the vendor kind or provider name with invalid configuration
	Vendor string

	// Field is the configuration field that is missing or invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vendor %q configuration error for field %q: %s", e.Vendor, e.Field, e.Message)
}

// UpstreamTransportError represents a network failure, timeout or non-2xx
// response from the backend or a vendor endpoint.
type UpstreamTransportError struct {
	// Target names the upstream ("backend" or a vendor name)
	Target string

	// StatusCode is the HTTP status code (0 for network failures)
	StatusCode int

	// Message is the upstream error body or a description
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *UpstreamTransportError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("upstream %q error (status %d): %s", e.Target, e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("upstream %q error: %s: %v", e.Target, e.Message, e.Cause)
	default:
		return fmt.Sprintf("upstream %q error: %s", e.Target, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamTransportError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient (network or 5xx).
func (e *UpstreamTransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// AuthError represents an authentication failure (HTTP 401 or 403).
type AuthError struct {
	// Target names the upstream that rejected the credentials
	Target string

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("upstream %q authentication failed: %s", e.Target, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
type RateLimitError struct {
	// Target names the upstream that rate limited the request
	Target string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the upstream
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("upstream %q rate limit exceeded (retry after %s): %s", e.Target, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("upstream %q rate limit exceeded: %s", e.Target, e.Message)
}

// MalformedPayloadError records structurally invalid or empty upstream content.
// It is recovered locally and never surfaced to callers of the core.
type MalformedPayloadError struct {
	// Source names where the payload came from
	Source string

	// Raw is a truncated copy of the offending payload
	Raw string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload from %q: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// ProbeFailure describes why a capability probe resolved to unsupported.
type ProbeFailure struct {
	// Model is the probed model key
	Model string

	// Target is "backend" or "direct"
	Target string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProbeFailure) Error() string {
	return fmt.Sprintf("%s streaming probe for model %q failed: %v", e.Target, e.Model, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProbeFailure) Unwrap() error {
	return e.Cause
}

// CancellationError signals caller-initiated early termination. It is a normal
// outcome, distinct from failure.
type CancellationError struct {
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation cancelled: %v", e.Cause)
}

// Unwrap returns the underlying context error.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// ModelNotFoundError represents an unknown model key.
type ModelNotFoundError struct {
	Model string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q is not configured", e.Model)
}

// AsCancellation converts a context error into a CancellationError.
// It returns nil when err is not a cancellation.
func AsCancellation(err error) error {
	if err == nil {
		return nil
	}
	var ce *CancellationError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CancellationError{Cause: err}
	}
	return nil
}

// IsCancellation reports whether err represents caller cancellation.
func IsCancellation(err error) bool {
	return AsCancellation(err) != nil
}

// ErrorClass maps err to a short label for metrics: "success", "cancelled",
// "auth", "rate_limit", "config", "malformed", "transport" or "error".
func ErrorClass(err error) string {
	var (
		authErr  *AuthError
		rateErr  *RateLimitError
		cfgErr   *ConfigurationError
		badErr   *MalformedPayloadError
		transErr *UpstreamTransportError
	)
	switch {
	case err == nil:
		return "success"
	case IsCancellation(err):
		return "cancelled"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rateErr):
		return "rate_limit"
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &badErr):
		return "malformed"
	case errors.As(err, &transErr):
		return "transport"
	default:
		return "error"
	}
}
