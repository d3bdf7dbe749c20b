package streaming

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrNoRoute means neither the backend nor a direct endpoint can serve the model.
	ErrNoRoute = errors.New("no delivery route available")
)

// AllRoutesFailedError is returned once every applicable route has failed.
type AllRoutesFailedError struct {
	// Model is the requested model key.
	Model string

	// Attempted lists the routes tried, in order.
	Attempted []string

	// LastRationale explains why the last route was chosen.
	LastRationale string

	// LastError is the last route's failure.
	LastError error
}

// Error implements the error interface.
func (e *AllRoutesFailedError) Error() string {
	return fmt.Sprintf("all routes failed for model %q (attempted: %s); last route (%s): %v",
		e.Model, strings.Join(e.Attempted, ", "), e.LastRationale, e.LastError)
}

// Unwrap returns the last route's error.
func (e *AllRoutesFailedError) Unwrap() error {
	return e.LastError
}
