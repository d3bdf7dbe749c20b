package routing

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/conduit/pkg/providers"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrUnknownModel is returned when a model name is not configured.
	ErrUnknownModel = errors.New("unknown model")

	// ErrNoDeployment is returned when the backend has no running
	// deployment for a model.
	ErrNoDeployment = errors.New("no backend deployment")
)

// UnknownModelError is returned when the requested model is not in the
// model table.
type UnknownModelError struct {
	// Model is the requested model name.
	Model string

	// AvailableModels lists the configured model names.
	AvailableModels []string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	if len(e.AvailableModels) == 0 {
		return fmt.Sprintf("model %q is not configured", e.Model)
	}
	return fmt.Sprintf("model %q is not configured (available models: %s)",
		e.Model, strings.Join(e.AvailableModels, ", "))
}

// Is implements error matching for errors.Is().
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

// Unwrap exposes the provider-level ModelNotFoundError.
func (e *UnknownModelError) Unwrap() error {
	return &providers.ModelNotFoundError{Model: e.Model}
}

// NoDeploymentError is returned when discovery finds no running deployment
// for a backend model.
type NoDeploymentError struct {
	// Model is the configured model name.
	Model string

	// VendorModel is the name searched for in the deployment list.
	VendorModel string

	// Cause is the discovery failure, if discovery itself failed.
	Cause error
}

// Error implements the error interface.
func (e *NoDeploymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no backend deployment for model %q: %v", e.Model, e.Cause)
	}
	return fmt.Sprintf("no running backend deployment for model %q (searched for %q)", e.Model, e.VendorModel)
}

// Is implements error matching for errors.Is().
func (e *NoDeploymentError) Is(target error) bool {
	return target == ErrNoDeployment
}

// Unwrap returns the discovery failure.
func (e *NoDeploymentError) Unwrap() error {
	return e.Cause
}
