package cli

import (
	"errors"
	"fmt"

	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/routing"
	"mercator-hq/conduit/pkg/streaming"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitNoRoute   = 3
	ExitCancelled = 130
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// WrapConfigError creates a ConfigError that keeps err as its cause.
func WrapConfigError(err error) *ConfigError {
	return &ConfigError{
		Message: err.Error(),
		Err:     err,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var vendorCfgErr *providers.ConfigurationError
	var routesErr *streaming.AllRoutesFailedError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &vendorCfgErr):
		return ExitConfig
	case providers.IsCancellation(err):
		return ExitCancelled
	case errors.Is(err, streaming.ErrNoRoute),
		errors.Is(err, routing.ErrUnknownModel),
		errors.As(err, &routesErr):
		return ExitNoRoute
	default:
		return ExitFailure
	}
}
