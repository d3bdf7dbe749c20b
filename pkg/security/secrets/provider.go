// Package secrets resolves credentials such as vendor API keys and the
// backend client secret from the environment or from mounted secret files.
//
// Sources are consulted in order; the first one holding a value wins and
// the value is cached for a TTL. A missing secret is reported with
// ErrNotFound so callers can treat "no credential" as a routing signal
// rather than a failure.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no source holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// SecretProvider retrieves secrets from one source.
type SecretProvider interface {
	// GetSecret retrieves a secret by name. A secret the source does not
	// hold yields an error wrapping ErrNotFound.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the source name ("env", "file").
	Provider() string
}

// RefreshableProvider can drop what it has cached and re-read its source.
type RefreshableProvider interface {
	SecretProvider

	// Refresh forgets cached values.
	Refresh(ctx context.Context) error
}
