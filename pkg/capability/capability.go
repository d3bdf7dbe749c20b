// Package capability detects and caches whether a model's delivery routes
// support wire-level streaming.
//
// Each model key moves from unknown to a cached Capability after a bounded
// probe of the backend and, when configured, the vendor-direct endpoint.
// Cached values are immutable snapshots: a refresh stores a new value and
// never mutates one a caller may hold. Probe failures resolve to
// "unsupported" and are recorded on the snapshot instead of being returned.
package capability

import (
	"time"
)

// Capability is an immutable snapshot of one model's streaming support.
type Capability struct {
	// Model is the model key.
	Model string `json:"model"`

	// BackendSupportsStream is true when the backend streamed on probe.
	BackendSupportsStream bool `json:"backend_supports_stream"`

	// DirectSupportsStream is true when the vendor-direct endpoint streamed on probe.
	DirectSupportsStream bool `json:"direct_supports_stream"`

	// ProbedAt is when the probe finished.
	ProbedAt time.Time `json:"probed_at"`

	// TTL is how long the snapshot stays fresh.
	TTL time.Duration `json:"ttl"`

	// ProbeError describes why a target resolved to unsupported, if it did.
	ProbeError string `json:"probe_error,omitempty"`
}

// ExpiresAt returns when the snapshot becomes stale.
func (c *Capability) ExpiresAt() time.Time {
	return c.ProbedAt.Add(c.TTL)
}

// Fresh reports whether the snapshot is still valid at now.
func (c *Capability) Fresh(now time.Time) bool {
	return now.Before(c.ExpiresAt())
}
