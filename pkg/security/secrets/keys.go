package secrets

import (
	"context"
)

// VendorKeys maps vendor kinds to the secret holding their API key, e.g.
// "anthropic" to ANTHROPIC_API_KEY.
type VendorKeys struct {
	manager *Manager
	names   map[string]string
}

// NewVendorKeys creates a key lookup. names maps vendor kind to secret name.
func NewVendorKeys(m *Manager, names map[string]string) *VendorKeys {
	copied := make(map[string]string, len(names))
	for k, v := range names {
		copied[k] = v
	}
	return &VendorKeys{manager: m, names: copied}
}

// APIKey returns the vendor's API key and whether one is configured.
func (k *VendorKeys) APIKey(ctx context.Context, vendor string) (string, bool) {
	name, ok := k.names[vendor]
	if !ok || name == "" {
		return "", false
	}
	return k.manager.Lookup(ctx, name)
}
