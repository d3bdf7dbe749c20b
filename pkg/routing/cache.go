package routing

import (
	"sync"
	"time"
)

// DeploymentEntry is one cached deployment lookup.
type DeploymentEntry struct {
	// DeploymentID is the backend deployment serving the model. It is
	// empty when discovery found no running deployment.
	DeploymentID string

	// ExpiresAt is when the entry stops being served.
	ExpiresAt time.Time

	// CreatedAt is when discovery produced the entry.
	CreatedAt time.Time

	// Hits counts lookups served from this entry.
	Hits int64
}

// DeploymentCache maps vendor model names to deployment IDs with a TTL.
// Expired entries are removed by a background sweep until Close is called.
type DeploymentCache struct {
	// entries maps vendor model names to deployments
	entries map[string]*DeploymentEntry

	// ttl is the time-to-live for entries
	ttl time.Duration

	// now is the clock, replaceable in tests
	now func() time.Time

	// mu protects entries
	mu sync.RWMutex

	// stopCh stops the sweep goroutine
	stopCh chan struct{}

	// stopOnce guards stopCh
	stopOnce sync.Once
}

// NewDeploymentCache creates a cache whose entries live for ttl.
func NewDeploymentCache(ttl time.Duration) *DeploymentCache {
	c := &DeploymentCache{
		entries: make(map[string]*DeploymentEntry),
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	interval := ttl / 2
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	go c.sweep(interval)
	return c
}

// Get returns the deployment ID cached for model, if still fresh. A fresh
// negative entry returns "" and true.
func (c *DeploymentCache) Get(model string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[model]
	if !ok || !c.now().Before(e.ExpiresAt) {
		return "", false
	}
	e.Hits++
	return e.DeploymentID, true
}

// SetAll replaces the cache with one discovery result.
func (c *DeploymentCache) SetAll(deployments map[string]string) {
	now := c.now()
	entries := make(map[string]*DeploymentEntry, len(deployments))
	for model, id := range deployments {
		entries[model] = &DeploymentEntry{
			DeploymentID: id,
			ExpiresAt:    now.Add(c.ttl),
			CreatedAt:    now,
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// SetMissing records that model has no running deployment. The entry lives
// for the cache TTL or until the next SetAll.
func (c *DeploymentCache) SetMissing(model string) {
	now := c.now()
	c.mu.Lock()
	c.entries[model] = &DeploymentEntry{ExpiresAt: now.Add(c.ttl), CreatedAt: now}
	c.mu.Unlock()
}

// Size returns the number of entries, expired ones included.
func (c *DeploymentCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *DeploymentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*DeploymentEntry)
}

// Close stops the background sweep.
func (c *DeploymentCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *DeploymentCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *DeploymentCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for model, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, model)
		}
	}
}
