// Package cache stores classification results keyed by normalized page
// identity, with TTL expiry and a periodic sweep. It is the only state
// shared across toggle/refresh invocations, so all accesses are guarded:
// two concurrent pipeline runs for the same page must not both miss and
// double-write without serialization.
package cache

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cogniclear/cogniclear/descriptor"
)

// DefaultTTL is how long an entry stays valid. The sweep interval equals
// the TTL.
const DefaultTTL = 30 * time.Minute

// Entry is one cached classification result. Only fully merged sequences
// are ever stored — never partial, in-progress results.
type Entry struct {
	Key       string                      `json:"key"`
	Items     []descriptor.ClassifiedItem `json:"items"`
	Timestamp time.Time                   `json:"timestamp"`
}

// Normalize reduces a page URL to its cache key: origin + path, with query
// and fragment stripped. Unparsable input is used verbatim so odd URLs
// still cache consistently.
func Normalize(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return pageURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Cache is a TTL key-value store of classification results.
type Cache struct {
	mu     sync.Mutex
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithStore sets the backing store. Default: in-memory.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		store:  newMemoryStore(),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Valid reports whether an entry is still within its TTL.
func (c *Cache) Valid(e Entry) bool {
	return c.now().Sub(e.Timestamp) < c.ttl
}

// Get returns a copy of the valid entry for a page URL, or false. Stale
// entries are treated as absent (the sweep removes them eventually).
func (c *Cache) Get(pageURL string) ([]descriptor.ClassifiedItem, bool) {
	key := Normalize(pageURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok, err := c.store.get(key)
	if err != nil {
		c.logger.Warn("cache: get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok || !c.Valid(e) {
		return nil, false
	}

	// Consumers get a read-only copy; the store owns the entry.
	items := make([]descriptor.ClassifiedItem, len(e.Items))
	copy(items, e.Items)
	return items, true
}

// Put stores items under the page's normalized key with the current
// timestamp, overwriting any prior entry. Last write wins.
func (c *Cache) Put(pageURL string, items []descriptor.ClassifiedItem) {
	key := Normalize(pageURL)
	stored := make([]descriptor.ClassifiedItem, len(items))
	copy(stored, items)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.put(Entry{Key: key, Items: stored, Timestamp: c.now()}); err != nil {
		c.logger.Warn("cache: put failed", "key", key, "error", err)
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.clear(); err != nil {
		c.logger.Warn("cache: clear failed", "error", err)
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.store.expire(cutoff)
	if err != nil {
		c.logger.Warn("cache: sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		c.logger.Info("cache: swept expired entries", "removed", n)
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.store.size()
	if err != nil {
		c.logger.Warn("cache: size failed", "error", err)
		return 0
	}
	return n
}

// Sweeper runs Sweep on a fixed interval equal to the TTL until ctx is
// cancelled. Run it in its own goroutine.
func (c *Cache) Sweeper(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
