// Package catalog keeps a per-tenant, time-bounded snapshot of the active
// item catalog in process memory.
//
// Entries are never patched: a snapshot lives for the TTL and is then
// replaced as a whole on the next read. A failed fetch never evicts the
// snapshot it was meant to replace.
package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"label-resolver/internal/common"
	"label-resolver/internal/resolve/model"
)

// DefaultTTL is how long a tenant snapshot is served before it is refetched.
const DefaultTTL = 120 * time.Second

// Reader lists the active items of exactly one tenant, in any order.
type Reader interface {
	ListActiveItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type entry struct {
	items   []model.CatalogItem
	expires time.Time
}

type Cache struct {
	reader Reader
	ttl    time.Duration
	clock  Clock
	log    zerolog.Logger

	mu      sync.RWMutex
	entries map[string]entry
	gens    map[string]uint64 // bumped by Invalidate; a fetch from an older gen is not stored
	group   singleflight.Group
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewCache(reader Reader, logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		reader:  reader,
		ttl:     DefaultTTL,
		clock:   SystemClock,
		log:     logger.With().Str("component", "catalog").Logger(),
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetItems returns the tenant's snapshot, fetching it when missing or expired.
// The returned slice is shared between readers and must not be modified.
func (c *Cache) GetItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error) {
	if items, ok := c.live(tenantID); ok {
		return items, nil
	}
	return c.Refresh(ctx, tenantID)
}

func (c *Cache) live(tenantID string) ([]model.CatalogItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[tenantID]
	if !ok || !c.clock.Now().Before(e.expires) {
		return nil, false
	}
	return e.items, true
}

// Refresh fetches the tenant catalog unconditionally and stores it.
// Concurrent refreshes of one tenant share a single fetch.
func (c *Cache) Refresh(ctx context.Context, tenantID string) ([]model.CatalogItem, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, common.InvalidInput("tenant id is required")
	}
	ch := c.group.DoChan(tenantID, func() (any, error) {
		c.mu.RLock()
		gen := c.gens[tenantID]
		c.mu.RUnlock()

		// shared by every waiter, so one caller's cancellation must not fail the rest
		items, err := c.reader.ListActiveItems(context.WithoutCancel(ctx), tenantID)
		if err != nil {
			return nil, err
		}
		items = prepare(items)

		c.mu.Lock()
		stale := c.gens[tenantID] != gen
		if !stale {
			c.entries[tenantID] = entry{items: items, expires: c.clock.Now().Add(c.ttl)}
		}
		c.mu.Unlock()
		if stale {
			c.log.Debug().Str("tenant", tenantID).Msg("catalog invalidated during fetch, not stored")
		} else {
			c.log.Debug().Str("tenant", tenantID).Int("items", len(items)).Msg("catalog refreshed")
		}
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, common.CatalogUnavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, common.CatalogUnavailable(res.Err)
		}
		return res.Val.([]model.CatalogItem), nil
	}
}

// Preload warms the tenant entry in the background. Failures are logged only.
func (c *Cache) Preload(ctx context.Context, tenantID string) {
	if _, ok := c.live(tenantID); ok {
		return
	}
	go func() {
		if _, err := c.Refresh(context.WithoutCancel(ctx), tenantID); err != nil {
			c.log.Warn().Err(err).Str("tenant", tenantID).Msg("catalog preload failed")
		}
	}()
}

// Invalidate drops the tenant entry so the next read refetches it. A fetch
// already in flight still answers its own waiters but is not stored, and
// later readers start a new one.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.gens[tenantID]++
	c.mu.Unlock()
	c.group.Forget(tenantID)
}

// prepare drops unprintable items, clears a preferred method that is not
// enabled and orders by name so iteration is deterministic.
func prepare(items []model.CatalogItem) []model.CatalogItem {
	out := make([]model.CatalogItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" || len(it.EnabledMethods) == 0 {
			continue
		}
		if it.PreferredMethod != "" && !it.HasMethod(it.PreferredMethod) {
			it.PreferredMethod = ""
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := strings.ToUpper(out[i].Name), strings.ToUpper(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
