// Package cache memoizes fetch-and-parse outcomes for the lifetime of one run.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"BriefScanner/internal/domain"
)

// Loader fetches and parses one identifier.
type Loader func(ctx context.Context) (domain.Item, error)

type entry struct {
	item domain.Item
	ok   bool
}

// Stats counts cache activity.
type Stats struct {
	Hits      int
	Loads     int
	Negatives int
}

// ItemCache maps identifiers to items or to a negative marker.
// The mutex covers only map access; loads for different identifiers run in
// parallel, and concurrent loads for the same identifier are collapsed.
type ItemCache struct {
	mu      sync.Mutex
	entries map[int64]entry
	stats   Stats
	group   singleflight.Group
}

// New returns an empty cache. Create one per run.
func New() *ItemCache {
	return &ItemCache{entries: make(map[int64]entry)}
}

// GetOrFetch returns the stored outcome for id, invoking load only when id has
// never been resolved in this run. Failed loads are stored as negatives,
// except when the caller's context was cancelled.
func (c *ItemCache) GetOrFetch(ctx context.Context, id int64, load Loader) (domain.Item, bool) {
	if e, found := c.lookup(id); found {
		return e.item, e.ok
	}

	v, _, _ := c.group.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		if e, found := c.lookup(id); found {
			return e, nil
		}

		item, err := load(ctx)
		e := entry{item: item, ok: err == nil}
		if !e.ok {
			e.item = domain.Item{}
		}
		if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
			return e, nil
		}

		c.mu.Lock()
		c.entries[id] = e
		c.stats.Loads++
		if !e.ok {
			c.stats.Negatives++
		}
		c.mu.Unlock()
		return e, nil
	})

	e := v.(entry)
	return e.item, e.ok
}

func (c *ItemCache) lookup(id int64) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[id]
	if found {
		c.stats.Hits++
	}
	return e, found
}

// Len is the number of resolved identifiers, positive or negative.
func (c *ItemCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *ItemCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
