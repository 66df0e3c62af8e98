// Package readcache is the tag-addressed cache of read results.
//
// Every entry is stored under a result key together with the tags naming its
// dependency scope. Invalidating a tag evicts every entry carrying it. A load that was
// already running when one of its tags got invalidated is returned to the callers
// that joined it before the invalidation but never stored, and callers arriving after
// the invalidation start a fresh load, so a read racing a write cannot resurrect the
// pre-write result.
package readcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/bassista/go_gallery/internal/invalidation"
	"github.com/bassista/go_gallery/internal/logger"
)

type entry struct {
	value any
	tags  invalidation.Set
}

// loadTimeout bounds a shared load, which no longer follows any single caller's context.
const loadTimeout = 10 * time.Second

type load struct {
	key   string
	tags  invalidation.Set
	stale bool
}

// Cache is safe for concurrent use. Stored values are shared between callers and
// must be treated as read-only.
type Cache struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, entry]
	byTag    map[invalidation.Tag]map[string]struct{}
	inflight map[*load]struct{}
	group    singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most size entries.
func New(size int) (*Cache, error) {
	c := &Cache{
		byTag:    make(map[invalidation.Tag]map[string]struct{}),
		inflight: make(map[*load]struct{}),
	}
	entries, err := lru.NewWithEvict[string, entry](size, c.unindex)
	if err != nil {
		return nil, fmt.Errorf("create read cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Fetch returns the cached value of key or loads, tags and stores it.
// Concurrent misses on key share one load. The load runs detached from the
// caller that started it; each caller stops waiting when its own ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key string, tags invalidation.Set, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.get(key); ok {
		if typed, ok := v.(T); ok {
			c.hits.Add(1)
			return typed, nil
		}
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		l := c.begin(key, tags)
		value, err := fn(lctx)
		c.finish(l, value, err)
		return value, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) begin(key string, tags invalidation.Set) *load {
	l := &load{key: key, tags: tags}
	c.mu.Lock()
	c.inflight[l] = struct{}{}
	c.mu.Unlock()
	return l
}

func (c *Cache) finish(l *load, value any, err error) {
	key := l.key
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, l)
	if err != nil {
		return
	}
	if l.stale {
		logger.WithComponent("readcache").Debugf("not storing %s: invalidated while loading", key)
		return
	}
	c.entries.Add(key, entry{value: value, tags: l.tags})
	for _, t := range l.tags {
		keys, ok := c.byTag[t]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[t] = keys
		}
		keys[key] = struct{}{}
	}
}

// unindex runs on eviction with c.mu held.
func (c *Cache) unindex(key string, e entry) {
	for _, t := range e.tags {
		keys := c.byTag[t]
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byTag, t)
		}
	}
}

func (c *Cache) Name() string { return "readcache" }

// Invalidate evicts every entry carrying one of tags and marks overlapping loads stale.
func (c *Cache) Invalidate(_ context.Context, tags invalidation.Set) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for _, t := range tags {
		for key := range c.byTag[t] {
			if c.entries.Remove(key) {
				evicted++
			}
		}
	}
	for l := range c.inflight {
		for _, t := range tags {
			if l.tags.Contains(t) {
				c.markStale(l)
				break
			}
		}
	}
	logger.WithComponent("readcache").Debugf("invalidated %s: %d entries evicted", tags, evicted)
	return nil
}

// InvalidateAll empties the cache and marks every running load stale.
func (c *Cache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
	for l := range c.inflight {
		c.markStale(l)
	}
	return nil
}

// markStale keeps l out of the cache and detaches its key from the running call,
// so later misses load again instead of joining the pre-write load. Runs with c.mu held.
func (c *Cache) markStale(l *load) {
	if l.stale {
		return
	}
	l.stale = true
	c.group.Forget(l.key)
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Has reports whether key is stored, without touching recency.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

var _ invalidation.Invalidator = (*Cache)(nil)
