// Package sessioncache memoizes session lookups for a few seconds so that a
// burst of requests carrying the same credentials costs one validation.
//
// Concurrent callers for the same key share a single in-flight lookup. A
// failed lookup is never cached. The table is bounded; when it grows past
// capacity the oldest inserted keys are dropped first.
package sessioncache

import (
	"container/list"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pathfinder/internal/models"
)

const (
	// DefaultTTL is how long a resolved session is reused
	DefaultTTL = 3000 * time.Millisecond
	// DefaultCapacity bounds the number of distinct keys held at once
	DefaultCapacity = 500

	anonKeyPrefix = "anon:"
)

// LookupFunc resolves the session behind a set of request headers.
// A nil session with a nil error means "no session".
type LookupFunc func(ctx context.Context, headers http.Header) (*models.Session, error)

// call is a single in-flight lookup. done is closed after session/err are set.
type call struct {
	done    chan struct{}
	session *models.Session
	err     error
}

type entry struct {
	key       string
	session   *models.Session
	pending   *call
	expiresAt time.Time
	elem      *list.Element
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Coalesced uint64 `json:"coalesced"`
	Failures  uint64 `json:"failures"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

// Cache is a TTL + capacity bounded session memo. The zero value is not usable;
// construct with New.
type Cache struct {
	lookup   LookupFunc
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // insertion order, front is oldest
	stats   Stats
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity overrides DefaultCapacity
func WithCapacity(capacity int) Option {
	return func(c *Cache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache in front of lookup
func New(lookup LookupFunc, opts ...Option) *Cache {
	c := &Cache{
		lookup:   lookup,
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		now:      time.Now,
		entries:  make(map[string]*entry),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// KeyFromHeaders derives the cache key for a request. The raw cookie header is
// used when present; otherwise requests are grouped by forwarded-for address.
func KeyFromHeaders(headers http.Header) string {
	if cookie := headers.Get("Cookie"); cookie != "" {
		return cookie
	}
	forwarded := headers.Get("X-Forwarded-For")
	if forwarded == "" {
		forwarded = "unknown"
	}
	return anonKeyPrefix + forwarded
}

// Get returns the session for headers, consulting the lookup at most once per
// key per TTL window. Errors from the lookup are returned as-is.
func (c *Cache) Get(ctx context.Context, headers http.Header) (*models.Session, error) {
	key := KeyFromHeaders(headers)

	c.mu.Lock()
	now := c.now()
	c.purgeExpiredLocked(now)

	if e, ok := c.entries[key]; ok {
		if e.pending != nil {
			// Joined regardless of expiry: there is never more than one lookup per key.
			c.stats.Coalesced++
			pending := e.pending
			c.mu.Unlock()
			return wait(ctx, pending)
		}
		if now.Before(e.expiresAt) {
			c.stats.Hits++
			session := e.session
			c.mu.Unlock()
			return session, nil
		}
		c.removeLocked(e)
	}

	c.stats.Misses++
	pending := &call{done: make(chan struct{})}
	e := &entry{
		key:       key,
		pending:   pending,
		expiresAt: now.Add(c.ttl),
	}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
	c.enforceCapacityLocked()
	c.mu.Unlock()

	go c.resolve(context.WithoutCancel(ctx), e, pending, headers.Clone())

	return wait(ctx, pending)
}

// Invalidate drops any entry for headers so the next Get performs a fresh lookup
func (c *Cache) Invalidate(headers http.Header) {
	key := KeyFromHeaders(headers)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}
}

// Len returns the number of keys currently held, pending ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

func (c *Cache) resolve(ctx context.Context, e *entry, pending *call, headers http.Header) {
	session, err := c.runLookup(ctx, headers)

	c.mu.Lock()
	// The entry may have been evicted or invalidated while the lookup ran;
	// waiters still get the result but the table is left alone.
	current, ok := c.entries[e.key]
	stillOurs := ok && current == e
	if err != nil {
		c.stats.Failures++
		if stillOurs {
			c.removeLocked(e)
		}
	} else if stillOurs {
		e.session = session
		e.pending = nil
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Unlock()

	pending.session = session
	pending.err = err
	close(pending.done)
}

func (c *Cache) runLookup(ctx context.Context, headers http.Header) (session *models.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session = nil
			err = fmt.Errorf("session lookup panicked: %v", r)
		}
	}()
	return c.lookup(ctx, headers)
}

func wait(ctx context.Context, pending *call) (*models.Session, error) {
	select {
	case <-pending.done:
		return pending.session, pending.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// purgeExpiredLocked drops resolved entries past their expiry. Pending entries
// are kept until their lookup finishes.
func (c *Cache) purgeExpiredLocked(now time.Time) {
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if e.pending == nil && !now.Before(e.expiresAt) {
			c.removeLocked(e)
		}
		el = next
	}
}

func (c *Cache) enforceCapacityLocked() {
	for len(c.entries) > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			return
		}
		c.removeLocked(oldest.Value.(*entry))
		c.stats.Evictions++
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}
