package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

const (
	// DefaultCapacity is the maximum number of cached contexts
	DefaultCapacity = 100
	// DefaultTTL is how long a cached context stays valid
	DefaultTTL = 5 * time.Minute
	// TrailingWindow is the number of characters before the cursor that take
	// part in the cache key
	TrailingWindow = 512
)

// Query identifies one context request
type Query struct {
	Content            string // full content of the active file
	CursorPosition     int    // byte offset into Content
	FilePath           string
	ProjectFingerprint string

	// Task and Instruction shape the assembled context; requests that differ
	// only here get separate entries
	Task        string
	Instruction string
}

// Key is the composite cache key derived from a Query
type Key struct {
	FilePath    string
	Cursor      int
	Trailing    uint64
	Fingerprint string
	Variant     uint64
}

// KeyOf derives the cache key for q. Content after the cursor and further than
// TrailingWindow characters before it does not affect the key.
func KeyOf(q Query) Key {
	cur := clampCursor(q.CursorPosition, len(q.Content))
	return Key{
		FilePath:    q.FilePath,
		Cursor:      cur,
		Trailing:    xxh3.HashString(trailing(q.Content[:cur], TrailingWindow)),
		Fingerprint: q.ProjectFingerprint,
		Variant:     xxh3.HashString(q.Task + "\x00" + q.Instruction),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d#%016x/%s/%016x", k.FilePath, k.Cursor, k.Trailing, k.Fingerprint, k.Variant)
}

// BuildFunc assembles a fresh context for a query on a cache miss
type BuildFunc func(ctx context.Context, q Query) (*types.Context, error)

// Config holds cache tuning
type Config struct {
	Capacity int
	TTL      time.Duration
}

// Stats counts cache activity since construction or the last Clear
type Stats struct {
	Hits          int64 // table hits, including fast path hits
	FastHits      int64
	Misses        int64
	Builds        int64
	Evictions     int64
	Invalidations int64 // entries removed by InvalidateFile
	Entries       int
}

type entry struct {
	key         Key
	context     *types.Context
	files       map[string]struct{}
	insertedAt  time.Time
	lastAccess  time.Time
	accessCount int
}

// Cache memoizes assembled contexts per cursor position. It is safe for
// concurrent use; concurrent misses on the same key share one build.
type Cache struct {
	build  BuildFunc
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	last    *entry // most recently served entry
	epoch   uint64 // bumped by every invalidation
	stats   Stats
}

// New creates a cache that calls build on misses
func New(build BuildFunc, cfg Config, logger *slog.Logger) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		build:   build,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[Key]*entry),
	}
}

// GetOrBuild returns the cached context for q or builds, caches and returns a
// new one. Returned contexts are copies and may be modified by the caller.
func (c *Cache) GetOrBuild(ctx context.Context, q Query) (*types.Context, error) {
	key := KeyOf(q)

	c.mu.Lock()
	if res, ok := c.lookupLocked(key); ok {
		c.mu.Unlock()
		return res, nil
	}
	c.stats.Misses++
	epoch := c.epoch
	c.mu.Unlock()

	// a build begun before an invalidation is never shared with later callers
	v, err, shared := c.group.Do(key.String()+"@"+strconv.FormatUint(epoch, 10), func() (any, error) {
		c.mu.Lock()
		c.stats.Builds++
		c.mu.Unlock()

		built, err := c.build(ctx, q)
		if err != nil {
			return nil, err
		}
		c.store(key, built, epoch)
		return built, nil
	})
	if err != nil {
		return nil, fmt.Errorf("build context for %s: %w", q.FilePath, err)
	}
	if shared {
		c.logger.Debug("query cache build shared", "key", key.String())
	}
	return v.(*types.Context).Clone(), nil
}

// lookupLocked serves fresh entries, checking the fast path first
func (c *Cache) lookupLocked(key Key) (*types.Context, bool) {
	now := c.now()

	if e := c.last; e != nil && e.key == key {
		if c.fresh(e, now) {
			e.accessCount++
			e.lastAccess = now
			c.stats.Hits++
			c.stats.FastHits++
			return e.context.Clone(), true
		}
		c.last = nil
	}

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.fresh(e, now) {
		delete(c.entries, key)
		c.logger.Debug("query cache entry expired", "file", key.FilePath, "cursor", key.Cursor)
		return nil, false
	}
	e.accessCount++
	e.lastAccess = now
	c.last = e
	c.stats.Hits++
	return e.context.Clone(), true
}

func (c *Cache) fresh(e *entry, now time.Time) bool {
	return now.Sub(e.insertedAt) < c.cfg.TTL
}

// store inserts a built context unless an invalidation happened after the
// build started
func (c *Cache) store(key Key, built *types.Context, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		c.logger.Debug("query cache skipped stale build", "file", key.FilePath)
		return
	}

	now := c.now()
	files := make(map[string]struct{})
	for _, f := range built.SourceFiles() {
		files[f] = struct{}{}
	}
	e := &entry{
		key:         key,
		context:     built.Clone(),
		files:       files,
		insertedAt:  now,
		lastAccess:  now,
		accessCount: 1,
	}
	c.entries[key] = e
	c.last = e

	for len(c.entries) > c.cfg.Capacity {
		if !c.evictLocked(e) {
			break
		}
	}
}

// evictLocked removes the entry with the lowest access count, breaking ties by
// the oldest last access. keep is never chosen.
func (c *Cache) evictLocked(keep *entry) bool {
	var victim *entry
	for _, e := range c.entries {
		if e == keep {
			continue
		}
		if victim == nil ||
			e.accessCount < victim.accessCount ||
			(e.accessCount == victim.accessCount && e.lastAccess.Before(victim.lastAccess)) {
			victim = e
		}
	}
	if victim == nil {
		return false
	}
	delete(c.entries, victim.key)
	if c.last == victim {
		c.last = nil
	}
	c.stats.Evictions++
	c.logger.Debug("query cache evicted entry",
		"file", victim.key.FilePath, "cursor", victim.key.Cursor, "access_count", victim.accessCount)
	return true
}

// InvalidateFile removes every entry whose context references path and
// returns how many were removed. Builds in flight are not cached.
func (c *Cache) InvalidateFile(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	removed := 0
	for k, e := range c.entries {
		if _, ok := e.files[path]; ok {
			delete(c.entries, k)
			removed++
		}
	}
	if c.last != nil {
		if _, ok := c.last.files[path]; ok {
			c.last = nil
		}
	}
	c.stats.Invalidations += int64(removed)
	if removed > 0 {
		c.logger.Debug("query cache invalidated file", "file", path, "removed", removed)
	}
	return removed
}

// Clear drops every entry and resets the statistics
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries = make(map[Key]*entry)
	c.last = nil
	c.stats = Stats{}
}

// Len returns the number of cached entries
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
	s.Entries = len(c.entries)
	return s
}

func clampCursor(cursor, n int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > n {
		return n
	}
	return cursor
}

// trailing returns the last n runes of s
func trailing(s string, n int) string {
	end := len(s)
	for i := 0; i < n && end > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return s[end:]
}
