package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheKey identifies one engine computation.
type CacheKey struct {
	Operation   string
	MasterStart time.Time
	MasterEnd   time.Time
	Recurrence  RecurrenceInfo
	RangeStart  time.Time
	RangeEnd    time.Time
	Limit       int
}

// hash folds every field into a fixed size key. Times are written in
// RFC 3339 with their offset so the same instant in two zones stays
// distinct; expansion results carry the zone of the master start.
func (k CacheKey) hash() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	writeTime := func(t time.Time) {
		write(t.Format(time.RFC3339Nano) + " " + t.Location().String())
	}

	write(k.Operation)
	writeTime(k.MasterStart)
	writeTime(k.MasterEnd)
	writeTime(k.RangeStart)
	writeTime(k.RangeEnd)
	write(strconv.Itoa(k.Limit))

	write(k.Recurrence.RRULE)
	for _, r := range k.Recurrence.EXRULE {
		write("x" + r)
	}
	for _, t := range k.Recurrence.RDATE {
		write("r")
		writeTime(t)
	}
	for _, t := range k.Recurrence.EXDATE {
		write("e")
		writeTime(t)
	}
	if k.Recurrence.RecurrenceID != nil {
		write("id")
		writeTime(*k.Recurrence.RecurrenceID)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecurrenceCache caches range checks and expansions. Entries expire after
// the TTL; above MaxEntries the least recently used ones are evicted.
// Results are bool for range checks and []TimeOccurrence for expansions.
type RecurrenceCache struct {
	lru *expirable.LRU[string, any]

	hits, misses atomic.Uint64
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL        time.Duration // How long entries stay valid
	MaxEntries int           // Maximum number of entries before eviction
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

// NewRecurrenceCache creates a cache. Expired entries are swept in the
// background by the LRU itself.
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	return &RecurrenceCache{
		lru: expirable.NewLRU[string, any](config.MaxEntries, nil, config.TTL),
	}
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(key CacheKey) (any, bool) {
	result, ok := c.lru.Get(key.hash())
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return result, true
}

// Set stores a result in the cache
func (c *RecurrenceCache) Set(key CacheKey, result any) {
	c.lru.Add(key.hash(), result)
}

// Close clears the cache. It is safe to call more than once.
func (c *RecurrenceCache) Close() {
	c.lru.Purge()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	total := c.lru.Len()
	active := len(c.lru.Keys())
	return CacheStats{
		TotalEntries:   total,
		ExpiredEntries: max(0, total-active),
		ActiveEntries:  active,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
	}
}

// CacheStats provides information about cache usage
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           uint64
	Misses         uint64
}
