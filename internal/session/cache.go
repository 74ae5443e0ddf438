// Package session remembers, per user, the identifier list of the most recent
// result set, so a later "clicked result #i" event resolves to an identifier
// without re-running the query.
package session

import "sync"

const numShards = 16

// Cache is a sharded per-user cache with single-entry-per-user overwrite
// semantics. Sharding keeps unrelated users from serializing on one lock.
type Cache struct {
	shards    [numShards]shard
	maxUsers  int // per shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[int64][]string
}

// NewCache creates a cache bounded to roughly maxUsers entries.
func NewCache(maxUsers int) *Cache {
	if maxUsers <= 0 {
		maxUsers = 4096
	}
	c := &Cache{maxUsers: (maxUsers + numShards - 1) / numShards}
	for i := range c.shards {
		c.shards[i].entries = make(map[int64][]string)
	}
	return c
}

// Record stores the ordered identifier list for userID, overwriting any prior
// entry. The list is copied, so callers may reuse their slice.
func (c *Cache) Record(userID int64, ids []string) {
	stored := make([]string, len(ids))
	copy(stored, ids)
	s := c.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[userID]; !exists && len(s.entries) >= c.maxUsers {
		// Bounded: drop an arbitrary entry. Entries are one recent list per
		// user, so losing one only costs a stale click resolution.
		for k := range s.entries {
			delete(s.entries, k)
			break
		}
	}
	s.entries[userID] = stored
}

// Resolve returns the identifier at position i of the user's last recorded
// list. A missing user or out-of-bounds index returns ok=false; the UI may
// send stale indices after a list changed, and that is not an error.
func (c *Cache) Resolve(userID int64, i int) (string, bool) {
	s := c.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids, ok := s.entries[userID]
	if !ok || i < 0 || i >= len(ids) {
		return "", false
	}
	return ids[i], true
}

// Len returns the number of users with a cached list.
func (c *Cache) Len() int {
	total := 0
	for i := range c.shards {
		c.shards[i].mu.RLock()
		total += len(c.shards[i].entries)
		c.shards[i].mu.RUnlock()
	}
	return total
}

func (c *Cache) shard(userID int64) *shard {
	h := uint64(userID)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	return &c.shards[h%numShards]
}
