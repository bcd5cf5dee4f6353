// Package shardmap provides a generic sharded concurrent map.
//
// Each shard carries its own RWMutex, so operations on independent keys
// rarely contend. There is no eviction policy: the caller owns placement
// decisions and removal.
package shardmap

import (
	"hash/fnv"
	"sync"
)

// Default configuration constants.
const (
	// ShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	ShardCount = 16

	// shardMask is used for fast shard selection (ShardCount - 1).
	shardMask = ShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by Map for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Map is a thread-safe, sharded keyed store.
//
// Features:
//   - 16 shards for reduced lock contention
//   - Safe concurrent insert/remove/lookup by independent keys
//   - No global lock: Range and Len visit shards one at a time
type Map[K comparable, V any] struct {
	shards [ShardCount]*shard[K, V]
	hasher Hasher[K]
}

// shard is a single shard of the map with its own mutex.
type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a sharded map using the given hasher for shard selection.
// Use StringHasher or Uint64Hasher for common key types, or supply a
// custom hasher.
func New[K comparable, V any](hasher Hasher[K]) *Map[K, V] {
	m := &Map[K, V]{hasher: hasher}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{entries: make(map[K]V)}
	}
	return m
}

// getShard returns the shard for a given key.
// Uses bitwise AND for fast modulo (only works with power-of-2 shard count).
func (m *Map[K, V]) getShard(key K) *shard[K, V] {
	hash := m.hasher(key)
	return m.shards[hash&shardMask]
}

// Get retrieves a value by key.
// Returns (value, true) if found, (zero, false) otherwise.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.getShard(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	return v, ok
}

// Contains reports whether the key is present.
func (m *Map[K, V]) Contains(key K) bool {
	s := m.getShard(key)
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

// Set stores a value, replacing any existing entry for the key.
// The value is stored as-is (not copied).
func (m *Map[K, V]) Set(key K, value V) {
	s := m.getShard(key)
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
}

// Delete removes an entry and returns the removed value.
// Returns (zero, false) if the key was not present.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	s := m.getShard(key)
	s.mu.Lock()
	v, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return v, ok
}

// Len returns the total number of entries across all shards.
// The count is a snapshot: concurrent writers may change it immediately.
func (m *Map[K, V]) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Range calls f for each entry until f returns false.
//
// Range holds one shard's read lock at a time, so it observes a per-shard
// consistent snapshot, not a map-wide one. Entries inserted or removed
// concurrently may or may not be visited.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.entries {
			if !f(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
