// Copyright 2025 SQLGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL is the entry lifetime used when Set is called with ttl <= 0.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the cache size before LRU eviction kicks in.
	DefaultMaxEntries = 1000
)

// entry is one cached value with its fixed expiry. TTL is set at insertion
// and never refreshed on read.
type entry struct {
	key       string
	value     any
	createdAt time.Time
	expiresAt time.Time
	elem      *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	EntryCount int     `json:"entry_count"`
	Evictions  int64   `json:"evictions"`
	MaxEntries int     `json:"max_entries"`
}

// Manager is a concurrency-safe, size-bounded, TTL-based key/value store.
// Expired entries are removed lazily on access; at capacity the
// least-recently-used unexpired entry is evicted first.
type Manager struct {
	mu         sync.Mutex
	entries    map[string]*entry
	lru        *list.List // Front = most recently used
	defaultTTL time.Duration
	maxEntries int

	hits      int64
	misses    int64
	evictions int64
}

// NewManager creates a cache with the given default TTL and capacity.
// Non-positive arguments fall back to the package defaults.
func NewManager(defaultTTL time.Duration, maxEntries int) *Manager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Manager{
		entries:    make(map[string]*entry),
		lru:        list.New(),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
	}
}

// Key builds a deterministic cache key from an operation name and its
// parameters. Parameters are sorted by name so semantically identical
// requests collide to the same key regardless of argument order. The
// operation name stays in clear text as the key prefix so glob patterns
// like "tables:*" can target one scope.
func Key(op string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(op)
	for _, name := range names {
		fmt.Fprintf(&sb, "|%s=%v", name, params[name])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return op + ":" + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached value for the key, or ok=false on a miss.
// An expired entry counts as a miss and is removed.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, found := m.entries[key]
	if !found {
		m.misses++
		return nil, false
	}

	if e.expired(time.Now()) {
		m.removeLocked(e)
		m.misses++
		return nil, false
	}

	m.lru.MoveToFront(e.elem)
	m.hits++
	return e.value, true
}

// Set stores a value under the key. ttl <= 0 uses the default TTL. When the
// cache is at capacity, the least-recently-used entry is evicted first.
func (m *Manager) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, found := m.entries[key]; found {
		existing.value = value
		existing.createdAt = now
		existing.expiresAt = now.Add(ttl)
		m.lru.MoveToFront(existing.elem)
		return
	}

	for len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}

	e := &entry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	e.elem = m.lru.PushFront(e)
	m.entries[key] = e
}

// Invalidate removes every entry whose key matches the glob pattern
// (path.Match syntax, e.g. "tables:*"). Returns the number removed.
func (m *Manager) Invalidate(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			// Malformed pattern matches nothing.
			return removed
		}
		if matched {
			m.removeLocked(e)
			removed++
		}
	}
	return removed
}

// Clear drops every entry. Hit/miss counters survive, entry count resets.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*entry)
	m.lru.Init()
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.hits + m.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return Stats{
		Hits:       m.hits,
		Misses:     m.misses,
		HitRate:    hitRate,
		EntryCount: len(m.entries),
		Evictions:  m.evictions,
		MaxEntries: m.maxEntries,
	}
}

// evictLocked removes one entry to make room: the oldest expired entry if
// any exists, otherwise the least-recently-used one.
func (m *Manager) evictLocked(now time.Time) {
	for elem := m.lru.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*entry)
		if e.expired(now) {
			m.removeLocked(e)
			m.evictions++
			return
		}
	}

	if elem := m.lru.Back(); elem != nil {
		m.removeLocked(elem.Value.(*entry))
		m.evictions++
	}
}

func (m *Manager) removeLocked(e *entry) {
	delete(m.entries, e.key)
	m.lru.Remove(e.elem)
}
