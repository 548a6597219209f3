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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDeterminism(t *testing.T) {
	a := Key("tables", map[string]any{"database": "shop", "page": 1})
	b := Key("tables", map[string]any{"page": 1, "database": "shop"})
	assert.Equal(t, a, b)

	c := Key("tables", map[string]any{"database": "other", "page": 1})
	assert.NotEqual(t, a, c)

	// The operation prefix stays readable so glob invalidation can scope
	// by operation.
	assert.True(t, strings.HasPrefix(a, "tables:"))
	assert.NotEqual(t, a, Key("schema", map[string]any{"database": "shop", "page": 1}))
}

func TestGetSetRoundTrip(t *testing.T) {
	m := NewManager(time.Minute, 10)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	m.Set("k", "value", 0)
	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestTTLExpiry(t *testing.T) {
	m := NewManager(time.Minute, 10)

	m.Set("short", "v", 10*time.Millisecond)
	_, ok := m.Get("short")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = m.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Stats().EntryCount)
}

func TestSetDoesNotRefreshTTLOnGet(t *testing.T) {
	m := NewManager(time.Minute, 10)
	m.Set("k", "v", 30*time.Millisecond)

	// Reads must not extend the entry lifetime.
	for i := 0; i < 3; i++ {
		time.Sleep(5 * time.Millisecond)
		_, ok := m.Get("k")
		require.True(t, ok)
	}

	time.Sleep(30 * time.Millisecond)
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	m := NewManager(time.Minute, 3)

	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Set("c", 3, 0)

	// Touch "a" so "b" becomes the least recently used.
	_, ok := m.Get("a")
	require.True(t, ok)

	m.Set("d", 4, 0)

	_, ok = m.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = m.Get("a")
	assert.True(t, ok)
	_, ok = m.Get("d")
	assert.True(t, ok)

	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestEvictionPrefersExpired(t *testing.T) {
	m := NewManager(time.Minute, 2)

	m.Set("fresh", 1, time.Minute)
	m.Set("stale", 2, 5*time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	m.Set("new", 3, time.Minute)

	_, ok := m.Get("fresh")
	assert.True(t, ok, "unexpired entry should survive when an expired one exists")
	_, ok = m.Get("new")
	assert.True(t, ok)
}

func TestInvalidateGlob(t *testing.T) {
	m := NewManager(time.Minute, 100)

	m.Set(Key("tables", map[string]any{"database": "shop"}), []string{"orders"}, 0)
	m.Set(Key("tables", map[string]any{"database": "crm"}), []string{"leads"}, 0)
	m.Set(Key("databases", nil), []string{"shop", "crm"}, 0)

	removed := m.Invalidate("tables:*")
	assert.Equal(t, 2, removed)

	_, ok := m.Get(Key("databases", nil))
	assert.True(t, ok)
	assert.Equal(t, 1, m.Stats().EntryCount)

	assert.Equal(t, 0, m.Invalidate("tables:*"))
}

func TestClear(t *testing.T) {
	m := NewManager(time.Minute, 10)
	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Get("a")

	m.Clear()

	stats := m.Stats()
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, int64(1), stats.Hits, "counters survive a clear")

	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestSetOverwriteKeepsCapacity(t *testing.T) {
	m := NewManager(time.Minute, 5)

	for i := 0; i < 20; i++ {
		m.Set("same", i, 0)
	}
	m.Set("other", 1, 0)

	stats := m.Stats()
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, int64(0), stats.Evictions)

	got, ok := m.Get("same")
	require.True(t, ok)
	assert.Equal(t, 19, got)
}

func TestCapacityBound(t *testing.T) {
	m := NewManager(time.Minute, 8)

	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i, 0)
	}
	assert.Equal(t, 8, m.Stats().EntryCount)
}
