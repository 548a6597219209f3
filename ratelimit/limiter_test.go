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

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "client-a"), "request %d should be admitted", i+1)
	}

	assert.False(t, l.Allow(ctx, "client-a"), "sixth request should be refused")
	assert.False(t, l.Allow(ctx, "client-a"))
}

func TestRefusalHasNoSideEffects(t *testing.T) {
	l := New(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(ctx, "c"))
	}
	for i := 0; i < 10; i++ {
		l.Allow(ctx, "c")
	}

	count, limit, _ := l.Status(ctx, "c")
	assert.Equal(t, 3, count, "refused requests must not inflate the counter")
	assert.Equal(t, 3, limit)
}

func TestClientsAreIndependent(t *testing.T) {
	l := New(2, time.Minute)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "a"))
	require.True(t, l.Allow(ctx, "a"))
	assert.False(t, l.Allow(ctx, "a"))

	assert.True(t, l.Allow(ctx, "b"), "another client has its own window")
}

func TestWindowReset(t *testing.T) {
	l := New(2, 20*time.Millisecond)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "c"))
	require.True(t, l.Allow(ctx, "c"))
	require.False(t, l.Allow(ctx, "c"))

	time.Sleep(30 * time.Millisecond)

	assert.True(t, l.Allow(ctx, "c"), "a fresh window admits again")
}

func TestStatusAndReset(t *testing.T) {
	l := New(10, time.Minute)
	ctx := context.Background()

	count, limit, resetAt := l.Status(ctx, "c")
	assert.Equal(t, 0, count)
	assert.Equal(t, 10, limit)
	assert.True(t, resetAt.IsZero())

	l.Allow(ctx, "c")
	l.Allow(ctx, "c")

	count, _, resetAt = l.Status(ctx, "c")
	assert.Equal(t, 2, count)
	assert.False(t, resetAt.IsZero())

	l.Reset("c")
	count, _, _ = l.Status(ctx, "c")
	assert.Equal(t, 0, count)
}

func TestAllowConcurrent(t *testing.T) {
	l := New(50, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, "c") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted)
}

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(limit, window, WithRedis(client)), mr
}

func TestRedisBackendLimit(t *testing.T) {
	l, _ := newRedisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(ctx, "c"), "request %d should be admitted", i+1)
	}
	assert.False(t, l.Allow(ctx, "c"))

	count, limit, _ := l.Status(ctx, "c")
	assert.Equal(t, 3, count, "refusals leave no trace in the window")
	assert.Equal(t, 3, limit)
}

func TestRedisBackendSlidingWindow(t *testing.T) {
	l, mr := newRedisLimiter(t, 2, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "c"))
	require.True(t, l.Allow(ctx, "c"))
	require.False(t, l.Allow(ctx, "c"))

	// Old timestamps slide out of the window.
	time.Sleep(60 * time.Millisecond)
	mr.FastForward(60 * time.Millisecond)

	assert.True(t, l.Allow(ctx, "c"))
}

func TestRedisFailureFallsBackToLocal(t *testing.T) {
	l, mr := newRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "c"))

	mr.Close()

	// With Redis down the in-process window takes over; traffic is never
	// blocked outright.
	assert.True(t, l.Allow(ctx, "c"))
	assert.True(t, l.Allow(ctx, "c"))
	assert.False(t, l.Allow(ctx, "c"), "local window still enforces the limit")
}

func TestRedisClientsAreIndependent(t *testing.T) {
	l, _ := newRedisLimiter(t, 1, time.Minute)
	ctx := context.Background()

	require.True(t, l.Allow(ctx, "a"))
	assert.False(t, l.Allow(ctx, "a"))
	assert.True(t, l.Allow(ctx, "b"))
}
