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

// Package ratelimit provides per-client admission control for the gateway.
//
// The default backend is an in-process fixed window: each client id gets a
// counter that resets when its window elapses. Deployments running several
// gateway replicas can plug in a Redis client for a shared sliding window;
// Redis failures fail open so a cache outage never blocks query traffic.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLimit is the default number of requests admitted per window.
	DefaultLimit = 100
	// DefaultWindow is the default window length.
	DefaultWindow = time.Minute
)

// window tracks one client's request count within the current window.
type window struct {
	count   int
	resetAt time.Time
}

// Limiter is an advisory per-client request limiter. It is consumed by the
// protocol layer before an operation reaches the executor; it is not a
// resource governor inside the executor itself.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*window

	backend backend // nil means in-memory only
}

// backend is an optional distributed window shared across replicas.
type backend interface {
	allow(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error)
	status(ctx context.Context, clientID string, window time.Duration) (int, time.Time, error)
}

// Option is a functional option for configuring a Limiter.
type Option func(*Limiter)

// New creates a Limiter admitting up to limit requests per client per window.
// Non-positive arguments fall back to the package defaults.
func New(limit int, windowLen time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if windowLen <= 0 {
		windowLen = DefaultWindow
	}

	l := &Limiter{
		limit:   limit,
		window:  windowLen,
		windows: make(map[string]*window),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow reports whether one more request from clientID is admitted. Once a
// window's limit is reached, further calls within the same window return
// false without side effects; a new window resets the counter.
func (l *Limiter) Allow(ctx context.Context, clientID string) bool {
	if l.backend != nil {
		allowed, err := l.backend.allow(ctx, clientID, l.limit, l.window)
		if err == nil {
			return allowed
		}
		// Distributed backend unavailable: fall through to the local
		// window rather than blocking traffic.
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[clientID]
	if !exists || now.After(w.resetAt) {
		l.windows[clientID] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Status returns the current request count, the configured limit, and the
// time the client's window resets. A client with no window yet reports zero.
func (l *Limiter) Status(ctx context.Context, clientID string) (count, limit int, resetAt time.Time) {
	if l.backend != nil {
		if c, reset, err := l.backend.status(ctx, clientID, l.window); err == nil {
			return c, l.limit, reset
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[clientID]
	if !exists || time.Now().After(w.resetAt) {
		return 0, l.limit, time.Time{}
	}
	return w.count, l.limit, w.resetAt
}

// Reset drops the window for one client (admin operation).
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, clientID)
}
