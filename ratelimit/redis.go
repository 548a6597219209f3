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
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisBackend implements a sliding-window limiter on a shared Redis
// instance so multiple gateway replicas enforce one combined limit.
type redisBackend struct {
	client *redis.Client
}

// WithRedis makes the limiter use a shared Redis sliding window. Errors
// talking to Redis fall back to the in-process window.
func WithRedis(client *redis.Client) Option {
	return func(l *Limiter) {
		if client != nil {
			l.backend = &redisBackend{client: client}
		}
	}
}

// NewRedisClient connects to Redis from a URL (redis://host:port[/db]) and
// verifies the connection with a short ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func windowKey(clientID string) string {
	return "ratelimit:" + clientID
}

// allow prunes timestamps outside the window, counts the remainder, and
// records the request only when it is admitted, so refusals leave no trace.
func (b *redisBackend) allow(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	key := windowKey(clientID)
	minScore := now.Add(-window).UnixNano()

	pipe := b.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", minScore))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if countCmd.Val() >= int64(limit) {
		return false, nil
	}

	pipe = b.client.Pipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	pipe.Expire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return true, nil
}

func (b *redisBackend) status(ctx context.Context, clientID string, window time.Duration) (int, time.Time, error) {
	now := time.Now()
	minScore := now.Add(-window).UnixNano()

	count, err := b.client.ZCount(ctx, windowKey(clientID), fmt.Sprintf("%d", minScore), "+inf").Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	// The sliding window has no hard reset point; report the end of the
	// current window as the earliest time the count can fully drain.
	return int(count), now.Add(window), nil
}
