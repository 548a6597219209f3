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

package pool

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"sqlgate/gateway/base"
)

const (
	// DefaultMinConnections is the number of connections kept warm.
	DefaultMinConnections = 2
	// DefaultMaxConnections bounds concurrent live connections.
	DefaultMaxConnections = 10
	// DefaultAcquireTimeout bounds how long Acquire blocks on an exhausted pool.
	DefaultAcquireTimeout = 30 * time.Second
	// DefaultIdleTimeout retires connections idle past this duration.
	DefaultIdleTimeout = 5 * time.Minute
	// DefaultMaxConnectionAge retires connections regardless of activity.
	DefaultMaxConnectionAge = time.Hour
	// healthCheckTimeout bounds the per-connection health probe.
	healthCheckTimeout = 2 * time.Second
	// janitorInterval is how often idle connections are swept.
	janitorInterval = 30 * time.Second
)

// Conn is the minimal database connection surface the pool manages.
// Both *sql.Conn and *sql.DB satisfy it.
type Conn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Factory creates one new live connection.
type Factory func(ctx context.Context) (Conn, error)

// HealthCheck probes a connection before it is reused. nil means healthy.
type HealthCheck func(ctx context.Context, conn Conn) error

// PooledConn is a live connection plus pool bookkeeping. It is never handed
// to two callers concurrently.
type PooledConn struct {
	conn       Conn
	createdAt  time.Time
	lastUsedAt time.Time
	inUse      bool
}

// Conn exposes the underlying connection for the duration of one borrow.
func (pc *PooledConn) Conn() Conn {
	return pc.conn
}

// Age returns how long ago the connection was created.
func (pc *PooledConn) Age() time.Duration {
	return time.Since(pc.createdAt)
}

// Config holds pool sizing and lifetime limits.
type Config struct {
	MinConnections   int
	MaxConnections   int
	AcquireTimeout   time.Duration
	IdleTimeout      time.Duration
	MaxConnectionAge time.Duration
}

// withDefaults fills zero values with the package defaults.
func (c Config) withDefaults() Config {
	if c.MinConnections <= 0 {
		c.MinConnections = DefaultMinConnections
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MinConnections > c.MaxConnections {
		c.MinConnections = c.MaxConnections
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxConnectionAge <= 0 {
		c.MaxConnectionAge = DefaultMaxConnectionAge
	}
	return c
}

// Pool manages a bounded set of live database connections with health
// checks, idle/age expiry, and blocking acquisition with timeout. It is the
// sole owner of physical connections.
type Pool struct {
	cfg     Config
	factory Factory
	health  HealthCheck

	mu      sync.Mutex
	idle    []*PooledConn
	total   int // live connections plus in-flight creations
	waiters []chan *PooledConn
	closed  bool

	stopJanitor chan struct{}
}

// New creates a pool over the given connection factory. If healthCheck is
// nil, PingContext is used. MinConnections are opened eagerly, best effort:
// a database that is down at startup delays connections to first demand
// instead of failing construction.
func New(cfg Config, factory Factory, healthCheck HealthCheck) *Pool {
	cfg = cfg.withDefaults()
	if healthCheck == nil {
		healthCheck = func(ctx context.Context, conn Conn) error {
			return conn.PingContext(ctx)
		}
	}

	p := &Pool{
		cfg:         cfg,
		factory:     factory,
		health:      healthCheck,
		stopJanitor: make(chan struct{}),
	}

	p.prefill()
	go p.janitor()

	return p
}

// prefill opens MinConnections without blocking startup on failures.
func (p *Pool) prefill() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < p.cfg.MinConnections; i++ {
		conn, err := p.factory(ctx)
		if err != nil {
			return
		}
		now := time.Now()
		pc := &PooledConn{conn: conn, createdAt: now, lastUsedAt: now}

		p.mu.Lock()
		p.idle = append(p.idle, pc)
		p.total++
		p.mu.Unlock()
	}
}

// Acquire returns a healthy connection, blocking up to the configured
// acquire timeout (or ctx, whichever ends first) when the pool is exhausted.
// Beyond that it fails with *base.PoolTimeoutError.
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, base.NewExecutionError("Acquire", "pool is shut down", nil)
		}

		// Reuse the most recently used idle connection; stale or
		// unhealthy ones are retired and the next candidate tried.
		if pc := p.popIdleLocked(); pc != nil {
			p.mu.Unlock()
			if p.vet(ctx, pc) {
				pc.lastUsedAt = time.Now()
				return pc, nil
			}
			p.retire(pc)
			continue
		}

		if p.total < p.cfg.MaxConnections {
			p.total++ // reserve a slot before the slow create
			p.mu.Unlock()
			return p.create(ctx)
		}

		// Exhausted: wait for a release to hand us a connection.
		ch := make(chan *PooledConn, 1)
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()

		pc, err := p.wait(ctx, ch, deadline)
		if err != nil {
			return nil, err
		}
		if pc != nil {
			return pc, nil
		}
		// Woken without a connection (e.g. a retirement freed a slot);
		// loop and try to create one.
	}
}

// popIdleLocked removes and returns the freshest idle connection, marked in
// use, or nil when none exists. Callers hold p.mu.
func (p *Pool) popIdleLocked() *PooledConn {
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	pc := p.idle[n-1]
	p.idle = p.idle[:n-1]
	pc.inUse = true
	return pc
}

// vet reports whether a connection pulled from the idle set is still fit for
// use: within its age and idle limits and passing the health check.
func (p *Pool) vet(ctx context.Context, pc *PooledConn) bool {
	if time.Since(pc.createdAt) > p.cfg.MaxConnectionAge {
		return false
	}
	if time.Since(pc.lastUsedAt) > p.cfg.IdleTimeout {
		return false
	}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return p.health(checkCtx, pc.conn) == nil
}

// create opens a fresh connection against a slot already reserved in total.
func (p *Pool) create(ctx context.Context) (*PooledConn, error) {
	conn, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.total--
		p.notifyWaiterLocked(nil)
		p.mu.Unlock()
		return nil, &base.ConnectionError{Message: "failed to create connection", Err: err}
	}

	now := time.Now()
	return &PooledConn{conn: conn, createdAt: now, lastUsedAt: now, inUse: true}, nil
}

// wait blocks on a hand-off channel until a connection arrives, the acquire
// deadline passes, or ctx is cancelled.
func (p *Pool) wait(ctx context.Context, ch chan *PooledConn, deadline time.Time) (*PooledConn, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case pc := <-ch:
		return pc, nil
	case <-timer.C:
		return p.abandonWait(ch, &base.PoolTimeoutError{Timeout: p.cfg.AcquireTimeout.String()})
	case <-ctx.Done():
		return p.abandonWait(ch, ctx.Err())
	}
}

// abandonWait removes ch from the waiter list; if a connection was handed
// off in the meantime it wins over the timeout.
func (p *Pool) abandonWait(ch chan *PooledConn, cause error) (*PooledConn, error) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return nil, cause
		}
	}
	p.mu.Unlock()

	// Already removed from the list: a hand-off raced the timeout.
	if pc := <-ch; pc != nil {
		return pc, nil
	}
	return nil, cause
}

// Release returns a borrowed connection to the pool. Connections past their
// age limit are closed instead of reused; otherwise a blocked waiter gets
// the connection directly, skipping the idle set.
func (p *Pool) Release(pc *PooledConn) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	if p.closed || time.Since(pc.createdAt) > p.cfg.MaxConnectionAge {
		p.total--
		p.notifyWaiterLocked(nil)
		p.mu.Unlock()
		_ = pc.conn.Close()
		return
	}

	pc.lastUsedAt = time.Now()
	if p.notifyWaiterLocked(pc) {
		p.mu.Unlock()
		return
	}

	pc.inUse = false
	p.idle = append(p.idle, pc)
	p.mu.Unlock()
}

// Discard closes a borrowed connection instead of returning it. Used after
// a query timeout, when the connection's state is untrusted. A replacement
// is created lazily on next demand.
func (p *Pool) Discard(pc *PooledConn) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	p.total--
	p.notifyWaiterLocked(nil)
	p.mu.Unlock()

	_ = pc.conn.Close()
}

// retire drops a connection that failed vetting while counted as in use.
func (p *Pool) retire(pc *PooledConn) {
	p.Discard(pc)
}

// notifyWaiterLocked hands pc (which may be nil, meaning "a slot freed up")
// to the longest-waiting acquirer. Callers hold p.mu.
func (p *Pool) notifyWaiterLocked(pc *PooledConn) bool {
	if len(p.waiters) == 0 {
		return false
	}
	ch := p.waiters[0]
	p.waiters = p.waiters[1:]
	if pc != nil {
		pc.inUse = true
		pc.lastUsedAt = time.Now()
	}
	ch <- pc
	return true
}

// Stats returns a point-in-time snapshot of pool occupancy.
func (p *Pool) Stats() base.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return base.PoolStats{
		Total: p.total,
		InUse: p.total - len(p.idle),
		Idle:  len(p.idle),
	}
}

// Shutdown closes every idle connection and wakes all waiters with an
// error. Borrowed connections are closed as they come back via Release.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopJanitor)

	idle := p.idle
	p.idle = nil
	p.total -= len(idle)

	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- nil
	}
	for _, pc := range idle {
		_ = pc.conn.Close()
	}

	return nil
}

// janitor sweeps the idle set, retiring connections past their idle timeout
// or age limit while keeping MinConnections warm.
func (p *Pool) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopJanitor:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	now := time.Now()
	var expired []*PooledConn

	p.mu.Lock()
	kept := p.idle[:0]
	for _, pc := range p.idle {
		tooIdle := now.Sub(pc.lastUsedAt) > p.cfg.IdleTimeout
		tooOld := now.Sub(pc.createdAt) > p.cfg.MaxConnectionAge
		if (tooIdle || tooOld) && p.total-len(expired) > p.cfg.MinConnections {
			expired = append(expired, pc)
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
	p.total -= len(expired)
	p.mu.Unlock()

	for _, pc := range expired {
		_ = pc.conn.Close()
	}
}
