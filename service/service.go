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

// Package service is the gateway facade: it wires the validator, cache,
// pool, executor, inspector, rate limiter and monitor into the operation
// surface the protocol layer calls (execute_query, validate_query,
// discover_databases, discover_tables, get_table_schema, refresh_cache,
// get_server_stats).
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"sqlgate/gateway/base"
	"sqlgate/gateway/cache"
	"sqlgate/gateway/executor"
	"sqlgate/gateway/monitor"
	"sqlgate/gateway/pool"
	"sqlgate/gateway/ratelimit"
	"sqlgate/gateway/schema"
	"sqlgate/gateway/shared/logger"
	"sqlgate/gateway/validator"
)

// ErrRateLimited is returned when a client exhausts its request window.
// It is advisory admission control, distinct from the gateway error
// taxonomy, so protocol layers can map it to their own throttling signal.
var ErrRateLimited = errors.New("rate limit exceeded")

// Service exposes the gateway operations. All components are
// constructor-injected so tests can isolate any of them.
type Service struct {
	executor  *executor.Executor
	inspector *schema.Inspector
	validator *validator.Validator
	limiter   *ratelimit.Limiter
	monitor   *monitor.Monitor
	cache     *cache.Manager
	pool      *pool.Pool
	log       *logger.Logger
}

// New assembles a Service from its components.
func New(
	exec *executor.Executor,
	insp *schema.Inspector,
	valid *validator.Validator,
	limiter *ratelimit.Limiter,
	mon *monitor.Monitor,
	c *cache.Manager,
	p *pool.Pool,
) *Service {
	return &Service{
		executor:  exec,
		inspector: insp,
		validator: valid,
		limiter:   limiter,
		monitor:   mon,
		cache:     c,
		pool:      p,
		log:       logger.New("gateway"),
	}
}

// admit applies rate limiting and hands back a request id for logging.
func (s *Service) admit(ctx context.Context, clientID, operation string) (string, error) {
	requestID := uuid.NewString()
	if !s.limiter.Allow(ctx, clientID) {
		s.log.Warn(clientID, requestID, "request rejected by rate limiter",
			map[string]any{"operation": operation})
		return requestID, ErrRateLimited
	}
	return requestID, nil
}

// ExecuteQuery validates and runs one SELECT on behalf of a client.
func (s *Service) ExecuteQuery(ctx context.Context, clientID, sql string, opts *executor.Options) (*base.QueryResult, error) {
	requestID, err := s.admit(ctx, clientID, "execute_query")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.executor.Execute(ctx, sql, opts)
	elapsed := time.Since(start)
	s.monitor.Record("execute_query", elapsed, err != nil)

	if err != nil {
		s.log.ErrorWithErr(clientID, requestID, "query execution failed", err, nil)
		return nil, err
	}

	s.log.InfoWithDuration(clientID, requestID, "query executed",
		float64(elapsed.Microseconds())/1000.0,
		map[string]any{
			"row_count": result.RowCount,
			"truncated": result.Truncated,
			"cached":    result.Cached,
		})
	return result, nil
}

// ValidateQuery dry-runs validation. It never fails; invalidity is reported
// in the payload.
func (s *Service) ValidateQuery(ctx context.Context, clientID, sql string) (validator.Report, error) {
	requestID, err := s.admit(ctx, clientID, "validate_query")
	if err != nil {
		return validator.Report{}, err
	}

	start := time.Now()
	report, _ := s.executor.ValidateSyntax(sql)
	s.monitor.Record("validate_query", time.Since(start), false)

	s.log.Debug(clientID, requestID, "query validated",
		map[string]any{"valid": report.Valid, "category": string(report.Category)})
	return report, nil
}

// DiscoverDatabases lists the user databases visible to the gateway.
func (s *Service) DiscoverDatabases(ctx context.Context, clientID string) ([]base.DatabaseInfo, error) {
	requestID, err := s.admit(ctx, clientID, "discover_databases")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	databases, err := s.inspector.DiscoverDatabases(ctx)
	s.monitor.Record("discover_databases", time.Since(start), err != nil)

	if err != nil {
		s.log.ErrorWithErr(clientID, requestID, "database discovery failed", err, nil)
		return nil, err
	}
	return databases, nil
}

// DiscoverTables lists the tables of one database.
func (s *Service) DiscoverTables(ctx context.Context, clientID, database string) ([]base.TableInfo, error) {
	requestID, err := s.admit(ctx, clientID, "discover_tables")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tables, err := s.inspector.DiscoverTables(ctx, database)
	s.monitor.Record("discover_tables", time.Since(start), err != nil)

	if err != nil {
		s.log.ErrorWithErr(clientID, requestID, "table discovery failed", err,
			map[string]any{"database": database})
		return nil, err
	}
	return tables, nil
}

// GetTableSchema returns the full description of one table.
func (s *Service) GetTableSchema(ctx context.Context, clientID, database, table string) (*base.SchemaDescription, error) {
	requestID, err := s.admit(ctx, clientID, "get_table_schema")
	if err != nil {
		return nil, err
	}

	start := time.Now()
	desc, err := s.inspector.GetTableSchema(ctx, database, table)
	s.monitor.Record("get_table_schema", time.Since(start), err != nil)

	if err != nil {
		if !errors.Is(err, schema.ErrNotFound) {
			s.log.ErrorWithErr(clientID, requestID, "schema lookup failed", err,
				map[string]any{"database": database, "table": table})
		}
		return nil, err
	}
	return desc, nil
}

// RefreshCache invalidates cached discovery results for a scope ("all",
// "databases", "tables", "schemas", or a glob pattern).
func (s *Service) RefreshCache(ctx context.Context, clientID, scope string) (bool, error) {
	requestID, err := s.admit(ctx, clientID, "refresh_cache")
	if err != nil {
		return false, err
	}

	ok := s.inspector.Refresh(scope)
	s.log.Info(clientID, requestID, "cache refreshed",
		map[string]any{"scope": scope, "ok": ok})
	return ok, nil
}

// ServerStats bundles cache, pool and per-operation statistics.
type ServerStats struct {
	Cache      cache.Stats              `json:"cache"`
	Pool       base.PoolStats           `json:"pool"`
	Operations map[string]monitor.Stats `json:"operations"`
	Summary    monitor.Summary          `json:"summary"`
}

// GetServerStats returns a snapshot of all gateway counters. It bypasses
// rate limiting: operators polling stats must not eat client budgets.
func (s *Service) GetServerStats() ServerStats {
	return ServerStats{
		Cache:      s.cache.Stats(),
		Pool:       s.pool.Stats(),
		Operations: s.monitor.AllStats(),
		Summary:    s.monitor.Summary(),
	}
}

// Health probes the pool with one short acquisition and reports gateway
// liveness.
func (s *Service) Health(ctx context.Context) *base.HealthStatus {
	start := time.Now()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pc, err := s.pool.Acquire(probeCtx)
	latency := time.Since(start)
	if err != nil {
		return &base.HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}
	}
	s.pool.Release(pc)

	stats := s.pool.Stats()
	return &base.HealthStatus{
		Healthy:   true,
		Latency:   latency,
		Timestamp: time.Now(),
		Details: map[string]string{
			"pool_total":  strconv.Itoa(stats.Total),
			"pool_in_use": strconv.Itoa(stats.InUse),
			"pool_idle":   strconv.Itoa(stats.Idle),
		},
	}
}
