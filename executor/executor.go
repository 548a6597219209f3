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

package executor

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"sqlgate/gateway/base"
	"sqlgate/gateway/cache"
	"sqlgate/gateway/pool"
	"sqlgate/gateway/shared/logger"
	"sqlgate/gateway/validator"
)

const (
	// DefaultTimeout is used when the caller supplies none.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTimeout caps caller-requested timeouts.
	DefaultMaxTimeout = 30 * time.Second
	// DefaultMaxRows caps the rows returned to a caller.
	DefaultMaxRows = 1000
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Options controls one execution.
type Options struct {
	// Timeout bounds the database execution step only. Zero means the
	// executor default; values above the configured maximum are rejected.
	Timeout time.Duration

	// UseCache enables the result cache for this statement.
	UseCache bool
}

// DefaultOptions returns the options applied when a caller passes nil.
func DefaultOptions() Options {
	return Options{Timeout: 0, UseCache: true}
}

// Config holds executor limits.
type Config struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	MaxResultRows  int
	CacheTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = DefaultMaxTimeout
	}
	if c.MaxResultRows <= 0 {
		c.MaxResultRows = DefaultMaxRows
	}
	return c
}

// Executor orchestrates validation, cache lookup, pooled execution, result
// normalization and cache population. It borrows connections from the pool
// and owns neither them nor the cache entries.
type Executor struct {
	cfg   Config
	pool  *pool.Pool
	cache *cache.Manager
	valid *validator.Validator
	log   *logger.Logger
}

// New creates an Executor over the given pool, cache and validator.
func New(cfg Config, p *pool.Pool, c *cache.Manager, v *validator.Validator) *Executor {
	return &Executor{
		cfg:   cfg.withDefaults(),
		pool:  p,
		cache: c,
		valid: v,
		log:   logger.New("query-executor"),
	}
}

// Execute runs one validated SELECT. opts == nil means default timeout with
// caching enabled. Failure kinds: *base.ValidationError for policy or limit
// violations, *base.TimeoutError when the execution step exceeds its budget
// (the connection is discarded as untrusted), *base.ExecutionError for any
// other driver failure.
func (e *Executor) Execute(ctx context.Context, sql string, opts *Options) (*base.QueryResult, error) {
	options := DefaultOptions()
	if opts != nil {
		options = *opts
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = e.cfg.DefaultTimeout
	}
	if timeout > e.cfg.MaxTimeout {
		return nil, base.NewValidationError(base.CategorySyntax,
			"timeout %s exceeds maximum %s", timeout, e.cfg.MaxTimeout)
	}

	if err := e.valid.Validate(sql); err != nil {
		return nil, err
	}

	key := QueryKey(sql)
	if options.UseCache {
		if cached, ok := e.cache.Get(key); ok {
			if result, ok := cached.(*base.QueryResult); ok {
				// Hand out a copy flagged as cached; ExecutionTimeMS
				// keeps the original execution's timing.
				hit := *result
				hit.Cached = true
				return &hit, nil
			}
		}
	}

	result, err := e.runQuery(ctx, sql, timeout)
	if err != nil {
		return nil, err
	}

	if options.UseCache {
		e.cache.Set(key, result, e.cfg.CacheTTL)
	}

	return result, nil
}

// runQuery performs the pooled database round-trip and result shaping.
func (e *Executor) runQuery(ctx context.Context, sqlText string, timeout time.Duration) (*base.QueryResult, error) {
	pc, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := pc.Conn().QueryContext(queryCtx, sqlText)
	if err != nil {
		return nil, e.failQuery(pc, queryCtx, timeout, err)
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		e.pool.Release(pc)
		return nil, base.NewExecutionError("Execute", "failed to read columns", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		e.pool.Release(pc)
		return nil, base.NewExecutionError("Execute", "failed to read column types", err)
	}

	resultRows := make([]map[string]any, 0)
	truncated := false
	for rows.Next() {
		if len(resultRows) >= e.cfg.MaxResultRows {
			truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			_ = rows.Close()
			e.pool.Release(pc)
			return nil, base.NewExecutionError("Execute", "failed to scan row", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = base.NormalizeValue(values[i], columnTypes[i])
		}
		resultRows = append(resultRows, row)
	}

	iterErr := rows.Err()
	_ = rows.Close()
	if iterErr != nil {
		return nil, e.failQuery(pc, queryCtx, timeout, iterErr)
	}
	elapsed := time.Since(start)

	e.pool.Release(pc)

	return &base.QueryResult{
		Columns:         columns,
		Rows:            resultRows,
		RowCount:        len(resultRows),
		Truncated:       truncated,
		ExecutionTimeMS: float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

// failQuery maps a driver failure to the error taxonomy and hands the
// connection back appropriately: a timed-out connection's state is
// untrusted and is discarded, anything else is released for reuse.
func (e *Executor) failQuery(pc *pool.PooledConn, queryCtx context.Context, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
		e.pool.Discard(pc)
		return &base.TimeoutError{Operation: "Execute", Timeout: timeout.String(), Err: err}
	}

	e.pool.Release(pc)
	return base.NewExecutionError("Execute", "query execution failed", err)
}

// ValidateSyntax dry-runs validation without touching the database and
// returns the never-failing report alongside the statement's cache key.
func (e *Executor) ValidateSyntax(sql string) (validator.Report, string) {
	return e.valid.Check(sql), QueryKey(sql)
}

// NormalizeSQL lower-cases a statement and collapses all whitespace so
// formatting differences hash to the same cache key.
func NormalizeSQL(sql string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(sql)), " ")
}

// QueryKey returns the result-cache key for a statement.
func QueryKey(sql string) string {
	return cache.Key("query", map[string]any{"sql": NormalizeSQL(sql)})
}
