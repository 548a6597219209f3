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

package schema

import (
	"context"
	"errors"
	"strings"
	"time"

	"sqlgate/gateway/base"
	"sqlgate/gateway/cache"
	"sqlgate/gateway/pool"
	"sqlgate/gateway/shared/logger"
)

// Inspector discovers databases, tables, columns, indexes and keys through
// the connection pool and caches every result under an operation-scoped key.
// The statements it issues are generated internally, never caller-supplied,
// so they bypass the query validator.
type Inspector struct {
	pool    *pool.Pool
	cache   *cache.Manager
	dialect Dialect
	log     *logger.Logger

	cacheTTL time.Duration

	// degrade makes discovery return empty results instead of failing
	// when the database is unreachable, since discovery is informational.
	degrade bool
}

// InspectorOption configures an Inspector.
type InspectorOption func(*Inspector)

// WithCacheTTL overrides the discovery cache TTL.
func WithCacheTTL(ttl time.Duration) InspectorOption {
	return func(i *Inspector) {
		i.cacheTTL = ttl
	}
}

// WithDegradation controls whether discovery degrades to empty results on
// connectivity loss instead of propagating ConnectionError.
func WithDegradation(enabled bool) InspectorOption {
	return func(i *Inspector) {
		i.degrade = enabled
	}
}

// NewInspector creates an Inspector over the given pool, cache and dialect.
func NewInspector(p *pool.Pool, c *cache.Manager, dialect Dialect, opts ...InspectorOption) *Inspector {
	i := &Inspector{
		pool:    p,
		cache:   c,
		dialect: dialect,
		log:     logger.New("schema-inspector"),
		degrade: true,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// DiscoverDatabases lists user databases, cached under "databases".
func (i *Inspector) DiscoverDatabases(ctx context.Context) ([]base.DatabaseInfo, error) {
	key := cache.Key("databases", nil)
	if cached, ok := i.cache.Get(key); ok {
		if dbs, ok := cached.([]base.DatabaseInfo); ok {
			return dbs, nil
		}
	}

	var databases []base.DatabaseInfo
	err := i.withConn(ctx, func(conn pool.Conn) error {
		var derr error
		databases, derr = i.dialect.ListDatabases(ctx, conn)
		return derr
	})
	if err != nil {
		if empty, ok := i.degraded(err); ok {
			return []base.DatabaseInfo{}, empty
		}
		return nil, i.wrap("DiscoverDatabases", err)
	}

	i.cache.Set(key, databases, i.cacheTTL)
	return databases, nil
}

// DiscoverTables lists the base tables of one database, cached under
// "tables:<db>".
func (i *Inspector) DiscoverTables(ctx context.Context, database string) ([]base.TableInfo, error) {
	key := cache.Key("tables", map[string]any{"database": database})
	if cached, ok := i.cache.Get(key); ok {
		if tables, ok := cached.([]base.TableInfo); ok {
			return tables, nil
		}
	}

	var tables []base.TableInfo
	err := i.withConn(ctx, func(conn pool.Conn) error {
		var derr error
		tables, derr = i.dialect.ListTables(ctx, conn, database)
		return derr
	})
	if err != nil {
		if empty, ok := i.degraded(err); ok {
			return []base.TableInfo{}, empty
		}
		return nil, i.wrap("DiscoverTables", err)
	}

	i.cache.Set(key, tables, i.cacheTTL)
	return tables, nil
}

// GetTableSchema returns the full description of one table, cached under
// "schema:<db>.<table>". Returns ErrNotFound for an unknown table.
func (i *Inspector) GetTableSchema(ctx context.Context, database, table string) (*base.SchemaDescription, error) {
	key := cache.Key("schema", map[string]any{"database": database, "table": table})
	if cached, ok := i.cache.Get(key); ok {
		if desc, ok := cached.(*base.SchemaDescription); ok {
			return desc, nil
		}
	}

	var desc *base.SchemaDescription
	err := i.withConn(ctx, func(conn pool.Conn) error {
		var derr error
		desc, derr = i.dialect.DescribeTable(ctx, conn, database, table)
		return derr
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, i.wrap("GetTableSchema", err)
	}

	i.cache.Set(key, desc, i.cacheTTL)
	return desc, nil
}

// ValidateTableExists reports whether a table exists in a database.
func (i *Inspector) ValidateTableExists(ctx context.Context, database, table string) (bool, error) {
	tables, err := i.DiscoverTables(ctx, database)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t.Name == table {
			return true, nil
		}
	}
	return false, nil
}

// GetColumnInfo returns one column's description, or ErrNotFound.
func (i *Inspector) GetColumnInfo(ctx context.Context, database, table, column string) (*base.ColumnInfo, error) {
	desc, err := i.GetTableSchema(ctx, database, table)
	if err != nil {
		return nil, err
	}
	for idx := range desc.Columns {
		if desc.Columns[idx].Name == column {
			col := desc.Columns[idx]
			return &col, nil
		}
	}
	return nil, ErrNotFound
}

// Refresh invalidates cached discovery results for a scope so the next call
// re-derives from the live database. It does not itself requery. Scopes:
// "all", "databases", "tables", "schemas", or a raw glob pattern.
func (i *Inspector) Refresh(scope string) bool {
	switch scope {
	case "all", "":
		i.cache.Clear()
		return true
	case "databases":
		i.cache.Invalidate("databases:*")
		return true
	case "tables":
		i.cache.Invalidate("tables:*")
		return true
	case "schemas":
		i.cache.Invalidate("schema:*")
		return true
	default:
		if !strings.ContainsAny(scope, "*?[") {
			return false
		}
		i.cache.Invalidate(scope)
		return true
	}
}

// withConn borrows one pooled connection for the duration of fn and always
// gives it back: timed-out connections are discarded as untrusted, all
// others released.
func (i *Inspector) withConn(ctx context.Context, fn func(conn pool.Conn) error) error {
	pc, err := i.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(pc.Conn())
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		i.pool.Discard(pc)
		return err
	}

	i.pool.Release(pc)
	return err
}

// degraded reports whether an error should be swallowed into an empty
// discovery result. Only total connectivity loss qualifies.
func (i *Inspector) degraded(err error) (error, bool) {
	if !i.degrade {
		return nil, false
	}
	var connErr *base.ConnectionError
	if errors.As(err, &connErr) {
		i.log.Warn("", "", "discovery degraded to empty result: database unreachable",
			map[string]any{"error": connErr.Error()})
		return nil, true
	}
	return nil, false
}

// wrap folds dialect/pool failures into the gateway error taxonomy.
func (i *Inspector) wrap(operation string, err error) error {
	var (
		connErr    *base.ConnectionError
		poolErr    *base.PoolTimeoutError
		execErr    *base.ExecutionError
		timeoutErr *base.TimeoutError
	)
	switch {
	case errors.As(err, &connErr), errors.As(err, &poolErr),
		errors.As(err, &execErr), errors.As(err, &timeoutErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &base.TimeoutError{Operation: operation, Timeout: "context deadline", Err: err}
	default:
		return base.NewExecutionError(operation, "catalog query failed", err)
	}
}
