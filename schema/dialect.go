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

	"sqlgate/gateway/base"
	"sqlgate/gateway/pool"
)

// ErrNotFound is returned when a requested table or column does not exist.
var ErrNotFound = errors.New("not found")

// Dialect issues the engine-specific catalog queries behind discovery.
// Implementations receive a borrowed connection and must not retain it.
type Dialect interface {
	// Name identifies the dialect (mysql, postgres).
	Name() string

	// ListDatabases returns the user-visible databases, with the engine's
	// own system catalogs already filtered out.
	ListDatabases(ctx context.Context, conn pool.Conn) ([]base.DatabaseInfo, error)

	// ListTables returns the base tables of one database.
	ListTables(ctx context.Context, conn pool.Conn, database string) ([]base.TableInfo, error)

	// DescribeTable returns the full schema of one table, or ErrNotFound.
	DescribeTable(ctx context.Context, conn pool.Conn, database, table string) (*base.SchemaDescription, error)
}

// ForDriver returns the dialect for a driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return &MySQLDialect{}, nil
	case "postgres":
		return &PostgresDialect{}, nil
	default:
		return nil, errors.New("unsupported driver: " + driver)
	}
}
