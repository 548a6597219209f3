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

package base

import (
	"time"
)

// QueryResult contains the outcome of one executed statement.
// It is constructed once per execution and never mutated afterwards;
// cache hits return a shallow copy with Cached set.
type QueryResult struct {
	Columns         []string         `json:"columns"`           // Ordered column names
	Rows            []map[string]any `json:"rows"`              // Rows as column -> normalized scalar
	RowCount        int              `json:"row_count"`         // Rows actually returned (after truncation)
	Truncated       bool             `json:"truncated"`         // Raw result exceeded the row cap
	ExecutionTimeMS float64          `json:"execution_time_ms"` // Execution step only, preserved on cache hits
	Cached          bool             `json:"cached"`            // Served from cache?
}

// DatabaseInfo describes one user database visible to discovery.
type DatabaseInfo struct {
	Name      string `json:"name"`
	Charset   string `json:"charset,omitempty"`
	Collation string `json:"collation,omitempty"`
}

// TableInfo describes one table inside a database.
type TableInfo struct {
	Name      string `json:"name"`
	Engine    string `json:"engine,omitempty"`
	RowCount  int64  `json:"row_count"`  // Approximate, from catalog statistics
	SizeBytes int64  `json:"size_bytes"` // Approximate on-disk size
	Comment   string `json:"comment,omitempty"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"` // Declared type as reported by the catalog
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default,omitempty"`
	PrimaryKey   bool   `json:"primary_key"`
	ForeignKey   bool   `json:"foreign_key"`
	MaxLength    int64  `json:"max_length,omitempty"` // Character types
	Precision    int64  `json:"precision,omitempty"`  // Numeric types
	Scale        int64  `json:"scale,omitempty"`
	OrdinalIndex int    `json:"ordinal_index"`
}

// IndexInfo describes one index on a table.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"` // In index order
	Unique  bool     `json:"unique"`
}

// ForeignKeyInfo describes one foreign key constraint.
type ForeignKeyInfo struct {
	Name             string `json:"name"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// SchemaDescription is the full description of one table, produced fresh
// from the database on a cache miss and immutable once cached.
type SchemaDescription struct {
	Database    string           `json:"database"`
	Table       string           `json:"table"`
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	PrimaryKeys []string         `json:"primary_keys"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
}

// PoolStats is a point-in-time snapshot of connection pool occupancy.
type PoolStats struct {
	Total int `json:"total"`
	InUse int `json:"in_use"`
	Idle  int `json:"idle"`
}

// HealthStatus reports the result of a gateway health check.
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}
