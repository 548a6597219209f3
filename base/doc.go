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

/*
Package base defines the shared data model and error taxonomy of the SQLGate
gateway.

# Data model

QueryResult is the fixed-shape record every executed statement produces: an
ordered column list plus rows as maps from column name to a normalized scalar
(nil, int64, float64, string, bool, or an RFC 3339 date/time string).
NormalizeValue is the single conversion boundary between whatever the
database driver returns and the rest of the system.

SchemaDescription, TableInfo, ColumnInfo, IndexInfo and ForeignKeyInfo carry
catalog discovery results and are immutable once cached.

# Error taxonomy

Five error kinds cover every gateway failure:

  - ValidationError: the caller's input violates the security policy or a
    parameter limit. Deterministic, never retried.
  - ExecutionError: the database rejected or failed the statement.
  - TimeoutError: the execution step exceeded its budget.
  - PoolTimeoutError: no pooled connection became available in time.
  - ConnectionError: the database is unreachable.

All are plain structs implementing error, matchable with errors.As, and never
include credentials or internal stack state in their messages.
*/
package base
