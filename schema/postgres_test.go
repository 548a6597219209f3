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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresListDatabases(t *testing.T) {
	db, mock := newMockConn(t)
	d := &PostgresDialect{}

	// Engine namespaces are filtered in SQL; only user schemas come back.
	mock.ExpectQuery("information_schema.schemata").WillReturnRows(
		sqlmock.NewRows([]string{"schema_name"}).
			AddRow("public").
			AddRow("analytics"))

	databases, err := d.ListDatabases(context.Background(), db)
	require.NoError(t, err)

	require.Len(t, databases, 2)
	assert.Equal(t, "public", databases[0].Name)
}

func TestPostgresListTables(t *testing.T) {
	db, mock := newMockConn(t)
	d := &PostgresDialect{}

	mock.ExpectQuery("pg_class").WithArgs("public").WillReturnRows(
		sqlmock.NewRows([]string{"relname", "reltuples", "size", "comment"}).
			AddRow("orders", int64(1200), int64(98304), "customer orders"))

	tables, err := d.ListTables(context.Background(), db, "public")
	require.NoError(t, err)

	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
	assert.Equal(t, int64(1200), tables[0].RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
