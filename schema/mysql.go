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
	"database/sql"

	"sqlgate/gateway/base"
	"sqlgate/gateway/pool"
)

// mysqlSystemDatabases are the engine's own catalogs, hidden from discovery.
var mysqlSystemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// MySQLDialect discovers schema through information_schema, which works on
// MySQL 5.7+ and MariaDB.
type MySQLDialect struct{}

func (d *MySQLDialect) Name() string {
	return "mysql"
}

func (d *MySQLDialect) ListDatabases(ctx context.Context, conn pool.Conn) ([]base.DatabaseInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT schema_name, default_character_set_name, default_collation_name
		FROM information_schema.schemata
		ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	databases := make([]base.DatabaseInfo, 0)
	for rows.Next() {
		var db base.DatabaseInfo
		if err := rows.Scan(&db.Name, &db.Charset, &db.Collation); err != nil {
			return nil, err
		}
		if mysqlSystemDatabases[db.Name] {
			continue
		}
		databases = append(databases, db)
	}
	return databases, rows.Err()
}

func (d *MySQLDialect) ListTables(ctx context.Context, conn pool.Conn, database string) ([]base.TableInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT table_name, IFNULL(engine, ''), IFNULL(table_rows, 0),
		       IFNULL(data_length + index_length, 0), IFNULL(table_comment, '')
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tables := make([]base.TableInfo, 0)
	for rows.Next() {
		var t base.TableInfo
		if err := rows.Scan(&t.Name, &t.Engine, &t.RowCount, &t.SizeBytes, &t.Comment); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *MySQLDialect) DescribeTable(ctx context.Context, conn pool.Conn, database, table string) (*base.SchemaDescription, error) {
	columns, err := d.listColumns(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, ErrNotFound
	}

	indexes, err := d.listIndexes(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}

	foreignKeys, err := d.listForeignKeys(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}

	desc := &base.SchemaDescription{
		Database:    database,
		Table:       table,
		Columns:     columns,
		Indexes:     indexes,
		ForeignKeys: foreignKeys,
	}

	fkColumns := make(map[string]bool, len(foreignKeys))
	for _, fk := range foreignKeys {
		fkColumns[fk.Column] = true
	}
	for i := range desc.Columns {
		if desc.Columns[i].PrimaryKey {
			desc.PrimaryKeys = append(desc.PrimaryKeys, desc.Columns[i].Name)
		}
		if fkColumns[desc.Columns[i].Name] {
			desc.Columns[i].ForeignKey = true
		}
	}

	return desc, nil
}

func (d *MySQLDialect) listColumns(ctx context.Context, conn pool.Conn, database, table string) ([]base.ColumnInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, IFNULL(column_default, ''),
		       IFNULL(column_key, ''), IFNULL(character_maximum_length, 0),
		       IFNULL(numeric_precision, 0), IFNULL(numeric_scale, 0), ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make([]base.ColumnInfo, 0)
	for rows.Next() {
		var (
			col      base.ColumnInfo
			nullable string
			key      string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Default,
			&key, &col.MaxLength, &col.Precision, &col.Scale, &col.OrdinalIndex); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		col.PrimaryKey = key == "PRI"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (d *MySQLDialect) listIndexes(ctx context.Context, conn pool.Conn, database, table string) ([]base.IndexInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ?
		ORDER BY index_name, seq_in_index`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	// Rows arrive one per (index, column); fold them into one IndexInfo
	// per index, preserving column order.
	byName := make(map[string]*base.IndexInfo)
	order := make([]string, 0)
	for rows.Next() {
		var (
			name      string
			column    string
			nonUnique int
		)
		if err := rows.Scan(&name, &column, &nonUnique); err != nil {
			return nil, err
		}
		idx, exists := byName[name]
		if !exists {
			idx = &base.IndexInfo{Name: name, Unique: nonUnique == 0}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]base.IndexInfo, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

func (d *MySQLDialect) listForeignKeys(ctx context.Context, conn pool.Conn, database, table string) ([]base.ForeignKeyInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make([]base.ForeignKeyInfo, 0)
	for rows.Next() {
		var (
			fk       base.ForeignKeyInfo
			refTable sql.NullString
			refCol   sql.NullString
		)
		if err := rows.Scan(&fk.Name, &fk.Column, &refTable, &refCol); err != nil {
			return nil, err
		}
		fk.ReferencedTable = refTable.String
		fk.ReferencedColumn = refCol.String
		keys = append(keys, fk)
	}
	return keys, rows.Err()
}
