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

	"sqlgate/gateway/base"
	"sqlgate/gateway/pool"
)

// PostgresDialect discovers schema through information_schema and
// pg_catalog. PostgreSQL connections are bound to a single database, so the
// gateway's "database" argument maps to a schema (namespace) within the
// connected database; the engine's own namespaces are filtered out.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string {
	return "postgres"
}

func (d *PostgresDialect) ListDatabases(ctx context.Context, conn pool.Conn) ([]base.DatabaseInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND schema_name NOT LIKE 'pg_temp_%'
		ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	databases := make([]base.DatabaseInfo, 0)
	for rows.Next() {
		var db base.DatabaseInfo
		if err := rows.Scan(&db.Name); err != nil {
			return nil, err
		}
		databases = append(databases, db)
	}
	return databases, rows.Err()
}

func (d *PostgresDialect) ListTables(ctx context.Context, conn pool.Conn, database string) ([]base.TableInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT c.relname,
		       GREATEST(c.reltuples, 0)::bigint,
		       COALESCE(pg_total_relation_size(c.oid), 0),
		       COALESCE(obj_description(c.oid, 'pg_class'), '')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'r'
		ORDER BY c.relname`, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tables := make([]base.TableInfo, 0)
	for rows.Next() {
		var t base.TableInfo
		if err := rows.Scan(&t.Name, &t.RowCount, &t.SizeBytes, &t.Comment); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (d *PostgresDialect) DescribeTable(ctx context.Context, conn pool.Conn, database, table string) (*base.SchemaDescription, error) {
	columns, err := d.listColumns(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, ErrNotFound
	}

	primaryKeys, err := d.listPrimaryKeys(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}

	indexes, err := d.listIndexes(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}

	foreignKeys, err := d.listForeignKeys(ctx, conn, database, table)
	if err != nil {
		return nil, err
	}

	pkSet := make(map[string]bool, len(primaryKeys))
	for _, pk := range primaryKeys {
		pkSet[pk] = true
	}
	fkSet := make(map[string]bool, len(foreignKeys))
	for _, fk := range foreignKeys {
		fkSet[fk.Column] = true
	}
	for i := range columns {
		columns[i].PrimaryKey = pkSet[columns[i].Name]
		columns[i].ForeignKey = fkSet[columns[i].Name]
	}

	return &base.SchemaDescription{
		Database:    database,
		Table:       table,
		Columns:     columns,
		Indexes:     indexes,
		PrimaryKeys: primaryKeys,
		ForeignKeys: foreignKeys,
	}, nil
}

func (d *PostgresDialect) listColumns(ctx context.Context, conn pool.Conn, database, table string) ([]base.ColumnInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, ''),
		       COALESCE(character_maximum_length, 0),
		       COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0),
		       ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
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
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Default,
			&col.MaxLength, &col.Precision, &col.Scale, &col.OrdinalIndex); err != nil {
			return nil, err
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (d *PostgresDialect) listPrimaryKeys(ctx context.Context, conn pool.Conn, database, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = $1 AND c.relname = $2 AND i.indisprimary
		ORDER BY a.attnum`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		keys = append(keys, name)
	}
	return keys, rows.Err()
}

func (d *PostgresDialect) listIndexes(ctx context.Context, conn pool.Conn, database, table string) ([]base.IndexInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT i.relname, a.attname, ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		ORDER BY i.relname, a.attnum`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byName := make(map[string]*base.IndexInfo)
	order := make([]string, 0)
	for rows.Next() {
		var (
			name   string
			column string
			unique bool
		)
		if err := rows.Scan(&name, &column, &unique); err != nil {
			return nil, err
		}
		idx, exists := byName[name]
		if !exists {
			idx = &base.IndexInfo{Name: name, Unique: unique}
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

func (d *PostgresDialect) listForeignKeys(ctx context.Context, conn pool.Conn, database, table string) ([]base.ForeignKeyInfo, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name`, database, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	keys := make([]base.ForeignKeyInfo, 0)
	for rows.Next() {
		var fk base.ForeignKeyInfo
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		keys = append(keys, fk)
	}
	return keys, rows.Err()
}
