package dbservice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
)

var errUnsupported = errors.New("dbservice: schema enumeration not supported for this driver")

type tableMeta struct {
	Name string
	Type string // "TABLE" or "VIEW"
}

type columnMeta struct {
	Name     string
	Type     string
	Size     sql.NullInt64
	Nullable bool
	Default  sql.NullString
}

type keyMeta struct {
	ColumnName string
}

type foreignKeyMeta struct {
	ColumnName string
	RefTable   string
	RefColumn  string
	Name       string
}

type indexMeta struct {
	Name   string
	Unique bool
	Type   sql.NullString
}

// listTablesAndViews enumerates tables and views visible to the
// connection. It is vendor-specific; SQLite uses sqlite_master, all
// other supported vendors use information_schema.tables (which
// PostgreSQL, MySQL/MariaDB, Redshift, and SQL Server all expose in
// compatible shape).
func (s *Service) listTablesAndViews(ctx context.Context, conn queryer) ([]tableMeta, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		rows, err := conn.QueryContext(ctx,
			`SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []tableMeta
		for rows.Next() {
			var name, typ string
			if err := rows.Scan(&name, &typ); err != nil {
				return nil, err
			}
			kind := "TABLE"
			if typ == "view" {
				kind = "VIEW"
			}
			out = append(out, tableMeta{Name: name, Type: kind})
		}
		return out, rows.Err()
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT table_name, table_type FROM information_schema.tables WHERE table_schema NOT IN ('information_schema', 'pg_catalog') ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tableMeta
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		kind := "TABLE"
		if typ != "BASE TABLE" {
			kind = "VIEW"
		}
		out = append(out, tableMeta{Name: name, Type: kind})
	}
	return out, rows.Err()
}

// listSchemas enumerates non-empty schema names. Unsupported drivers
// return (nil, err); callers swallow the error at DEBUG and produce no
// schema entries, per spec.
func (s *Service) listSchemas(ctx context.Context, conn queryer) ([]string, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		return nil, errUnsupported
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT DISTINCT table_schema FROM information_schema.tables WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'sys') ORDER BY table_schema`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out, rows.Err()
}

// tableExists reports whether name is present among tables/views.
func (s *Service) tableExists(ctx context.Context, conn queryer, name string) (bool, error) {
	tables, err := s.listTablesAndViews(ctx, conn)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// schemaExists reports whether name is present among known schemas.
func (s *Service) schemaExists(ctx context.Context, conn queryer, name string) (bool, error) {
	schemas, err := s.listSchemas(ctx, conn)
	if err != nil {
		return false, err
	}
	for _, sc := range schemas {
		if sc == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) listColumns(ctx context.Context, conn queryer, table string) ([]columnMeta, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		rows, err := conn.QueryContext(ctx, `PRAGMA table_info(`+quoteSQLiteIdent(table)+`)`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []columnMeta
		for rows.Next() {
			var cid int
			var name, typ string
			var notNull int
			var dflt sql.NullString
			var pk int
			if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
				return nil, err
			}
			out = append(out, columnMeta{
				Name:     name,
				Type:     typ,
				Nullable: notNull == 0,
				Default:  dflt,
			})
		}
		return out, rows.Err()
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnMeta
	for rows.Next() {
		var name, typ, nullable string
		var size sql.NullInt64
		var dflt sql.NullString
		if err := rows.Scan(&name, &typ, &size, &nullable, &dflt); err != nil {
			return nil, err
		}
		out = append(out, columnMeta{
			Name:     name,
			Type:     typ,
			Size:     size,
			Nullable: nullable == "YES",
			Default:  dflt,
		})
	}
	return out, rows.Err()
}

func (s *Service) listPrimaryKeys(ctx context.Context, conn queryer, table string) ([]keyMeta, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		rows, err := conn.QueryContext(ctx, `PRAGMA table_info(`+quoteSQLiteIdent(table)+`)`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []keyMeta
		for rows.Next() {
			var cid int
			var name, typ string
			var notNull int
			var dflt sql.NullString
			var pk int
			if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
				return nil, err
			}
			if pk > 0 {
				out = append(out, keyMeta{ColumnName: name})
			}
		}
		return out, rows.Err()
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_name = kcu.table_name
		WHERE tc.table_name = ? AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []keyMeta
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		out = append(out, keyMeta{ColumnName: col})
	}
	return out, rows.Err()
}

func (s *Service) listForeignKeys(ctx context.Context, conn queryer, table string) ([]foreignKeyMeta, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		rows, err := conn.QueryContext(ctx, `PRAGMA foreign_key_list(`+quoteSQLiteIdent(table)+`)`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []foreignKeyMeta
		for rows.Next() {
			cols := make([]sql.NullString, 8)
			dest := make([]any, 8)
			for i := range cols {
				dest[i] = &cols[i]
			}
			if err := rows.Scan(dest...); err != nil {
				return nil, err
			}
			// id, seq, table, from, to, on_update, on_delete, match
			out = append(out, foreignKeyMeta{
				ColumnName: cols[3].String,
				RefTable:   cols[2].String,
				RefColumn:  cols[4].String,
				Name:       "fk_" + table + "_" + cols[3].String,
			})
		}
		return out, rows.Err()
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_name, ccu.column_name, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_name = kcu.table_name
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
		WHERE tc.table_name = ? AND tc.constraint_type = 'FOREIGN KEY'`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []foreignKeyMeta
	for rows.Next() {
		var fk foreignKeyMeta
		if err := rows.Scan(&fk.ColumnName, &fk.RefTable, &fk.RefColumn, &fk.Name); err != nil {
			return nil, err
		}
		out = append(out, fk)
	}
	return out, rows.Err()
}

func (s *Service) listIndexes(ctx context.Context, conn queryer, table string) ([]indexMeta, error) {
	if s.cfg.DatabaseType() == dbconfig.SQLite {
		rows, err := conn.QueryContext(ctx, `PRAGMA index_list(`+quoteSQLiteIdent(table)+`)`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []indexMeta
		for rows.Next() {
			var seq int
			var name string
			var unique int
			var origin, partial sql.NullString
			if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
				return nil, err
			}
			out = append(out, indexMeta{Name: name, Unique: unique != 0})
		}
		return out, rows.Err()
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT indexname, indexdef FROM pg_indexes WHERE tablename = ?`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []indexMeta
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		out = append(out, indexMeta{Name: name, Unique: containsUnique(def)})
	}
	return dedupeIndexes(out), rows.Err()
}

func dedupeIndexes(in []indexMeta) []indexMeta {
	seen := make(map[string]bool, len(in))
	var out []indexMeta
	for _, idx := range in {
		if seen[idx.Name] {
			continue
		}
		seen[idx.Name] = true
		out = append(out, idx)
	}
	return out
}

func containsUnique(def string) bool {
	for i := 0; i+6 <= len(def); i++ {
		if def[i:i+6] == "UNIQUE" {
			return true
		}
	}
	return false
}

func quoteSQLiteIdent(name string) string {
	return "'" + name + "'"
}

// queryer is the minimal surface metadata lookups need; satisfied by
// *sql.Conn.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
