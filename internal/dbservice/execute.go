package dbservice

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// resultProducingTokens are normalized first tokens of statements that
// return a row set rather than an update count, across the vendors
// this service supports (SELECT everywhere, SHOW/DESCRIBE in MySQL,
// PRAGMA in SQLite, WITH for CTEs, EXPLAIN everywhere).
var resultProducingTokens = map[string]bool{
	"select": true, "with": true, "show": true, "describe": true,
	"desc": true, "explain": true, "pragma": true,
}

// ExecuteSQL runs sql against the database, capping returned rows at
// maxRows and binding args as positional placeholder parameters
// (nil when the caller supplied none). In select-only mode, sql is
// rejected by the validator before anything is sent to the driver.
// The connection is always released, on every exit path.
func (s *Service) ExecuteSQL(ctx context.Context, sqlText string, maxRows int, args []any) (QueryResult, error) {
	if s.cfg.SelectOnly() {
		if err := validateSelectOnly(sqlText); err != nil {
			return QueryResult{}, err
		}
	}

	lease, err := s.pool.Acquire(ctx, "ExecuteSQL")
	if err != nil {
		return QueryResult{}, fmt.Errorf("dbservice: acquire connection: %w", err)
	}
	defer lease.Release()

	queryCtx, cancel := context.WithTimeout(ctx, secondsToDuration(s.cfg.QueryTimeoutSeconds()))
	defer cancel()

	start := time.Now()

	if producesResultSet(sqlText) {
		result, err := s.executeQuery(queryCtx, lease.Conn, sqlText, maxRows, args)
		if err != nil {
			return QueryResult{}, err
		}
		result.ExecutionTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	res, err := lease.Conn.ExecContext(queryCtx, sqlText, args...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("dbservice: exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return QueryResult{
		Columns:         []string{"affected_rows"},
		Rows:            [][]any{{affected}},
		RowCount:        1,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func producesResultSet(sqlText string) bool {
	normalized := normalizeSQL(sqlText)
	first := normalized
	if sp := strings.IndexByte(normalized, ' '); sp >= 0 {
		first = normalized[:sp]
	}
	return resultProducingTokens[first]
}

func (s *Service) executeQuery(ctx context.Context, conn *sql.Conn, sqlText string, maxRows int, args []any) (QueryResult, error) {
	rows, err := conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("dbservice: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("dbservice: columns: %w", err)
	}
	if columns == nil {
		columns = []string{}
	}

	var out [][]any
	rowCount := 0
	for rows.Next() {
		if rowCount >= maxRows {
			break
		}
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return QueryResult{}, fmt.Errorf("dbservice: scan row: %w", err)
		}
		for i := range values {
			values[i] = normalizeCell(values[i])
		}
		out = append(out, values)
		rowCount++
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("dbservice: row iteration: %w", err)
	}
	if out == nil {
		out = [][]any{}
	}

	return QueryResult{
		Columns:  columns,
		Rows:     out,
		RowCount: rowCount,
	}, nil
}

// normalizeCell converts driver-native scan values into stable,
// JSON/text-friendly representations. Byte slices become strings
// (most drivers report TEXT/VARCHAR columns as []byte); times are
// left as time.Time for callers to format.
func normalizeCell(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return t
	}
}
