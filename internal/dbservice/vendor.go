package dbservice

import (
	"context"
	"database/sql"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
)

const unableToRetrieve = "Unable to retrieve"

// scanSingleString scans a one-column row into a string, used by the
// vendor metadata lookups below. Each lookup is individually
// try-wrapped: failure degrades to unableToRetrieve rather than
// failing the whole info/data-dictionary render.
func scanSingleString(row *sql.Row) (string, error) {
	var v sql.NullString
	if err := row.Scan(&v); err != nil {
		return "", err
	}
	if !v.Valid {
		return "", nil
	}
	return v.String, nil
}

var characterSetQueries = map[dbconfig.DatabaseType]string{
	dbconfig.MySQL:      "SELECT @@character_set_database",
	dbconfig.MariaDB:    "SELECT @@character_set_database",
	dbconfig.PostgreSQL: "SHOW server_encoding",
	dbconfig.Redshift:   "SHOW server_encoding",
	dbconfig.SQLite:     "PRAGMA encoding",
}

var timezoneQueries = map[dbconfig.DatabaseType]string{
	dbconfig.MySQL:      "SELECT @@system_time_zone",
	dbconfig.MariaDB:    "SELECT @@system_time_zone",
	dbconfig.PostgreSQL: "SHOW TIMEZONE",
	dbconfig.Redshift:   "SHOW TIMEZONE",
}

// characterSetInfo runs the vendor-specific lookup for this service's
// database type and returns its value, or unableToRetrieve on any
// failure (unsupported vendor, driver error, or no rows).
func (s *Service) characterSetInfo(ctx context.Context, conn queryer) string {
	query, ok := characterSetQueries[s.cfg.DatabaseType()]
	if !ok {
		return unableToRetrieve
	}
	v, err := scanSingleString(conn.QueryRowContext(ctx, query))
	if err != nil || v == "" {
		return unableToRetrieve
	}
	return v
}

// timezoneInfo mirrors characterSetInfo for the system/session time
// zone.
func (s *Service) timezoneInfo(ctx context.Context, conn queryer) string {
	query, ok := timezoneQueries[s.cfg.DatabaseType()]
	if !ok {
		return unableToRetrieve
	}
	v, err := scanSingleString(conn.QueryRowContext(ctx, query))
	if err != nil || v == "" {
		return unableToRetrieve
	}
	return v
}
