// Package dbconfig holds the immutable, self-validating configuration
// record that every other component is constructed from.
package dbconfig

import (
	"fmt"
	"strings"
)

// DatabaseType is the closed taxonomy of vendors the rest of the
// system branches on (metadata queries, syntax hints, driver choice).
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	MariaDB    DatabaseType = "mariadb"
	PostgreSQL DatabaseType = "postgresql"
	H2         DatabaseType = "h2"
	SQLite     DatabaseType = "sqlite"
	Oracle     DatabaseType = "oracle"
	DB2        DatabaseType = "db2"
	SQLServer  DatabaseType = "sqlserver"
	Redshift   DatabaseType = "redshift"
	Snowflake  DatabaseType = "snowflake"
	BigQuery   DatabaseType = "bigquery"
	ClickHouse DatabaseType = "clickhouse"
	Hive       DatabaseType = "hive"
	Spark      DatabaseType = "spark"
	Cassandra  DatabaseType = "cassandra"
	MongoDB    DatabaseType = "mongodb"
	Unknown    DatabaseType = "unknown"
)

// urlHints maps a case-insensitive URL substring to the database type
// it implies. Order matters: more specific vendors must be checked
// before substrings they contain (e.g. "mariadb" before "mysql" would
// be wrong the other way around, since neither is a substring of the
// other, but "postgresql" vs "postgres" style collisions are why this
// is a slice, not a map: first match wins).
var urlHints = []struct {
	substr string
	typ    DatabaseType
}{
	{"mariadb", MariaDB},
	{"mysql", MySQL},
	{"postgresql", PostgreSQL},
	{"postgres", PostgreSQL},
	{"cockroachdb", PostgreSQL},
	{"h2:", H2},
	{"sqlite", SQLite},
	{"oracle", Oracle},
	{"db2", DB2},
	{"sqlserver", SQLServer},
	{"redshift", Redshift},
	{"snowflake", Snowflake},
	{"bigquery", BigQuery},
	{"clickhouse", ClickHouse},
	{"hive", Hive},
	{"spark", Spark},
	{"cassandra", Cassandra},
	{"mongodb", MongoDB},
}

// ServerConfig is the immutable set of tunables every component is
// built from. Construct it with New, which validates and derives
// DatabaseType; there is no exported way to build one with invalid
// invariants.
type ServerConfig struct {
	url      string
	user     string
	password string
	driver   string

	maxConnections           int
	connectionTimeoutMs      int
	queryTimeoutSeconds      int
	selectOnly               bool
	maxSqlLength             int
	maxRowsLimit             int
	idleTimeoutMs            int
	maxLifetimeMs            int
	leakDetectionThresholdMs int

	databaseType DatabaseType
}

// Params is the plain, unvalidated input to New. Every field mirrors
// a ServerConfig accessor.
type Params struct {
	URL      string
	User     string
	Password string
	Driver   string

	MaxConnections           int
	ConnectionTimeoutMs      int
	QueryTimeoutSeconds      int
	SelectOnly               bool
	MaxSqlLength             int
	MaxRowsLimit             int
	IdleTimeoutMs            int
	MaxLifetimeMs            int
	LeakDetectionThresholdMs int
}

// ValidationError aggregates every invariant violation found while
// constructing a ServerConfig, so a caller sees all of them at once
// rather than one at a time.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(e.Errors, "; "))
}

// New validates p and, if valid, returns an immutable ServerConfig
// with DatabaseType derived from the URL. On any invariant violation
// it returns a *ValidationError and a zero ServerConfig.
func New(p Params) (ServerConfig, error) {
	var errs []string

	if strings.TrimSpace(p.URL) == "" {
		errs = append(errs, "url: must not be empty")
	}
	if strings.TrimSpace(p.Driver) == "" {
		errs = append(errs, "driver: must not be empty")
	}
	positiveInts := []struct {
		name string
		val  int
	}{
		{"maxConnections", p.MaxConnections},
		{"connectionTimeoutMs", p.ConnectionTimeoutMs},
		{"queryTimeoutSeconds", p.QueryTimeoutSeconds},
		{"maxSqlLength", p.MaxSqlLength},
		{"maxRowsLimit", p.MaxRowsLimit},
		{"idleTimeoutMs", p.IdleTimeoutMs},
		{"maxLifetimeMs", p.MaxLifetimeMs},
		{"leakDetectionThresholdMs", p.LeakDetectionThresholdMs},
	}
	for _, f := range positiveInts {
		if f.val <= 0 {
			errs = append(errs, fmt.Sprintf("%s: must be strictly positive, got %d", f.name, f.val))
		}
	}

	if len(errs) > 0 {
		return ServerConfig{}, &ValidationError{Errors: errs}
	}

	return ServerConfig{
		url:                      p.URL,
		user:                     p.User,
		password:                 p.Password,
		driver:                   p.Driver,
		maxConnections:           p.MaxConnections,
		connectionTimeoutMs:      p.ConnectionTimeoutMs,
		queryTimeoutSeconds:      p.QueryTimeoutSeconds,
		selectOnly:               p.SelectOnly,
		maxSqlLength:             p.MaxSqlLength,
		maxRowsLimit:             p.MaxRowsLimit,
		idleTimeoutMs:            p.IdleTimeoutMs,
		maxLifetimeMs:            p.MaxLifetimeMs,
		leakDetectionThresholdMs: p.LeakDetectionThresholdMs,
		databaseType:             deriveDatabaseType(p.URL),
	}, nil
}

func deriveDatabaseType(url string) DatabaseType {
	lower := strings.ToLower(url)
	for _, hint := range urlHints {
		if strings.Contains(lower, hint.substr) {
			return hint.typ
		}
	}
	return Unknown
}

func (c ServerConfig) URL() string      { return c.url }
func (c ServerConfig) User() string     { return c.user }
func (c ServerConfig) Password() string { return c.password }
func (c ServerConfig) Driver() string   { return c.driver }

func (c ServerConfig) MaxConnections() int      { return c.maxConnections }
func (c ServerConfig) ConnectionTimeoutMs() int { return c.connectionTimeoutMs }
func (c ServerConfig) QueryTimeoutSeconds() int { return c.queryTimeoutSeconds }
func (c ServerConfig) SelectOnly() bool         { return c.selectOnly }
func (c ServerConfig) MaxSqlLength() int        { return c.maxSqlLength }
func (c ServerConfig) MaxRowsLimit() int        { return c.maxRowsLimit }
func (c ServerConfig) IdleTimeoutMs() int       { return c.idleTimeoutMs }
func (c ServerConfig) MaxLifetimeMs() int       { return c.maxLifetimeMs }
func (c ServerConfig) LeakDetectionThresholdMs() int {
	return c.leakDetectionThresholdMs
}

func (c ServerConfig) DatabaseType() DatabaseType { return c.databaseType }
