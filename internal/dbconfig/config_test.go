package dbconfig

import "testing"

func validParams() Params {
	return Params{
		URL:                      "jdbc:mysql://localhost:3306/app",
		User:                     "root",
		Password:                 "secret",
		Driver:                   "mysql",
		MaxConnections:           10,
		ConnectionTimeoutMs:      5000,
		QueryTimeoutSeconds:      30,
		SelectOnly:               true,
		MaxSqlLength:             4096,
		MaxRowsLimit:             1000,
		IdleTimeoutMs:            60000,
		MaxLifetimeMs:            1800000,
		LeakDetectionThresholdMs: 10000,
	}
}

func TestNewValid(t *testing.T) {
	cfg, err := New(validParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseType() != MySQL {
		t.Errorf("DatabaseType() = %q, want %q", cfg.DatabaseType(), MySQL)
	}
	if cfg.MaxConnections() != 10 {
		t.Errorf("MaxConnections() = %d, want 10", cfg.MaxConnections())
	}
}

func TestNewEmptyURL(t *testing.T) {
	p := validParams()
	p.URL = ""
	if _, err := New(p); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestNewEmptyDriver(t *testing.T) {
	p := validParams()
	p.Driver = "  "
	if _, err := New(p); err == nil {
		t.Fatal("expected error for blank driver")
	}
}

func TestNewNonPositiveLimits(t *testing.T) {
	p := validParams()
	p.MaxConnections = 0
	p.MaxRowsLimit = -1
	_, err := New(p)
	if err == nil {
		t.Fatal("expected error for non-positive limits")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
}

func TestDeriveDatabaseType(t *testing.T) {
	cases := []struct {
		url  string
		want DatabaseType
	}{
		{"jdbc:mariadb://host/db", MariaDB},
		{"jdbc:mysql://host/db", MySQL},
		{"jdbc:postgresql://host/db", PostgreSQL},
		{"postgres://host/db", PostgreSQL},
		{"jdbc:h2:mem:test", H2},
		{"jdbc:sqlite:file:test.db", SQLite},
		{"jdbc:oracle:thin:@host:1521:orcl", Oracle},
		{"jdbc:db2://host/db", DB2},
		{"jdbc:sqlserver://host;databaseName=db", SQLServer},
		{"jdbc:redshift://host/db", Redshift},
		{"jdbc:snowflake://account/db", Snowflake},
		{"jdbc:bigquery://project/dataset", BigQuery},
		{"jdbc:clickhouse://host/db", ClickHouse},
		{"jdbc:hive2://host/db", Hive},
		{"jdbc:spark://host/db", Spark},
		{"jdbc:cassandra://host/keyspace", Cassandra},
		{"mongodb://host/db", MongoDB},
		{"jdbc:weirddb://host/db", Unknown},
	}
	for _, c := range cases {
		p := validParams()
		p.URL = c.url
		cfg, err := New(p)
		if err != nil {
			t.Fatalf("New(%q) unexpected error: %v", c.url, err)
		}
		if cfg.DatabaseType() != c.want {
			t.Errorf("DatabaseType(%q) = %q, want %q", c.url, cfg.DatabaseType(), c.want)
		}
	}
}
