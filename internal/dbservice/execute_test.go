package dbservice

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/pool"
)

func newTestService(t *testing.T, selectOnly bool) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg, err := dbconfig.New(dbconfig.Params{
		URL:                      "mock://test",
		Driver:                   "mock",
		MaxConnections:           4,
		ConnectionTimeoutMs:      1000,
		QueryTimeoutSeconds:      5,
		SelectOnly:               selectOnly,
		MaxSqlLength:             4096,
		MaxRowsLimit:             1000,
		IdleTimeoutMs:            60000,
		MaxLifetimeMs:            1800000,
		LeakDetectionThresholdMs: 10000,
	})
	if err != nil {
		t.Fatalf("dbconfig.New: %v", err)
	}

	p := pool.New(db, pool.Config{
		MaxSize:            4,
		AcquisitionTimeout: time.Second,
		IdleTimeout:        time.Hour,
		MaxLifetime:        time.Hour,
	})
	t.Cleanup(func() { p.Close() })

	return New(db, p, cfg, nil), mock
}

func TestExecuteSQLSelect(t *testing.T) {
	svc, mock := newTestService(t, false)

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "alice").
		AddRow(2, "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)

	result, err := svc.ExecuteSQL(context.Background(), "SELECT id, name FROM users", 1000, nil)
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "id" || result.Columns[1] != "name" {
		t.Fatalf("unexpected columns: %v", result.Columns)
	}
	if result.RowCount != 2 || len(result.Rows) != 2 {
		t.Fatalf("unexpected row count: %d (%d rows)", result.RowCount, len(result.Rows))
	}
}

func TestExecuteSQLRowCap(t *testing.T) {
	svc, mock := newTestService(t, false)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(rows)

	result, err := svc.ExecuteSQL(context.Background(), "SELECT id FROM users", 2, nil)
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if result.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2 (capped)", result.RowCount)
	}
}

func TestExecuteSQLDML(t *testing.T) {
	svc, mock := newTestService(t, false)

	mock.ExpectExec("UPDATE users SET name = ?").WillReturnResult(sqlmock.NewResult(0, 3))

	result, err := svc.ExecuteSQL(context.Background(), "UPDATE users SET name = 'x'", 1000, nil)
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if len(result.Columns) != 1 || result.Columns[0] != "affected_rows" {
		t.Fatalf("unexpected columns for DML result: %v", result.Columns)
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("affected_rows = %v, want 3", result.Rows[0][0])
	}
}

func TestExecuteSQLSelectOnlyRejectsDML(t *testing.T) {
	svc, _ := newTestService(t, true)

	_, err := svc.ExecuteSQL(context.Background(), "DROP TABLE users", 1000, nil)
	if err == nil {
		t.Fatal("expected validation error in select-only mode")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func TestExecuteSQLSelectOnlyAllowsSelect(t *testing.T) {
	svc, mock := newTestService(t, true)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1)
	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(rows)

	_, err := svc.ExecuteSQL(context.Background(), "SELECT id FROM users", 1000, nil)
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
}

func TestExecuteSQLWithArgs(t *testing.T) {
	svc, mock := newTestService(t, false)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(7)
	mock.ExpectQuery("SELECT id FROM users WHERE name = ?").WithArgs("alice").WillReturnRows(rows)

	result, err := svc.ExecuteSQL(context.Background(), "SELECT id FROM users WHERE name = ?", 1000, []any{"alice"})
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("RowCount = %d, want 1", result.RowCount)
	}
}
