package dbservice

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
)

// OpenDB opens a *sql.DB for cfg using cfg.Driver() as the
// database/sql driver name (e.g. "sqlite", "mysql", "pgx") and
// cfg.URL() as the data source name, and verifies connectivity with a
// ping bounded by ConnectionTimeoutMs.
func OpenDB(ctx context.Context, cfg dbconfig.ServerConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver(), cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("dbservice: open %s: %w", cfg.Driver(), err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections())

	pingCtx, cancel := context.WithTimeout(ctx, msToDuration(cfg.ConnectionTimeoutMs()))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbservice: ping %s: %w", cfg.Driver(), err)
	}

	return db, nil
}
