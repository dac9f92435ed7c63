// Package dbservice owns the connection pool and is the only
// component that executes SQL or introspects database metadata. It
// renders resource content and query results but never touches the
// MCP wire protocol.
package dbservice

import (
	"context"
	"database/sql"
	"time"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/pool"
	"github.com/dbmcp/dbmcp/internal/registry"
)

// QueryResult is the immutable outcome of executing one SQL
// statement.
type QueryResult struct {
	Columns         []string
	Rows            [][]any
	RowCount        int
	ExecutionTimeMs int64
}

// DatabaseResource is a single entry in the database:// resource
// catalog. Content is nil when it is produced lazily on read.
type DatabaseResource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Content     *string
}

// Service is the database access layer: it owns the pool, executes
// SQL with per-query row caps and timeouts, and renders resource
// metadata. It is safe for concurrent use.
type Service struct {
	db   *sql.DB
	pool *pool.Pool
	cfg  dbconfig.ServerConfig
	reg  *registry.Registry
}

// New constructs a Service over an already-open database handle and
// a pool leasing connections from it.
func New(db *sql.DB, p *pool.Pool, cfg dbconfig.ServerConfig, reg *registry.Registry) *Service {
	return &Service{db: db, pool: p, cfg: cfg, reg: reg}
}

// DatabaseType returns the config-derived vendor tag this service was
// constructed for.
func (s *Service) DatabaseType() dbconfig.DatabaseType {
	return s.cfg.DatabaseType()
}

// Ping briefly acquires and releases a pooled connection to verify
// connectivity, for the HTTP health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	lease, err := s.pool.Acquire(ctx, "Ping")
	if err != nil {
		return err
	}
	defer lease.Release()
	return lease.Conn.PingContext(ctx)
}

// Close releases the service's pool. It does not close the
// underlying *sql.DB; whoever opened it closes it. After Close, Ping
// and every other call that acquires a connection fails.
func (s *Service) Close() error {
	return s.pool.Close()
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}
