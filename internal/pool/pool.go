// Package pool implements a bounded connection pool over database/sql,
// with acquisition timeout, idle and max-lifetime eviction, and leak
// detection for long-held leases.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrPoolExhausted is returned by Acquire when no connection becomes
// available before acquisitionTimeout elapses.
var ErrPoolExhausted = errors.New("pool: acquisition timed out")

// ErrClosed is returned by Acquire once the pool has been closed.
var ErrClosed = errors.New("pool: closed")

// Lease is a leased database connection. Callers must call Release
// exactly once on every exit path, including error paths.
type Lease struct {
	Conn *sql.Conn

	pool       *Pool
	createdAt  time.Time
	acquiredAt time.Time
	site       string
	leakTimer  *time.Timer
	released   bool
	mu         sync.Mutex
}

// Config carries the pool's tunable bounds. All fields are expected
// to already satisfy dbconfig.ServerConfig's strictly-positive
// invariant; Pool does not re-validate them.
type Config struct {
	MaxSize                int
	AcquisitionTimeout     time.Duration
	IdleTimeout            time.Duration
	MaxLifetime            time.Duration
	LeakDetectionThreshold time.Duration
}

type pooledConn struct {
	conn       *sql.Conn
	createdAt  time.Time
	lastUsedAt time.Time
}

// Pool is a bounded pool of *sql.Conn leased out one at a time per
// caller via Acquire/Release. It owns no knowledge of SQL semantics;
// it only manages connection lifetime and concurrency bounds.
type Pool struct {
	db  *sql.DB
	cfg Config

	mu     sync.Mutex
	idle   []*pooledConn
	active int
	closed bool
	sem    chan struct{}

	stopEviction chan struct{}
	evictionDone chan struct{}
}

// New creates a Pool backed by db, bounded and evicted per cfg. It
// starts a background goroutine that evicts idle and expired
// connections; call Close to stop it and drain all connections.
func New(db *sql.DB, cfg Config) *Pool {
	p := &Pool{
		db:           db,
		cfg:          cfg,
		sem:          make(chan struct{}, cfg.MaxSize),
		stopEviction: make(chan struct{}),
		evictionDone: make(chan struct{}),
	}
	go p.evictionLoop()
	return p
}

// Acquire blocks until a connection is available, the acquisition
// timeout elapses, or the pool is closed. The caller's acquisition
// site (e.g. a method name) is recorded for leak-detection logging.
func (p *Pool) Acquire(ctx context.Context, site string) (*Lease, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	acqCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquisitionTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-acqCtx.Done():
		return nil, ErrPoolExhausted
	}

	pc, err := p.takeLocked(acqCtx)
	if err != nil {
		<-p.sem
		return nil, err
	}

	lease := &Lease{
		Conn:       pc.conn,
		pool:       p,
		createdAt:  pc.createdAt,
		acquiredAt: time.Now(),
		site:       site,
	}
	if p.cfg.LeakDetectionThreshold > 0 {
		lease.leakTimer = time.AfterFunc(p.cfg.LeakDetectionThreshold, func() {
			slog.Warn("pool: connection held past leak detection threshold",
				"site", site, "held_for", time.Since(lease.acquiredAt).String())
		})
	}
	return lease, nil
}

// takeLocked returns an idle connection if one is fresh (under
// MaxLifetime), otherwise opens a new one.
func (p *Pool) takeLocked(ctx context.Context) (*pooledConn, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		pc := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if p.cfg.MaxLifetime > 0 && time.Since(pc.createdAt) > p.cfg.MaxLifetime {
			pc.conn.Close()
			p.mu.Lock()
			continue
		}
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		return pc, nil
	}
	p.mu.Unlock()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool: open connection: %w", err)
	}
	now := time.Now()
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	return &pooledConn{conn: conn, createdAt: now, lastUsedAt: now}, nil
}

// Release returns the lease's connection to the pool, or closes it
// if it has exceeded MaxLifetime. Release is idempotent; calling it
// more than once is a no-op after the first call.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()

	if l.leakTimer != nil {
		l.leakTimer.Stop()
	}
	l.pool.release(l.Conn, l.createdAt)
}

func (p *Pool) release(conn *sql.Conn, createdAt time.Time) {
	defer func() { <-p.sem }()

	p.mu.Lock()
	p.active--
	closed := p.closed
	p.mu.Unlock()

	if closed {
		conn.Close()
		return
	}

	pc := &pooledConn{conn: conn, createdAt: createdAt, lastUsedAt: time.Now()}
	if p.cfg.MaxLifetime > 0 && time.Since(createdAt) > p.cfg.MaxLifetime {
		conn.Close()
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, pc)
	p.mu.Unlock()
}

func (p *Pool) evictionLoop() {
	defer close(p.evictionDone)

	interval := p.cfg.IdleTimeout
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopEviction:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	if p.cfg.IdleTimeout <= 0 {
		return
	}
	now := time.Now()

	p.mu.Lock()
	kept := p.idle[:0]
	var stale []*pooledConn
	for _, pc := range p.idle {
		if now.Sub(pc.lastUsedAt) > p.cfg.IdleTimeout {
			stale = append(stale, pc)
		} else {
			kept = append(kept, pc)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, pc := range stale {
		pc.conn.Close()
	}
}

// Close stops the eviction loop and closes every idle connection.
// Close is idempotent; leases already in flight are closed as they
// are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stopEviction)
	<-p.evictionDone

	var firstErr error
	for _, pc := range idle {
		if err := pc.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
