// Command dbmcp exposes a relational database to MCP clients as
// tools and resources, over a newline-delimited stdio transport, an
// HTTP transport, or both at once.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/dbservice"
	"github.com/dbmcp/dbmcp/internal/mcprouter"
	"github.com/dbmcp/dbmcp/internal/pool"
	"github.com/dbmcp/dbmcp/internal/registry"
	"github.com/dbmcp/dbmcp/internal/transport/httpx"
	"github.com/dbmcp/dbmcp/internal/transport/stdio"
)

func main() {
	cfg := loadConfig()
	applyFlags(cfg, os.Args[1:])

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("dbmcp: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	scfg, err := dbconfig.New(dbconfig.Params{
		URL:                      cfg.DBURL,
		User:                     cfg.DBUser,
		Password:                 cfg.DBPass,
		Driver:                   cfg.DBDriver,
		MaxConnections:           cfg.MaxConnections,
		ConnectionTimeoutMs:      cfg.ConnectionTimeoutMs,
		QueryTimeoutSeconds:      cfg.QueryTimeoutSeconds,
		SelectOnly:               cfg.SelectOnly,
		MaxSqlLength:             cfg.MaxSqlLength,
		MaxRowsLimit:             cfg.MaxRowsLimit,
		IdleTimeoutMs:            cfg.IdleTimeoutMs,
		MaxLifetimeMs:            cfg.MaxLifetimeMs,
		LeakDetectionThresholdMs: cfg.LeakDetectionThresholdMs,
	})
	if err != nil {
		return fmt.Errorf("dbmcp: config: %w", err)
	}

	db, err := dbservice.OpenDB(ctx, scfg)
	if err != nil {
		return fmt.Errorf("dbmcp: open database: %w", err)
	}
	defer db.Close()

	p := pool.New(db, pool.Config{
		MaxSize:                scfg.MaxConnections(),
		AcquisitionTimeout:     time.Duration(scfg.ConnectionTimeoutMs()) * time.Millisecond,
		IdleTimeout:            time.Duration(scfg.IdleTimeoutMs()) * time.Millisecond,
		MaxLifetime:            time.Duration(scfg.MaxLifetimeMs()) * time.Millisecond,
		LeakDetectionThreshold: time.Duration(scfg.LeakDetectionThresholdMs()) * time.Millisecond,
	})
	defer p.Close()

	reg, err := registry.New()
	if err != nil {
		return fmt.Errorf("dbmcp: load string registry: %w", err)
	}

	svc := dbservice.New(db, p, scfg, reg)

	limits := mcprouter.Limits{
		MaxSqlLength: scfg.MaxSqlLength(),
		MaxRowsLimit: scfg.MaxRowsLimit(),
		SelectOnly:   scfg.SelectOnly(),
	}
	router := mcprouter.New(svc, reg, limits)

	switch cfg.Mode {
	case "stdio":
		return stdio.Run(ctx, router, os.Stdin, os.Stdout)
	case "http":
		return runHTTP(ctx, cfg.HTTPAddr, router, svc)
	case "both":
		return runBoth(ctx, cfg.HTTPAddr, router, svc)
	default:
		return fmt.Errorf("dbmcp: unknown mode %q (want stdio, http, or both)", cfg.Mode)
	}
}

// runBoth serves stdio and HTTP concurrently from the same router and
// service, for local development against two clients at once. The
// first transport to fail cancels the other via the shared errgroup
// context.
func runBoth(ctx context.Context, addr string, router *mcprouter.Router, svc *dbservice.Service) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return stdio.Run(gCtx, router, os.Stdin, os.Stdout)
	})
	g.Go(func() error {
		return runHTTP(gCtx, addr, router, svc)
	})

	return g.Wait()
}

func runHTTP(ctx context.Context, addr string, router *mcprouter.Router, svc *dbservice.Service) error {
	server := httpx.NewServer(router, svc)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dbmcp: http listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("dbmcp: shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dbmcp: http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dbmcp: http serve: %w", err)
		}
		return nil
	}
}
