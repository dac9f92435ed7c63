package main

import (
	"log/slog"
	"os"
)

// Config holds the bootstrap configuration loaded from environment
// variables, with --key=value flag overrides applied on top. This is
// a minimal env/flag reader, not a general CLI framework: full
// config-file parsing and flag help text are out of scope.
type Config struct {
	Mode     string // "stdio", "http", or "both"
	HTTPAddr string // "127.0.0.1:8080"

	DBURL    string
	DBUser   string
	DBPass   string
	DBDriver string

	MaxConnections           int
	ConnectionTimeoutMs      int
	QueryTimeoutSeconds      int
	SelectOnly               bool
	MaxSqlLength             int
	MaxRowsLimit             int
	IdleTimeoutMs            int
	MaxLifetimeMs            int
	LeakDetectionThresholdMs int

	LogLevel slog.Level
}

func loadConfig() *Config {
	return &Config{
		Mode:     envOr("DBMCP_MODE", "stdio"),
		HTTPAddr: envOr("DBMCP_HTTP_ADDR", "127.0.0.1:8080"),

		DBURL:    envOr("DBMCP_DB_URL", "sqlite:file::memory:?cache=shared"),
		DBUser:   envOr("DBMCP_DB_USER", ""),
		DBPass:   envOr("DBMCP_DB_PASSWORD", ""),
		DBDriver: envOr("DBMCP_DB_DRIVER", "sqlite"),

		MaxConnections:           envOrInt("DBMCP_MAX_CONNECTIONS", 10),
		ConnectionTimeoutMs:      envOrInt("DBMCP_CONNECTION_TIMEOUT_MS", 5000),
		QueryTimeoutSeconds:      envOrInt("DBMCP_QUERY_TIMEOUT_SECONDS", 30),
		SelectOnly:               envOrBool("DBMCP_SELECT_ONLY", true),
		MaxSqlLength:             envOrInt("DBMCP_MAX_SQL_LENGTH", 4096),
		MaxRowsLimit:             envOrInt("DBMCP_MAX_ROWS_LIMIT", 1000),
		IdleTimeoutMs:            envOrInt("DBMCP_IDLE_TIMEOUT_MS", 600000),
		MaxLifetimeMs:            envOrInt("DBMCP_MAX_LIFETIME_MS", 1800000),
		LeakDetectionThresholdMs: envOrInt("DBMCP_LEAK_DETECTION_THRESHOLD_MS", 60000),

		LogLevel: parseLogLevel(envOr("DBMCP_LOG_LEVEL", "info")),
	}
}

// applyFlags parses --key=value flags from args, overriding whatever
// loadConfig read from the environment.
func applyFlags(cfg *Config, args []string) {
	for _, arg := range args {
		switch {
		case hasFlagPrefix(arg, "--mode="):
			cfg.Mode = flagValue(arg, "--mode=")
		case hasFlagPrefix(arg, "--addr="):
			cfg.HTTPAddr = flagValue(arg, "--addr=")
		case hasFlagPrefix(arg, "--db-url="):
			cfg.DBURL = flagValue(arg, "--db-url=")
		case hasFlagPrefix(arg, "--db-driver="):
			cfg.DBDriver = flagValue(arg, "--db-driver=")
		}
	}
}

func hasFlagPrefix(arg, prefix string) bool {
	return len(arg) > len(prefix) && arg[:len(prefix)] == prefix
}

func flagValue(arg, prefix string) string {
	return arg[len(prefix):]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func envOrBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return fallback
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
