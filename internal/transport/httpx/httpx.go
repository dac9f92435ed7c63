// Package httpx implements the HTTP transport: a health endpoint and a
// single MCP endpoint accepting JSON-RPC request objects over POST.
// Grounded on the teacher's internal/api router and middleware chain
// (request-ID tagging, structured logging, CORS, security headers),
// reduced to the two endpoints this spec calls for.
package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dbmcp/dbmcp/internal/mcprouter"
)

// HealthChecker is the minimal surface /health needs to report
// database connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server wires the MCP router and a health checker into an
// http.Handler.
type Server struct {
	router *mcprouter.Router
	health HealthChecker
}

// NewServer constructs the HTTP transport's handler dependencies.
func NewServer(router *mcprouter.Router, health HealthChecker) *Server {
	return &Server{router: router, health: health}
}

// Handler builds the routed, middleware-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/mcp", s.handleMCP)
	return requestIDMiddleware(loggingMiddleware(mux))
}

type healthResponse struct {
	Status    string `json:"status"`
	Server    string `json:"server"`
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
	Database  string `json:"database"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed. Use GET.")
		return
	}

	database := "connected"
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			database = "error: " + err.Error()
		}
	}

	resp := healthResponse{
		Status:    "ok",
		Server:    mcprouter.ServerName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		State:     s.router.State().String(),
		Database:  database,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("httpx: encode health response", "error", err)
	}
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		writeCORSHeaders(w)
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST.")
		return
	}

	writeCORSHeaders(w)

	var req mcprouter.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}

	resp := s.router.Handle(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("httpx: encode mcp response", "error", err)
	}
}

func writeCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(requestIDKey),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
