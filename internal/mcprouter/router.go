package mcprouter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/dbservice"
	"github.com/dbmcp/dbmcp/internal/registry"
)

// DatabaseService is the subset of *dbservice.Service the router
// drives. Declared as an interface so router tests can substitute a
// fake without a live database.
type DatabaseService interface {
	DatabaseType() dbconfig.DatabaseType
	ExecuteSQL(ctx context.Context, sqlText string, maxRows int, args []any) (dbservice.QueryResult, error)
	ListResources(ctx context.Context) ([]dbservice.DatabaseResource, error)
	ReadResource(ctx context.Context, uri string) (*dbservice.DatabaseResource, error)
}

// Router dispatches MCP JSON-RPC requests, enforcing the lifecycle
// state machine described in spec §4.5.3. It is safe for concurrent
// use: state transitions are serialized under mu, and the database
// service itself is safe for concurrent use by multiple callers.
type Router struct {
	svc DatabaseService
	reg *registry.Registry
	cfg Limits

	mu    sync.Mutex
	state State
}

// Limits carries the bounds tools/list advertises and tools/call
// enforces, mirroring ServerConfig's maxSqlLength/maxRowsLimit.
type Limits struct {
	MaxSqlLength int
	MaxRowsLimit int
	SelectOnly   bool
}

// New constructs a Router in the UNINITIALIZED state.
func New(svc DatabaseService, reg *registry.Registry, limits Limits) *Router {
	return &Router{svc: svc, reg: reg, cfg: limits, state: StateUninitialized}
}

// State returns the router's current lifecycle state.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Handle routes a single decoded request and returns the response to
// write, or nil for a notification (no response). It never panics:
// unexpected errors are recovered and mapped to internal_error.
func (r *Router) Handle(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("mcprouter: recovered panic", "method", req.Method, "panic", rec)
			if !req.IsNotification() {
				resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", rec))
			} else {
				resp = nil
			}
		}
	}()

	if !r.allowed(req.Method) {
		slog.Warn("mcprouter: method rejected by lifecycle state", "method", req.Method, "state", r.State())
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest,
			fmt.Sprintf("method %q not allowed in state %s", req.Method, r.State()))
	}

	if req.IsNotification() {
		r.handleNotification(req)
		return nil
	}

	result, rpcErr := r.dispatch(ctx, req)
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// allowed implements the lifecycle table in spec §4.5.3.
func (r *Router) allowed(method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateShutdown {
		return false
	}
	switch method {
	case "initialize":
		return r.state == StateUninitialized
	case "notifications/initialized":
		return r.state == StateInitializing
	default:
		return r.state == StateInitialized
	}
}

func (r *Router) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		r.mu.Lock()
		r.state = StateInitialized
		r.mu.Unlock()
		slog.Info("mcprouter: client initialized")
	default:
		slog.Debug("mcprouter: unhandled notification", "method", req.Method)
	}
}

func (r *Router) dispatch(ctx context.Context, req Request) (json.RawMessage, *RPCError) {
	switch req.Method {
	case "initialize":
		return r.handleInitialize(req.Params)
	case "tools/list":
		return r.handleToolsList()
	case "tools/call":
		return r.handleToolsCall(ctx, req.Params)
	case "resources/list":
		return r.handleResourcesList(ctx)
	case "resources/read":
		return r.handleResourcesRead(ctx, req.Params)
	case "ping":
		return r.handlePing()
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (r *Router) handleInitialize(params json.RawMessage) (json.RawMessage, *RPCError) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid initialize params: " + err.Error()}
		}
	}

	if p.ProtocolVersion != ProtocolVersion {
		return nil, &RPCError{
			Code: CodeInvalidRequest,
			Message: fmt.Sprintf("protocol version mismatch: server supports %s, client requested %s",
				ProtocolVersion, p.ProtocolVersion),
		}
	}

	r.mu.Lock()
	r.state = StateInitializing
	r.mu.Unlock()

	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapability{
			Tools:     ToolCapability{ListChanged: false},
			Resources: ResourceCapability{Subscribe: false, ListChanged: false},
			Security:  SecurityExtension{ContentSanitization: true, SelectOnly: r.cfg.SelectOnly},
		},
		ServerInfo: ServerInfo{
			Name:        ServerName,
			Version:     ServerVersion,
			Description: "Exposes a relational database to MCP clients as tools and resources.",
		},
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (r *Router) handlePing() (json.RawMessage, *RPCError) {
	data, _ := json.Marshal(map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"state":     r.State().String(),
	})
	return data, nil
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message},
	}
}
