package mcprouter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/dbservice"
)

type fakeService struct {
	dbType        dbconfig.DatabaseType
	executeResult dbservice.QueryResult
	executeErr    error
	resources     []dbservice.DatabaseResource
	resourcesErr  error
	readResult    *dbservice.DatabaseResource
	readErr       error
	lastSQL       string
	lastArgs      []any
}

func (f *fakeService) DatabaseType() dbconfig.DatabaseType { return f.dbType }

func (f *fakeService) ExecuteSQL(ctx context.Context, sqlText string, maxRows int, args []any) (dbservice.QueryResult, error) {
	f.lastSQL = sqlText
	f.lastArgs = args
	return f.executeResult, f.executeErr
}

func (f *fakeService) ListResources(ctx context.Context) ([]dbservice.DatabaseResource, error) {
	return f.resources, f.resourcesErr
}

func (f *fakeService) ReadResource(ctx context.Context, uri string) (*dbservice.DatabaseResource, error) {
	return f.readResult, f.readErr
}

func newTestRouter(svc *fakeService) *Router {
	return New(svc, nil, Limits{MaxSqlLength: 4096, MaxRowsLimit: 1000, SelectOnly: false})
}

func rawID(t *testing.T, v string) json.RawMessage {
	t.Helper()
	return json.RawMessage(v)
}

func initRouter(t *testing.T, r *Router) {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		ID:      rawID(t, `1`),
		Method:  "initialize",
		Params:  json.RawMessage(`{"protocolVersion":"2025-06-18","clientInfo":{"name":"test","version":"1.0"}}`),
	}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error != nil {
		t.Fatalf("initialize failed: %+v", resp)
	}
	notif := Request{JSONRPC: "2.0", Method: "notifications/initialized"}
	if out := r.Handle(context.Background(), notif); out != nil {
		t.Fatalf("notification should produce no response, got %+v", out)
	}
	if r.State() != StateInitialized {
		t.Fatalf("state = %s, want INITIALIZED", r.State())
	}
}

func TestLifecycleHandshake(t *testing.T) {
	r := newTestRouter(&fakeService{})
	if r.State() != StateUninitialized {
		t.Fatalf("initial state = %s, want UNINITIALIZED", r.State())
	}
	initRouter(t, r)
}

func TestMethodBeforeInitializeRejected(t *testing.T) {
	r := newTestRouter(&fakeService{})
	req := Request{JSONRPC: "2.0", ID: rawID(t, `1`), Method: "tools/list"}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %+v", resp)
	}
}

func TestInitializeProtocolVersionMismatch(t *testing.T) {
	r := newTestRouter(&fakeService{})
	req := Request{
		JSONRPC: "2.0",
		ID:      rawID(t, `1`),
		Method:  "initialize",
		Params:  json.RawMessage(`{"protocolVersion":"2024-01-01","clientInfo":{"name":"test","version":"1.0"}}`),
	}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request for version mismatch, got %+v", resp)
	}
}

func TestUnknownMethod(t *testing.T) {
	r := newTestRouter(&fakeService{})
	initRouter(t, r)

	req := Request{JSONRPC: "2.0", ID: rawID(t, `1`), Method: "bogus/method"}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method_not_found, got %+v", resp)
	}
}

func TestRunSQLSuccess(t *testing.T) {
	svc := &fakeService{
		dbType: dbconfig.SQLite,
		executeResult: dbservice.QueryResult{
			Columns: []string{"id"}, Rows: [][]any{{1}}, RowCount: 1, ExecutionTimeMs: 5,
		},
	}
	r := newTestRouter(svc)
	initRouter(t, r)

	req := Request{
		JSONRPC: "2.0",
		ID:      rawID(t, `2`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"run_sql","arguments":{"sql":"SELECT id FROM users"}}`),
	}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp)
	}
	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected isError=false, got true: %+v", result)
	}
	if svc.lastSQL != "SELECT id FROM users" {
		t.Fatalf("service received sql %q", svc.lastSQL)
	}
}

func TestRunSQLSelectOnlyRejection(t *testing.T) {
	svc := &fakeService{executeErr: &dbservice.ValidationError{Reason: "operation not allowed: drop"}}
	r := newTestRouter(svc)
	initRouter(t, r)

	req := Request{
		JSONRPC: "2.0",
		ID:      rawID(t, `3`),
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name":"run_sql","arguments":{"sql":"DROP TABLE users"}}`),
	}
	resp := r.Handle(context.Background(), req)
	if resp == nil || resp.Error != nil {
		t.Fatalf("expected JSON-RPC success envelope with isError, got %+v", resp)
	}
	var result CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected isError=true for rejected SQL")
	}
}

func TestRunSQLMaxRowsBoundary(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)
	initRouter(t, r)

	atLimit := Request{
		JSONRPC: "2.0", ID: rawID(t, `4`), Method: "tools/call",
		Params: json.RawMessage(`{"name":"run_sql","arguments":{"sql":"SELECT 1","maxRows":1000}}`),
	}
	if resp := r.Handle(context.Background(), atLimit); resp.Error != nil {
		t.Fatalf("maxRows at limit should be accepted, got %+v", resp.Error)
	}

	overLimit := Request{
		JSONRPC: "2.0", ID: rawID(t, `5`), Method: "tools/call",
		Params: json.RawMessage(`{"name":"run_sql","arguments":{"sql":"SELECT 1","maxRows":1001}}`),
	}
	resp := r.Handle(context.Background(), overLimit)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("maxRows over limit should be invalid_params, got %+v", resp)
	}
}

func TestRunSQLLengthBoundary(t *testing.T) {
	svc := &fakeService{}
	r := New(svc, nil, Limits{MaxSqlLength: 10, MaxRowsLimit: 1000})
	initRouter(t, r)

	atLimit := Request{
		JSONRPC: "2.0", ID: rawID(t, `6`), Method: "tools/call",
		Params: json.RawMessage(`{"name":"run_sql","arguments":{"sql":"0123456789"}}`),
	}
	if resp := r.Handle(context.Background(), atLimit); resp.Error != nil {
		t.Fatalf("sql at max length should be accepted, got %+v", resp.Error)
	}

	overLimit := Request{
		JSONRPC: "2.0", ID: rawID(t, `7`), Method: "tools/call",
		Params: json.RawMessage(`{"name":"run_sql","arguments":{"sql":"01234567890"}}`),
	}
	resp := r.Handle(context.Background(), overLimit)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("sql over max length should be invalid_params, got %+v", resp)
	}
}

func TestResourcesReadNotFound(t *testing.T) {
	svc := &fakeService{readResult: nil}
	r := newTestRouter(svc)
	initRouter(t, r)

	req := Request{
		JSONRPC: "2.0", ID: rawID(t, `8`), Method: "resources/read",
		Params: json.RawMessage(`{"uri":"database://table/nonexistent"}`),
	}
	resp := r.Handle(context.Background(), req)
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected invalid_params for missing resource, got %+v", resp)
	}
}

func TestResponseIDPreservation(t *testing.T) {
	r := newTestRouter(&fakeService{})

	for _, id := range []string{`42`, `"string-id"`, `null`} {
		req := Request{JSONRPC: "2.0", ID: rawID(t, id), Method: "initialize",
			Params: json.RawMessage(`{"protocolVersion":"2025-06-18","clientInfo":{"name":"t","version":"1"}}`)}
		resp := r.Handle(context.Background(), req)
		if string(resp.ID) != id {
			t.Fatalf("id not preserved: got %s, want %s", resp.ID, id)
		}
		// reset state for the next id in this loop
		r = newTestRouter(&fakeService{})
	}
}

func TestNotificationProducesNoResponse(t *testing.T) {
	r := newTestRouter(&fakeService{})
	req := Request{JSONRPC: "2.0", Method: "notifications/initialized"}
	if resp := r.Handle(context.Background(), req); resp != nil {
		t.Fatalf("expected nil response for notification before initialize (rejected silently), got %+v", resp)
	}
}
