package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dbmcp/dbmcp/internal/dbconfig"
	"github.com/dbmcp/dbmcp/internal/dbservice"
	"github.com/dbmcp/dbmcp/internal/mcprouter"
)

type stubService struct{}

func (stubService) DatabaseType() dbconfig.DatabaseType { return dbconfig.SQLite }

func (stubService) ExecuteSQL(ctx context.Context, sqlText string, maxRows int, args []any) (dbservice.QueryResult, error) {
	return dbservice.QueryResult{Columns: []string{"n"}, Rows: [][]any{{1}}, RowCount: 1}, nil
}

func (stubService) ListResources(ctx context.Context) ([]dbservice.DatabaseResource, error) {
	return nil, nil
}

func (stubService) ReadResource(ctx context.Context, uri string) (*dbservice.DatabaseResource, error) {
	return nil, nil
}

func TestRunHandshakeAndQuery(t *testing.T) {
	router := mcprouter.New(stubService{}, nil, mcprouter.Limits{MaxSqlLength: 4096, MaxRowsLimit: 1000})

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"t","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"run_sql","arguments":{"sql":"SELECT 1"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := Run(context.Background(), router, strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines (notification suppressed), got %d: %q", len(lines), out.String())
	}

	var first mcprouter.Response
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first response: %v", err)
	}
	if string(first.ID) != "1" {
		t.Fatalf("first response id = %s, want 1", first.ID)
	}

	var second mcprouter.Response
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second response: %v", err)
	}
	if string(second.ID) != "2" {
		t.Fatalf("second response id = %s, want 2", second.ID)
	}
}

func TestRunParseFailureWithID(t *testing.T) {
	router := mcprouter.New(stubService{}, nil, mcprouter.Limits{MaxSqlLength: 4096, MaxRowsLimit: 1000})

	input := `{"jsonrpc":"2.0","id":9,"method":123}` + "\n"
	var out bytes.Buffer
	if err := Run(context.Background(), router, strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resp mcprouter.Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != mcprouter.CodeInternalError {
		t.Fatalf("expected internal_error response, got %+v", resp)
	}
}

func TestRunParseFailureNoID(t *testing.T) {
	router := mcprouter.New(stubService{}, nil, mcprouter.Limits{MaxSqlLength: 4096, MaxRowsLimit: 1000})

	input := `not json at all` + "\n"
	var out bytes.Buffer
	if err := Run(context.Background(), router, strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output for unparseable line with no id, got %q", out.String())
	}
}
