package mcprouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dbmcp/dbmcp/internal/dbservice"
	"github.com/dbmcp/dbmcp/internal/format"
)

const defaultMaxRows = 1000

var runSQLSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sql": {"type": "string"},
		"maxRows": {"type": "integer"},
		"params": {"type": "array"}
	},
	"required": ["sql"],
	"additionalProperties": false
}`)

var describeTableSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"table_name": {"type": "string"},
		"schema": {"type": "string"}
	},
	"required": ["table_name"],
	"additionalProperties": false
}`)

// handleToolsList returns the static two-tool catalog.
func (r *Router) handleToolsList() (json.RawMessage, *RPCError) {
	sqlWarning := "Executes SQL against the connected database."
	describeWarning := "Describes a table's columns, keys, and indexes."
	if r.reg != nil {
		selectOnlyKey := "select_only_disabled"
		if r.cfg.SelectOnly {
			selectOnlyKey = "select_only_enabled"
		}
		selectOnlyNotice := r.reg.SecurityWarning(selectOnlyKey)
		sqlWarning = r.reg.SecurityWarning("tool_description_run_sql", r.cfg.MaxRowsLimit, selectOnlyNotice)
		describeWarning = r.reg.SecurityWarning("tool_description_describe_table", selectOnlyNotice)
	}

	security := SecurityExtension{ContentSanitization: true, SelectOnly: r.cfg.SelectOnly}
	tools := []Tool{
		{Name: "run_sql", Description: sqlWarning, InputSchema: runSQLSchema, Security: security},
		{Name: "describe_table", Description: describeWarning, InputSchema: describeTableSchema, Security: security},
	}
	data, err := json.Marshal(map[string]any{"tools": tools})
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (r *Router) handleToolsCall(ctx context.Context, params json.RawMessage) (json.RawMessage, *RPCError) {
	var req CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid tools/call params: " + err.Error()}
	}

	switch req.Name {
	case "run_sql":
		return r.callRunSQL(ctx, req.Arguments)
	case "describe_table":
		return r.callDescribeTable(ctx, req.Arguments)
	default:
		msg := fmt.Sprintf("unknown tool: %s", req.Name)
		if r.reg != nil {
			msg = r.reg.ErrorMessage("unknown_tool", req.Name)
		}
		return nil, &RPCError{Code: CodeInvalidParams, Message: msg}
	}
}

type runSQLArgs struct {
	SQL     *string `json:"sql"`
	MaxRows *int    `json:"maxRows"`
	Params  []any   `json:"params"`
}

func (r *Router) callRunSQL(ctx context.Context, raw json.RawMessage) (json.RawMessage, *RPCError) {
	var args runSQLArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid run_sql arguments: " + err.Error()}
		}
	}

	if args.SQL == nil || strings.TrimSpace(*args.SQL) == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "sql is required and must not be blank"}
	}
	if r.cfg.MaxSqlLength > 0 && len(*args.SQL) > r.cfg.MaxSqlLength {
		return nil, &RPCError{Code: CodeInvalidParams,
			Message: fmt.Sprintf("sql exceeds maximum length of %d characters", r.cfg.MaxSqlLength)}
	}

	maxRows := defaultMaxRows
	if args.MaxRows != nil {
		maxRows = *args.MaxRows
	}
	if r.cfg.MaxRowsLimit > 0 && maxRows > r.cfg.MaxRowsLimit {
		return nil, &RPCError{Code: CodeInvalidParams,
			Message: fmt.Sprintf("maxRows exceeds limit of %d", r.cfg.MaxRowsLimit)}
	}
	if maxRows < 1 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "maxRows must be at least 1"}
	}

	boundArgs := coerceParams(args.Params)

	result, err := r.svc.ExecuteSQL(ctx, *args.SQL, maxRows, boundArgs)
	if err != nil {
		return r.sqlErrorEnvelope(err)
	}
	return r.sqlSuccessEnvelope(result)
}

func coerceParams(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = coerceOne(v)
	}
	return out
}

// coerceOne maps a json.Unmarshal-decoded value onto Go types a
// database/sql driver accepts, per spec's coercion table: null->nil,
// bool->bool, integral float64->int64, other numeric->float64,
// string->string, anything else->its JSON encoding.
func coerceOne(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return t
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

func (r *Router) sqlSuccessEnvelope(result dbservice.QueryResult) (json.RawMessage, *RPCError) {
	header, footer := "=== SECURITY NOTICE ===", "=== END OF RESULT ==="
	if r.reg != nil {
		header = r.reg.SecurityWarning("header")
		footer = r.reg.SecurityWarning("footer")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "status: success\nrowCount: %d\nexecutionTimeMs: %d\ndatabaseType: %s\n\n",
		result.RowCount, result.ExecutionTimeMs, r.svc.DatabaseType())
	b.WriteString(format.Table(format.QueryResult{Columns: result.Columns, Rows: result.Rows}))
	b.WriteString("\n")
	b.WriteString(footer)

	security := SecurityExtension{ContentSanitization: true, SelectOnly: r.cfg.SelectOnly}
	toolResult := CallToolResult{
		Content:  []ToolContent{{Type: "text", Text: b.String()}},
		IsError:  false,
		Security: &security,
	}
	data, err := json.Marshal(toolResult)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return data, nil
}

func (r *Router) sqlErrorEnvelope(err error) (json.RawMessage, *RPCError) {
	var b strings.Builder
	b.WriteString("Query failed: ")
	b.WriteString(err.Error())

	lowered := strings.ToLower(err.Error())
	dbType := string(r.svc.DatabaseType())
	if r.reg != nil {
		if strings.Contains(lowered, "no such table") || strings.Contains(lowered, "doesn't exist") || strings.Contains(lowered, "does not exist") {
			b.WriteString("\n\nTroubleshooting:\n")
			b.WriteString(r.reg.ErrorMessage("table_not_found", dbType))
		}
		if strings.Contains(lowered, "syntax") {
			b.WriteString("\n\nTroubleshooting:\n")
			b.WriteString(r.reg.ErrorMessage("syntax_error", dbType))
		}
	}

	toolResult := CallToolResult{
		Content: []ToolContent{{Type: "text", Text: b.String()}},
		IsError: true,
	}
	data, merr := json.Marshal(toolResult)
	if merr != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
	}
	return data, nil
}

type describeTableArgs struct {
	TableName *string `json:"table_name"`
	Schema    *string `json:"schema"`
}

func (r *Router) callDescribeTable(ctx context.Context, raw json.RawMessage) (json.RawMessage, *RPCError) {
	var args describeTableArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid describe_table arguments: " + err.Error()}
		}
	}

	if args.TableName == nil || len(*args.TableName) == 0 || len(*args.TableName) > 128 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "table_name is required and must be 1..128 characters"}
	}
	if args.Schema != nil && len(*args.Schema) > 128 {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "schema must be at most 128 characters"}
	}

	uri := "database://table/" + *args.TableName
	resource, err := r.svc.ReadResource(ctx, uri)
	if err != nil {
		return r.sqlErrorEnvelope(err)
	}
	if resource == nil {
		toolResult := CallToolResult{
			Content: []ToolContent{{Type: "text", Text: fmt.Sprintf("Table %q was not found.", *args.TableName)}},
			IsError: true,
		}
		data, merr := json.Marshal(toolResult)
		if merr != nil {
			return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
		}
		return data, nil
	}

	text := ""
	if resource.Content != nil {
		text = *resource.Content
	}
	toolResult := CallToolResult{
		Content: []ToolContent{{Type: "text", Text: text}},
		IsError: false,
	}
	data, merr := json.Marshal(toolResult)
	if merr != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: merr.Error()}
	}
	return data, nil
}
