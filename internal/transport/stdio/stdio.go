// Package stdio implements the newline-delimited JSON-RPC transport:
// read one object per line from a reader, route it through the MCP
// router, and write any response as a single line to a writer. It is
// single-threaded by construction, matching the teacher's
// bufio.Scanner-driven gateway loop.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/dbmcp/dbmcp/internal/mcprouter"
)

const maxLineBytes = 1024 * 1024

// Run reads newline-delimited JSON requests from r and writes
// responses to w until r reaches EOF. A line that fails to parse as
// JSON gets an internal_error response if an id can be extracted
// from it; otherwise it is logged and skipped.
func Run(ctx context.Context, router *mcprouter.Router, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := dispatchLine(ctx, router, line)
		if resp == nil {
			continue
		}
		if err := writeResponse(w, resp); err != nil {
			return fmt.Errorf("stdio: write response: %w", err)
		}
	}
	return scanner.Err()
}

func dispatchLine(ctx context.Context, router *mcprouter.Router, line []byte) *mcprouter.Response {
	var req mcprouter.Request
	if err := json.Unmarshal(line, &req); err != nil {
		if id := extractID(line); id != nil {
			return &mcprouter.Response{
				JSONRPC: "2.0",
				ID:      id,
				Error:   &mcprouter.RPCError{Code: mcprouter.CodeInternalError, Message: "invalid JSON: " + err.Error()},
			}
		}
		slog.Warn("stdio: unparseable line, no id to respond with", "error", err)
		return nil
	}
	return router.Handle(ctx, req)
}

// extractID tries to recover just the "id" member from an otherwise
// unparseable line, so a parse-error response can still carry it.
func extractID(line []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil
	}
	return probe.ID
}

func writeResponse(w io.Writer, resp *mcprouter.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
