package dbservice

import (
	"fmt"
	"strings"
)

// ValidationError is returned by validateSelectOnly when a statement
// is rejected by the select-only filter. It is surfaced inside the
// tool-result envelope with isError=true, never as a JSON-RPC error.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var deniedFirstTokens = map[string]bool{
	"drop": true, "truncate": true, "delete": true, "update": true,
	"insert": true, "create": true, "alter": true, "grant": true,
	"revoke": true, "exec": true, "execute": true, "call": true,
}

// validateSelectOnly is a coarse allow/deny filter, not a SQL parser.
// It normalizes sql (trim, lower-case, collapse whitespace runs) and
// rejects statements that look like DML/DDL, multi-statement batches,
// or contain comment markers.
func validateSelectOnly(sql string) error {
	normalized := normalizeSQL(sql)
	if normalized == "" {
		return &ValidationError{Reason: "empty"}
	}

	first := normalized
	if sp := strings.IndexByte(normalized, ' '); sp >= 0 {
		first = normalized[:sp]
	}
	if deniedFirstTokens[first] {
		return &ValidationError{Reason: fmt.Sprintf("operation not allowed: %s", first)}
	}

	if idx := strings.IndexByte(normalized, ';'); idx >= 0 && idx != len(normalized)-1 {
		return &ValidationError{Reason: "multiple statements"}
	}

	if strings.Contains(normalized, "--") || strings.Contains(normalized, "/*") {
		return &ValidationError{Reason: "comments not allowed"}
	}

	return nil
}

func normalizeSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	lower := strings.ToLower(trimmed)
	return strings.Join(strings.Fields(lower), " ")
}
