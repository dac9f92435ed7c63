// Package format renders query results as fixed-width text tables for
// display inside an MCP tool response. Every cell passes through
// sanitize.SanitizeValue so suspicious or overlong content is visibly
// flagged before it reaches a client.
package format

import (
	"strings"

	"github.com/dbmcp/dbmcp/internal/sanitize"
)

const noData = "No data"

// QueryResult is the minimal shape format needs from a query's output.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Table renders columns/rows as a padded, pipe-separated text table
// with a column-width computed per the widest header or sanitized
// cell. An empty result (no rows) renders as the literal "No data".
func Table(result QueryResult) string {
	if len(result.Rows) == 0 {
		return noData
	}

	sanitized := make([][]string, len(result.Rows))
	for i, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for j := range result.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			cells[j] = sanitize.SanitizeValue(v)
		}
		sanitized[i] = cells
	}

	widths := make([]int, len(result.Columns))
	for j, header := range result.Columns {
		widths[j] = len(header)
	}
	for _, row := range sanitized {
		for j, cell := range row {
			if len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
	}

	var b strings.Builder
	b.WriteString("DATA TABLE (UNTRUSTED CONTENT)\n")

	headerCells := make([]string, len(result.Columns))
	for j, header := range result.Columns {
		headerCells[j] = padRight(header, widths[j])
	}
	b.WriteString(strings.Join(headerCells, " | "))
	b.WriteString("\n")

	separators := make([]string, len(widths))
	for j, w := range widths {
		separators[j] = strings.Repeat("-", w)
	}
	b.WriteString(strings.Join(separators, "-+-"))
	b.WriteString("\n")

	for i, row := range sanitized {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = padRight(cell, widths[j])
		}
		b.WriteString(strings.Join(cells, " | "))
		if i < len(sanitized)-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
