// Package sanitize implements pure, data-driven policy functions that
// flag prompt-injection-like patterns in database values and
// identifiers before they reach an MCP client.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

const nullLiteral = "NULL"

var valuePrefixes = []string{"ignore", "forget", "system:", "assistant:", "user:"}

var valueSubstrings = []string{
	"</instructions>", "<instructions>", "prompt:", "execute",
	"run the following", "new instructions", "override", "jailbreak",
	"roleplay",
}

var roleplayPattern = regexp.MustCompile(`(?i)\b(act as|pretend to be|you are now)\b`)

var identifierSubstrings = []string{
	"ignore", "system", "instruction", "prompt", "forget", "override",
	"execute", "jailbreak",
}

// SanitizeValue normalizes a database cell value and flags content that
// looks like a prompt-injection attempt or is simply overlong. nil maps
// to the literal "NULL".
func SanitizeValue(v any) string {
	if v == nil {
		return nullLiteral
	}
	original := stringify(v)
	normalized := strings.ToLower(strings.TrimSpace(original))

	if matchesValuePolicy(normalized) {
		return "[FLAGGED CONTENT]: " + Truncate(original, 100)
	}
	if len(original) > 500 {
		return "[LONG CONTENT]: " + Truncate(original, 200)
	}
	return original
}

// SanitizeIdentifier applies the same shape of policy as SanitizeValue
// to schema/table/column identifiers, with a smaller suspicious-term
// set and tighter length thresholds. nil maps to "NULL", matching
// SanitizeValue's contract for database metadata that is itself
// nullable (e.g. an absent remarks/comment field).
func SanitizeIdentifier(id any) string {
	if id == nil {
		return nullLiteral
	}
	s := stringify(id)
	normalized := strings.ToLower(strings.TrimSpace(s))

	for _, sub := range identifierSubstrings {
		if strings.Contains(normalized, sub) {
			return "[FLAGGED_ID]: " + Truncate(s, 100)
		}
	}
	if len(s) > 100 {
		return "[LONG_ID]: " + Truncate(s, 50)
	}
	return s
}

func matchesValuePolicy(normalized string) bool {
	for _, p := range valuePrefixes {
		if strings.HasPrefix(normalized, p) {
			return true
		}
	}
	for _, s := range valueSubstrings {
		if strings.Contains(normalized, s) {
			return true
		}
	}
	return roleplayPattern.MatchString(normalized)
}

// Truncate returns s unchanged if it is no longer than n bytes,
// otherwise s[:n] followed by "...". A non-positive n that does not
// already satisfy len(s) <= n (i.e. any non-empty s with n <= 0)
// yields "...".
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return "..."
	}
	return s[:n] + "..."
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
