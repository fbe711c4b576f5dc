// Package safety implements the lexical gate that classifies candidate SQL
// before execution. Matching is case-insensitive substring on purpose: a
// keyword inside a string literal or identifier still blocks the query. The
// gate over-blocks rather than under-blocks and never parses SQL.
package safety

import "strings"

const (
	// CodeDanger covers destructive statements. This check is unconditional
	// and cannot be bypassed by query shape.
	CodeDanger = "danger"
	// CodeModification covers schema-mutating and write statements.
	CodeModification = "modification"
	// CodeNotSelect covers anything that does not start with the read-only
	// retrieval keyword.
	CodeNotSelect = "not_select"
)

const (
	dangerMessage       = "Dangerous operation detected: DELETE, DROP, or TRUNCATE operations are not allowed for safety."
	modificationMessage = "Modification operations (ALTER, UPDATE, INSERT, CREATE) are not allowed. This is a read-only database interface."
	notSelectMessage    = "Only SELECT queries are allowed."
)

var dangerKeywords = []string{"DELETE", "DROP", "TRUNCATE"}

var modificationKeywords = []string{"ALTER", "UPDATE", "INSERT", "CREATE TABLE", "CREATE INDEX"}

// Verdict is the outcome of classifying one query string. Reason and Code are
// empty when the query is allowed.
type Verdict struct {
	Allowed bool
	Code    string
	Reason  string
}

// Classify decides whether a candidate query may be executed. It is a pure
// function: the same text always yields the same verdict.
func Classify(text string) Verdict {
	upper := strings.ToUpper(strings.TrimSpace(text))

	for _, keyword := range dangerKeywords {
		if strings.Contains(upper, keyword) {
			return Verdict{Code: CodeDanger, Reason: dangerMessage}
		}
	}

	for _, keyword := range modificationKeywords {
		if strings.Contains(upper, keyword) {
			return Verdict{Code: CodeModification, Reason: modificationMessage}
		}
	}

	if !strings.HasPrefix(upper, "SELECT") {
		return Verdict{Code: CodeNotSelect, Reason: notSelectMessage}
	}

	return Verdict{Allowed: true}
}
