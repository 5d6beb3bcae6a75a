// Package powerquery compiles Sigma condition trees into SentinelOne
// PowerQuery strings. Compilation is a pure function of the input tree:
// no state persists between calls and a tree is never mutated, so one
// Compiler may be shared freely across goroutines.
package powerquery

// Dialect is the static rendering table for the target query language:
// operator tokens, quoting characters and fixed pseudo-operator
// patterns. It is read-only after construction and shared freely.
type Dialect struct {
	// Boolean connectives, joined with single spaces. Precedence in the
	// target is not > and > or; the compiler parenthesizes every group
	// anyway so readers never need to know that.
	And string
	Or  string
	Not string

	// Equality and its case-sensitive variant.
	Eq     string
	CaseEq string

	// Substring matching and its case-sensitive variant. The target has
	// no prefix/suffix primitives; all three degrade to this token.
	Contains     string
	CaseContains string

	// Regular expression matching.
	Matches string

	// List membership: field In (v1,v2,...), values joined by ListSep.
	In      string
	ListSep string

	// String literals are wrapped in StringQuote; StringQuote and
	// EscapeChar occurrences inside are escaped with EscapeChar.
	StringQuote string
	EscapeChar  string

	// Field names that are not simple identifiers are wrapped in
	// FieldQuote; whitespace inside field names is escaped regardless.
	FieldQuote string

	// Boolean value spellings.
	True  string
	False string

	// ExistsPattern is the regex matched to test that a field has any
	// value. The exact text is a compatibility contract with downstream
	// consumers and must not be re-escaped or altered.
	ExistsPattern string

	// ColumnsPipe introduces the output-column clause.
	ColumnsPipe string
}

// SentinelOnePQ returns the rendering table for SentinelOne PowerQuery.
func SentinelOnePQ() Dialect {
	return Dialect{
		And:           "and",
		Or:            "or",
		Not:           "not",
		Eq:            "=",
		CaseEq:        "==",
		Contains:      "contains",
		CaseContains:  "contains:matchcase",
		Matches:       "matches",
		In:            "in",
		ListSep:       ",",
		StringQuote:   `"`,
		EscapeChar:    `\`,
		FieldQuote:    "'",
		True:          "true",
		False:         "false",
		ExistsPattern: `\.*`,
		ColumnsPipe:   " | columns ",
	}
}
