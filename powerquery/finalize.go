package powerquery

import (
	"strings"

	"github.com/craftedsignal/sigma-powerquery/sigma"
)

// Record is the structured-output form of a single compiled rule.
type Record struct {
	Query       string `json:"query"`
	Title       string `json:"title"`
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Report aggregates the plain-mode outputs of a batch.
type Report struct {
	Queries []string `json:"queries"`
}

// Finalize appends the output-column clause to a compiled query when the
// rule projects fields, and returns the plain-mode output.
func (c *Compiler) Finalize(query string, meta sigma.Metadata) string {
	if len(meta.Fields) > 0 {
		query += c.d.ColumnsPipe + strings.Join(meta.Fields, ",")
	}
	return query
}

// FinalizeRecord shapes the structured-mode output for a single rule.
// The query carries the column clause exactly as in plain mode.
func (c *Compiler) FinalizeRecord(query string, meta sigma.Metadata) Record {
	return Record{
		Query:       c.Finalize(query, meta),
		Title:       meta.Title,
		ID:          meta.ID,
		Description: meta.Description,
	}
}

// Finalize appends the output-column clause using the stock dialect.
func Finalize(query string, meta sigma.Metadata) string {
	return defaultCompiler.Finalize(query, meta)
}

// FinalizeRecord shapes structured output using the stock dialect.
func FinalizeRecord(query string, meta sigma.Metadata) Record {
	return defaultCompiler.FinalizeRecord(query, meta)
}

// FinalizeReport aggregates finished plain-mode queries, preserving
// their order.
func FinalizeReport(queries []string) Report {
	return Report{Queries: queries}
}
