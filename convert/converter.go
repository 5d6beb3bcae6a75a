// Package convert wires the rule frontend, the field-mapping pipeline
// and the query compiler into single-rule and batch conversion.
package convert

import (
	"fmt"

	"github.com/craftedsignal/sigma-powerquery/pipeline"
	"github.com/craftedsignal/sigma-powerquery/powerquery"
	"github.com/craftedsignal/sigma-powerquery/sigma"
)

// Converter turns parsed Sigma rules into PowerQuery output. It is
// stateless per call and safe for concurrent use.
type Converter struct {
	pipeline *pipeline.Pipeline
	compiler *powerquery.Compiler
}

// New returns a Converter using the given pipeline and the stock
// SentinelOne PowerQuery dialect. A nil pipeline skips field mapping.
func New(p *pipeline.Pipeline) *Converter {
	return &Converter{
		pipeline: p,
		compiler: powerquery.New(powerquery.SentinelOnePQ()),
	}
}

// Convert compiles one rule to its plain-mode query string.
func (c *Converter) Convert(rule *sigma.Rule) (string, error) {
	mapped := rule
	if c.pipeline != nil {
		mapped = c.pipeline.Apply(rule)
	}
	query, err := c.compiler.Compile(mapped.Condition)
	if err != nil {
		return "", fmt.Errorf("rule %q: %w", ruleName(rule), err)
	}
	return c.compiler.Finalize(query, mapped.Metadata), nil
}

// ConvertRecord compiles one rule to its structured-mode record.
func (c *Converter) ConvertRecord(rule *sigma.Rule) (powerquery.Record, error) {
	mapped := rule
	if c.pipeline != nil {
		mapped = c.pipeline.Apply(rule)
	}
	query, err := c.compiler.Compile(mapped.Condition)
	if err != nil {
		return powerquery.Record{}, fmt.Errorf("rule %q: %w", ruleName(rule), err)
	}
	return c.compiler.FinalizeRecord(query, mapped.Metadata), nil
}

func ruleName(rule *sigma.Rule) string {
	if rule.Metadata.Title != "" {
		return rule.Metadata.Title
	}
	return rule.Metadata.ID
}
