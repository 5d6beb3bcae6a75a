// Package pipeline renames Sigma taxonomy fields to target-schema
// columns before a rule's condition tree reaches the query compiler.
// The compiler trusts field names as final; everything schema-specific
// happens here.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/craftedsignal/sigma-powerquery/sigma"
)

// maxOverlaySize bounds user-supplied mapping files.
const maxOverlaySize = 5 * 1024 * 1024

// Pipeline holds logsource-aware field mappings. Lookups take no lock:
// the tables are fixed after construction and overlay loading, which
// happens before any conversion starts.
type Pipeline struct {
	tables  map[string]FieldMap
	generic FieldMap
}

// New returns a Pipeline with the stock SentinelOne PowerQuery tables.
func New() *Pipeline {
	return &Pipeline{
		tables:  builtinMappings(),
		generic: builtinGeneric(),
	}
}

// LoadOverlay merges a user-supplied mapping file over the builtin
// tables. Format is one mapping per logsource category, with "generic"
// feeding the fallback table:
//
//	process_creation:
//	  CustomField: tgt.process.custom
//	generic:
//	  Hostname: endpoint.name
func (p *Pipeline) LoadOverlay(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("field mappings %q: %w", path, err)
	}
	if info.Size() > maxOverlaySize {
		return fmt.Errorf("field mappings %q: file too large (%d bytes, max %d)", path, info.Size(), maxOverlaySize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("field mappings %q: %w", path, err)
	}

	var overlay map[string]FieldMap
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("field mappings %q: %w", path, err)
	}

	for category, mapping := range overlay {
		if category == "generic" {
			for from, to := range mapping {
				p.generic[from] = to
			}
			continue
		}
		table, ok := p.tables[category]
		if !ok {
			table = make(FieldMap, len(mapping))
			p.tables[category] = table
		}
		for from, to := range mapping {
			table[from] = to
		}
	}
	return nil
}

// Resolve maps one field name for a logsource: category table first,
// then the generic table, then pass-through.
func (p *Pipeline) Resolve(field string, ls sigma.LogSource) string {
	if table, ok := p.tables[ls.Category]; ok {
		if mapped, ok := table[field]; ok {
			return mapped
		}
	}
	if mapped, ok := p.generic[field]; ok {
		return mapped
	}
	return field
}

// Apply returns a rule whose condition tree and projected fields use
// target-schema names. The input rule is never mutated: the tree is
// rebuilt node by node, which keeps the immutability contract the
// compiler relies on.
func (p *Pipeline) Apply(rule *sigma.Rule) *sigma.Rule {
	out := *rule
	out.Condition = p.rewrite(rule.Condition, rule.Metadata.LogSource)
	if len(rule.Metadata.Fields) > 0 {
		fields := make([]string, len(rule.Metadata.Fields))
		for i, f := range rule.Metadata.Fields {
			fields[i] = p.Resolve(f, rule.Metadata.LogSource)
		}
		out.Metadata.Fields = fields
	}
	return &out
}

func (p *Pipeline) rewrite(node sigma.Node, ls sigma.LogSource) sigma.Node {
	switch n := node.(type) {
	case sigma.And:
		children := make([]sigma.Node, len(n.Children))
		for i, child := range n.Children {
			children[i] = p.rewrite(child, ls)
		}
		return sigma.And{Children: children}
	case sigma.Or:
		children := make([]sigma.Node, len(n.Children))
		for i, child := range n.Children {
			children[i] = p.rewrite(child, ls)
		}
		return sigma.Or{Children: children}
	case sigma.Not:
		return sigma.Not{Operand: p.rewrite(n.Operand, ls)}
	case sigma.FieldEquals:
		if n.Field == "" {
			return n
		}
		return sigma.FieldEquals{Field: p.Resolve(n.Field, ls), Value: n.Value}
	default:
		// Unknown nodes pass through; the compiler rejects them with a
		// proper error.
		return node
	}
}
