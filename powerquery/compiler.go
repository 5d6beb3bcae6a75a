package powerquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/craftedsignal/sigma-powerquery/sigma"
)

// Compiler renders condition trees into query strings for one Dialect.
// It holds no mutable state; the zero-cost way to compile many rules
// concurrently is to share a single Compiler.
type Compiler struct {
	d       Dialect
	escaper *strings.Replacer
}

// New returns a Compiler for the given dialect.
func New(d Dialect) *Compiler {
	return &Compiler{d: d, escaper: newEscaper(d)}
}

// Compile renders a full condition tree with the stock SentinelOne
// PowerQuery dialect.
func Compile(root sigma.Node) (string, error) {
	return defaultCompiler.Compile(root)
}

var defaultCompiler = New(SentinelOnePQ())

// Compile renders the full boolean expression for root. The tree is
// never mutated and identical trees always yield identical output.
func (c *Compiler) Compile(root sigma.Node) (string, error) {
	if root == nil {
		return "", fmt.Errorf("nil condition tree")
	}
	return c.compile(root)
}

func (c *Compiler) compile(node sigma.Node) (string, error) {
	switch n := node.(type) {
	case sigma.Not:
		return c.compileNot(n)
	case sigma.And:
		return c.compileGroup(n.Children, c.d.And)
	case sigma.Or:
		if folded, ok := c.foldInList(n.Children); ok {
			return folded, nil
		}
		return c.compileGroup(n.Children, c.d.Or)
	case sigma.FieldEquals:
		return c.compileLeaf(n)
	default:
		return "", unsupported(node)
	}
}

// compileNot renders negation. Compound operands are parenthesized so
// the negation cannot rebind under the target's precedence rules; an
// atomic operand is prefixed directly.
func (c *Compiler) compileNot(n sigma.Not) (string, error) {
	if n.Operand == nil {
		return "", fmt.Errorf("negation of empty operand")
	}
	// A negated presence test renders as the opposite assertion, so the
	// absence form keeps its fixed not (...) shape.
	if leaf, ok := n.Operand.(sigma.FieldEquals); ok {
		if p, ok := leaf.Value.(sigma.Presence); ok && leaf.Field != "" {
			return c.compileLeaf(sigma.FieldEquals{Field: leaf.Field, Value: sigma.Presence{Present: !p.Present}})
		}
	}
	inner, err := c.compile(n.Operand)
	if err != nil {
		return "", err
	}
	switch n.Operand.(type) {
	case sigma.And, sigma.Or:
		// Compound operands must sit in parentheses before negation.
		// Multi-child groups already render parenthesized; folded or
		// collapsed forms get wrapped here.
		if strings.HasPrefix(inner, "(") {
			return c.d.Not + " " + inner, nil
		}
		return c.d.Not + " (" + inner + ")", nil
	default:
		return c.d.Not + " " + inner, nil
	}
}

// compileGroup joins the children with the connective and parenthesizes
// the whole group. Parenthesization is unconditional: readers of the
// generated query should never need the target's precedence table.
func (c *Compiler) compileGroup(children []sigma.Node, connective string) (string, error) {
	if len(children) == 0 {
		return "", fmt.Errorf("empty %s group", connective)
	}
	parts := make([]string, 0, len(children))
	for _, child := range children {
		s, err := c.compile(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+connective+" ") + ")", nil
}

// foldInList rewrites an OR group whose children are all plain equality
// tests on the same field into a single list-membership expression.
// Applied to OR groups only, never AND, and never when a value carries a
// wildcard or case-sensitivity.
func (c *Compiler) foldInList(children []sigma.Node) (string, bool) {
	if len(children) < 2 {
		return "", false
	}
	field := ""
	values := make([]string, 0, len(children))
	for _, child := range children {
		leaf, ok := child.(sigma.FieldEquals)
		if !ok || leaf.Field == "" {
			return "", false
		}
		if field == "" {
			field = leaf.Field
		} else if leaf.Field != field {
			return "", false
		}
		rendered, ok := c.listValue(leaf.Value)
		if !ok {
			return "", false
		}
		values = append(values, rendered)
	}
	expr := c.renderField(field) + " " + c.d.In + " (" + strings.Join(values, c.d.ListSep) + ")"
	return expr, true
}

// listValue renders a literal for use inside an in (...) list, or
// reports that the literal disqualifies the group from folding.
func (c *Compiler) listValue(lit sigma.Literal) (string, bool) {
	switch v := lit.(type) {
	case sigma.String:
		if v.Match != sigma.MatchExact || v.CaseSensitive || strings.Contains(v.Value, "*") {
			return "", false
		}
		return c.quoteString(v.Value), true
	case sigma.Number:
		return formatNumber(v.Value), true
	default:
		return "", false
	}
}

// compileLeaf renders a single field comparison.
func (c *Compiler) compileLeaf(leaf sigma.FieldEquals) (string, error) {
	if leaf.Value == nil {
		return "", fmt.Errorf("field %q: nil literal", leaf.Field)
	}
	if leaf.Field == "" {
		return c.compileUnbound(leaf.Value)
	}
	field := c.renderField(leaf.Field)

	switch v := leaf.Value.(type) {
	case sigma.String:
		return c.compileString(field, v), nil

	case sigma.Number:
		return field + " " + c.d.Eq + " " + formatNumber(v.Value), nil

	case sigma.Bool:
		b := c.d.False
		if v.Value {
			b = c.d.True
		}
		return field + " " + c.d.Eq + " " + b, nil

	case sigma.Regex:
		return field + " " + c.d.Matches + " " + c.quoteRegex(v.Pattern), nil

	case sigma.Comparison:
		return field + " " + string(v.Op) + " " + formatNumber(v.Value), nil

	case sigma.Presence:
		expr := field + " " + c.d.Matches + " " + c.d.StringQuote + c.d.ExistsPattern + c.d.StringQuote
		if !v.Present {
			expr = c.d.Not + " (" + expr + ")"
		}
		return expr, nil

	case sigma.List:
		return c.compileList(leaf.Field, v)

	default:
		return "", unsupported(leaf.Value)
	}
}

// compileString picks the equality or contains form based on the match
// kind and wildcard placement. Prefix, suffix and substring matches all
// degrade to the target's contains primitive with the markers stripped;
// interior wildcards pass through on plain equality.
func (c *Compiler) compileString(field string, v sigma.String) string {
	kind, value := classifyString(v)

	if kind == sigma.MatchExact {
		tok := c.d.Eq
		if v.CaseSensitive {
			tok = c.d.CaseEq
		}
		return field + " " + tok + " " + c.quoteString(value)
	}

	tok := c.d.Contains
	if v.CaseSensitive {
		tok = c.d.CaseContains
	}
	return field + " " + tok + " " + c.quoteString(value)
}

// classifyString resolves the effective match kind of a string literal
// and strips the wildcard markers the kind implies.
func classifyString(v sigma.String) (sigma.MatchKind, string) {
	kind := v.Match
	value := v.Value

	if kind == sigma.MatchExact {
		lead := strings.HasPrefix(value, "*")
		trail := strings.HasSuffix(value, "*") && value != "*"
		switch {
		case lead && trail:
			kind = sigma.MatchSubstring
		case trail:
			kind = sigma.MatchPrefix
		case lead:
			kind = sigma.MatchSuffix
		}
	}

	switch kind {
	case sigma.MatchSubstring:
		value = strings.TrimSuffix(strings.TrimPrefix(value, "*"), "*")
	case sigma.MatchPrefix:
		value = strings.TrimSuffix(value, "*")
	case sigma.MatchSuffix:
		value = strings.TrimPrefix(value, "*")
	}
	return kind, value
}

// compileList renders a list-valued field: list membership when every
// value allows it, otherwise a parenthesized OR of the per-value forms.
func (c *Compiler) compileList(field string, list sigma.List) (string, error) {
	if len(list.Values) == 0 {
		return "", fmt.Errorf("field %q: empty value list", field)
	}

	foldable := true
	values := make([]string, 0, len(list.Values))
	for _, lit := range list.Values {
		rendered, ok := c.listValue(lit)
		if !ok {
			foldable = false
			break
		}
		values = append(values, rendered)
	}
	if foldable && len(values) > 1 {
		return c.renderField(field) + " " + c.d.In + " (" + strings.Join(values, c.d.ListSep) + ")", nil
	}

	parts := make([]string, 0, len(list.Values))
	for _, lit := range list.Values {
		s, err := c.compileLeaf(sigma.FieldEquals{Field: field, Value: lit})
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+c.d.Or+" ") + ")", nil
}

// compileUnbound renders a keyword value matched against the whole
// event. Strings and numbers render as a bare quoted value.
func (c *Compiler) compileUnbound(lit sigma.Literal) (string, error) {
	switch v := lit.(type) {
	case sigma.String:
		return c.quoteString(v.Value), nil
	case sigma.Number:
		return c.quoteString(formatNumber(v.Value)), nil
	default:
		return "", unsupported(lit)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
