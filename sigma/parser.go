package sigma

import (
	"fmt"
	"sort"
	"strings"
)

// exprNode is the raw condition-expression AST before detection item
// references are resolved into condition trees.
type exprNode interface {
	exprNode()
}

// exprRef references a named detection item.
type exprRef struct {
	name string
}

func (exprRef) exprNode() {}

// exprAnd represents an AND expression.
type exprAnd struct {
	children []exprNode
}

func (exprAnd) exprNode() {}

// exprOr represents an OR expression.
type exprOr struct {
	children []exprNode
}

func (exprOr) exprNode() {}

// exprNot represents a NOT expression.
type exprNot struct {
	child exprNode
}

func (exprNot) exprNode() {}

// exprQuantifier represents "X of Y" expressions.
type exprQuantifier struct {
	quantifier string // "1", "all", or a number
	pattern    string // detection name pattern (may contain wildcards) or "them"
}

func (exprQuantifier) exprNode() {}

// conditionParser is a recursive descent parser for Sigma condition expressions.
type conditionParser struct {
	tokens []token
	pos    int
	errors []string
}

// parseConditionExpr parses a condition expression string and returns the
// raw AST plus any aggregation expression (text after |).
func parseConditionExpr(condStr string) (exprNode, string, []string) {
	lexer := newConditionLexer(condStr)
	p := &conditionParser{tokens: lexer.tokens}
	node := p.parseOr()

	// Check for aggregation after pipe
	var aggExpr string
	if p.peek().typ == tokPipe {
		p.advance() // consume |
		start := p.peek().pos
		aggExpr = strings.TrimSpace(condStr[start:])
	} else if p.peek().typ != tokEOF {
		p.errors = append(p.errors, fmt.Sprintf("unexpected trailing token: %q", p.peek().val))
	}

	return node, aggExpr, p.errors
}

func (p *conditionParser) peek() token {
	if p.pos >= len(p.tokens) {
		return token{typ: tokEOF}
	}
	return p.tokens[p.pos]
}

func (p *conditionParser) advance() token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// parseOr: orExpr := andExpr ("or" andExpr)*
func (p *conditionParser) parseOr() exprNode {
	left := p.parseAnd()
	children := []exprNode{left}

	for p.peek().typ == tokOr {
		p.advance()
		children = append(children, p.parseAnd())
	}

	if len(children) == 1 {
		return children[0]
	}
	return exprOr{children: children}
}

// parseAnd: andExpr := notExpr ("and" notExpr)*
func (p *conditionParser) parseAnd() exprNode {
	left := p.parseNot()
	children := []exprNode{left}

	for p.peek().typ == tokAnd {
		p.advance()
		children = append(children, p.parseNot())
	}

	if len(children) == 1 {
		return children[0]
	}
	return exprAnd{children: children}
}

// parseNot: notExpr := "not" notExpr | atom
func (p *conditionParser) parseNot() exprNode {
	if p.peek().typ == tokNot {
		p.advance()
		return exprNot{child: p.parseNot()}
	}
	return p.parseAtom()
}

// parseAtom: atom := "(" orExpr ")" | quantifier "of" pattern | identifier
func (p *conditionParser) parseAtom() exprNode {
	t := p.peek()

	switch t.typ {
	case tokLParen:
		p.advance()
		node := p.parseOr()
		if p.peek().typ == tokRParen {
			p.advance()
		} else {
			p.errors = append(p.errors, "expected closing parenthesis")
		}
		return node

	case tokAll:
		// "all of ..."
		p.advance()
		if p.peek().typ == tokOf {
			p.advance()
			pattern := p.parsePattern()
			return exprQuantifier{quantifier: "all", pattern: pattern}
		}
		// If no "of", treat as identifier
		return exprRef{name: t.val}

	case tokNumber:
		// Could be "N of ..." quantifier
		num := t.val
		p.advance()
		if p.peek().typ == tokOf {
			p.advance()
			pattern := p.parsePattern()
			return exprQuantifier{quantifier: num, pattern: pattern}
		}
		// Just a number reference (unusual but handle)
		return exprRef{name: num}

	case tokIdent:
		p.advance()
		// "any of X" is a synonym for "1 of X".
		if strings.EqualFold(t.val, "any") && p.peek().typ == tokOf {
			p.advance()
			pattern := p.parsePattern()
			return exprQuantifier{quantifier: "1", pattern: pattern}
		}
		return exprRef{name: t.val}

	case tokEOF:
		p.errors = append(p.errors, "unexpected end of condition expression")
		return exprRef{name: ""}

	default:
		p.errors = append(p.errors, fmt.Sprintf("unexpected token: %q", t.val))
		p.advance()
		return exprRef{name: ""}
	}
}

// parsePattern parses the pattern after "of": identifier, wildcard, or "them".
func (p *conditionParser) parsePattern() string {
	t := p.peek()
	switch t.typ {
	case tokThem:
		p.advance()
		return "them"
	case tokStar:
		p.advance()
		return "*"
	case tokIdent:
		p.advance()
		// Could be "selection*" (identifier with wildcard)
		if p.peek().typ == tokStar {
			p.advance()
			return t.val + "*"
		}
		return t.val
	default:
		p.errors = append(p.errors, fmt.Sprintf("expected pattern after 'of', got %q", t.val))
		return ""
	}
}

// resolveExpr substitutes detection item references into the raw
// expression AST and returns the final condition tree. A reference to an
// unknown item is an error: dropping the branch would silently widen or
// narrow the rule.
func resolveExpr(node exprNode, items map[string]*detectionItem) (Node, error) {
	switch n := node.(type) {
	case exprRef:
		item, ok := items[n.name]
		if !ok {
			return nil, fmt.Errorf("condition references unknown detection item %q", n.name)
		}
		return item.tree, nil

	case exprAnd:
		children := make([]Node, 0, len(n.children))
		for _, child := range n.children {
			resolved, err := resolveExpr(child, items)
			if err != nil {
				return nil, err
			}
			children = append(children, resolved)
		}
		return And{Children: children}, nil

	case exprOr:
		children := make([]Node, 0, len(n.children))
		for _, child := range n.children {
			resolved, err := resolveExpr(child, items)
			if err != nil {
				return nil, err
			}
			children = append(children, resolved)
		}
		return Or{Children: children}, nil

	case exprNot:
		operand, err := resolveExpr(n.child, items)
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil

	case exprQuantifier:
		return resolveQuantifier(n, items)

	default:
		return nil, fmt.Errorf("unknown condition expression node %T", node)
	}
}

// resolveQuantifier expands "X of Y" by glob-matching detection item
// names. "all of" joins the matches with AND, "1 of" with OR. Other
// counts have no boolean equivalent in the target language.
func resolveQuantifier(q exprQuantifier, items map[string]*detectionItem) (Node, error) {
	names := matchDetectionItems(q.pattern, items)
	if len(names) == 0 {
		return nil, fmt.Errorf("quantifier pattern %q matches no detection items", q.pattern)
	}

	children := make([]Node, 0, len(names))
	for _, name := range names {
		children = append(children, items[name].tree)
	}

	switch q.quantifier {
	case "all":
		if len(children) == 1 {
			return children[0], nil
		}
		return And{Children: children}, nil
	case "1":
		if len(children) == 1 {
			return children[0], nil
		}
		return Or{Children: children}, nil
	default:
		return nil, fmt.Errorf("quantifier %q of %q cannot be expressed as a boolean query", q.quantifier, q.pattern)
	}
}

// matchDetectionItems returns detection item names matching a pattern,
// sorted so expansion order does not depend on map iteration.
func matchDetectionItems(pattern string, items map[string]*detectionItem) []string {
	var names []string
	for name := range items {
		if pattern == "them" || pattern == "*" || globMatch(pattern, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// globMatch performs simple glob matching (only * wildcard at end/start).
func globMatch(pattern, s string) bool {
	if pattern == s {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}
	return false
}
