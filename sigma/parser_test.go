package sigma

import (
	"strings"
	"testing"
)

func TestConditionParser_SimpleRef(t *testing.T) {
	node, agg, errs := parseConditionExpr("selection")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if agg != "" {
		t.Errorf("expected no aggregation, got %q", agg)
	}
	ref, ok := node.(exprRef)
	if !ok {
		t.Fatalf("expected exprRef, got %T", node)
	}
	if ref.name != "selection" {
		t.Errorf("expected name 'selection', got %q", ref.name)
	}
}

func TestConditionParser_And(t *testing.T) {
	node, _, errs := parseConditionExpr("selection and filter")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	and, ok := node.(exprAnd)
	if !ok {
		t.Fatalf("expected exprAnd, got %T", node)
	}
	if len(and.children) != 2 {
		t.Errorf("expected 2 children, got %d", len(and.children))
	}
}

func TestConditionParser_Or(t *testing.T) {
	node, _, errs := parseConditionExpr("selection1 or selection2")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	or, ok := node.(exprOr)
	if !ok {
		t.Fatalf("expected exprOr, got %T", node)
	}
	if len(or.children) != 2 {
		t.Errorf("expected 2 children, got %d", len(or.children))
	}
}

func TestConditionParser_NaryAnd(t *testing.T) {
	node, _, errs := parseConditionExpr("a and b and c")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	and, ok := node.(exprAnd)
	if !ok {
		t.Fatalf("expected exprAnd, got %T", node)
	}
	if len(and.children) != 3 {
		t.Errorf("expected flat 3-child AND, got %d children", len(and.children))
	}
}

func TestConditionParser_Not(t *testing.T) {
	node, _, errs := parseConditionExpr("not selection")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	not, ok := node.(exprNot)
	if !ok {
		t.Fatalf("expected exprNot, got %T", node)
	}
	ref, ok := not.child.(exprRef)
	if !ok {
		t.Fatalf("expected exprRef child, got %T", not.child)
	}
	if ref.name != "selection" {
		t.Errorf("expected name 'selection', got %q", ref.name)
	}
}

func TestConditionParser_SelectionAndNotFilter(t *testing.T) {
	node, _, errs := parseConditionExpr("selection and not filter")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	and, ok := node.(exprAnd)
	if !ok {
		t.Fatalf("expected exprAnd, got %T", node)
	}
	if len(and.children) != 2 {
		t.Errorf("expected 2 children, got %d", len(and.children))
	}
	if _, ok := and.children[1].(exprNot); !ok {
		t.Fatalf("expected exprNot as second child, got %T", and.children[1])
	}
}

func TestConditionParser_Precedence(t *testing.T) {
	// AND binds tighter than OR: a or b and c == a or (b and c)
	node, _, errs := parseConditionExpr("a or b and c")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	or, ok := node.(exprOr)
	if !ok {
		t.Fatalf("expected exprOr at top, got %T", node)
	}
	if len(or.children) != 2 {
		t.Fatalf("expected 2 OR children, got %d", len(or.children))
	}
	if _, ok := or.children[1].(exprAnd); !ok {
		t.Errorf("expected exprAnd as second OR child, got %T", or.children[1])
	}
}

func TestConditionParser_Parens(t *testing.T) {
	node, _, errs := parseConditionExpr("(selection1 or selection2) and filter")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	and, ok := node.(exprAnd)
	if !ok {
		t.Fatalf("expected exprAnd, got %T", node)
	}
	if _, ok := and.children[0].(exprOr); !ok {
		t.Fatalf("expected exprOr as first child, got %T", and.children[0])
	}
}

func TestConditionParser_AllOfThem(t *testing.T) {
	node, _, errs := parseConditionExpr("all of them")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	q, ok := node.(exprQuantifier)
	if !ok {
		t.Fatalf("expected exprQuantifier, got %T", node)
	}
	if q.quantifier != "all" || q.pattern != "them" {
		t.Errorf("expected all of them, got %q of %q", q.quantifier, q.pattern)
	}
}

func TestConditionParser_1OfSelection(t *testing.T) {
	node, _, errs := parseConditionExpr("1 of selection*")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	q, ok := node.(exprQuantifier)
	if !ok {
		t.Fatalf("expected exprQuantifier, got %T", node)
	}
	if q.quantifier != "1" || q.pattern != "selection*" {
		t.Errorf("expected 1 of selection*, got %q of %q", q.quantifier, q.pattern)
	}
}

func TestConditionParser_AnyOfIsOneOf(t *testing.T) {
	node, _, errs := parseConditionExpr("any of selection*")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	q, ok := node.(exprQuantifier)
	if !ok {
		t.Fatalf("expected exprQuantifier, got %T", node)
	}
	if q.quantifier != "1" || q.pattern != "selection*" {
		t.Errorf("expected 1 of selection*, got %q of %q", q.quantifier, q.pattern)
	}
}

func TestConditionParser_Aggregation(t *testing.T) {
	node, agg, errs := parseConditionExpr("selection | count() > 5")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := node.(exprRef); !ok {
		t.Fatalf("expected exprRef before pipe, got %T", node)
	}
	if agg != "count() > 5" {
		t.Errorf("expected aggregation 'count() > 5', got %q", agg)
	}
}

func TestConditionParser_UnbalancedParen(t *testing.T) {
	_, _, errs := parseConditionExpr("(selection and filter")
	if len(errs) == 0 {
		t.Fatal("expected parse errors for unbalanced parenthesis")
	}
}

func TestConditionParser_TrailingGarbage(t *testing.T) {
	_, _, errs := parseConditionExpr("selection filter")
	if len(errs) == 0 {
		t.Fatal("expected parse errors for trailing token")
	}
}

func TestConditionParser_Empty(t *testing.T) {
	_, _, errs := parseConditionExpr("")
	if len(errs) == 0 {
		t.Fatal("expected parse errors for empty expression")
	}
}

func testItems(names ...string) map[string]*detectionItem {
	items := make(map[string]*detectionItem)
	for _, name := range names {
		items[name] = &detectionItem{
			name: name,
			tree: FieldEquals{Field: name, Value: String{Value: "v"}},
		}
	}
	return items
}

func TestResolveExpr_Ref(t *testing.T) {
	items := testItems("selection")
	tree, err := resolveExpr(exprRef{name: "selection"}, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, ok := tree.(FieldEquals)
	if !ok {
		t.Fatalf("expected FieldEquals, got %T", tree)
	}
	if leaf.Field != "selection" {
		t.Errorf("expected field 'selection', got %q", leaf.Field)
	}
}

func TestResolveExpr_UnknownRef(t *testing.T) {
	items := testItems("selection")
	_, err := resolveExpr(exprRef{name: "missing"}, items)
	if err == nil {
		t.Fatal("expected error for unknown detection item")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error should name the unknown item: %v", err)
	}
}

func TestResolveExpr_AndNot(t *testing.T) {
	items := testItems("selection", "filter")
	expr := exprAnd{children: []exprNode{
		exprRef{name: "selection"},
		exprNot{child: exprRef{name: "filter"}},
	}}
	tree, err := resolveExpr(expr, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := tree.(And)
	if !ok {
		t.Fatalf("expected And, got %T", tree)
	}
	if len(and.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(and.Children))
	}
	if _, ok := and.Children[1].(Not); !ok {
		t.Errorf("expected Not as second child, got %T", and.Children[1])
	}
}

func TestResolveQuantifier_AllOfThem(t *testing.T) {
	items := testItems("selection1", "selection2", "filter")
	tree, err := resolveExpr(exprQuantifier{quantifier: "all", pattern: "them"}, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := tree.(And)
	if !ok {
		t.Fatalf("expected And, got %T", tree)
	}
	if len(and.Children) != 3 {
		t.Errorf("expected 3 children, got %d", len(and.Children))
	}
}

func TestResolveQuantifier_OneOfPattern(t *testing.T) {
	items := testItems("selection1", "selection2", "filter")
	tree, err := resolveExpr(exprQuantifier{quantifier: "1", pattern: "selection*"}, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	or, ok := tree.(Or)
	if !ok {
		t.Fatalf("expected Or, got %T", tree)
	}
	if len(or.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(or.Children))
	}
	// Expansion order follows sorted names, not map iteration.
	first, ok := or.Children[0].(FieldEquals)
	if !ok {
		t.Fatalf("expected FieldEquals, got %T", or.Children[0])
	}
	if first.Field != "selection1" {
		t.Errorf("expected selection1 first, got %q", first.Field)
	}
}

func TestResolveQuantifier_SingleMatchCollapses(t *testing.T) {
	items := testItems("selection")
	tree, err := resolveExpr(exprQuantifier{quantifier: "1", pattern: "selection*"}, items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree.(FieldEquals); !ok {
		t.Errorf("single match should collapse to the leaf, got %T", tree)
	}
}

func TestResolveQuantifier_NoMatch(t *testing.T) {
	items := testItems("selection")
	_, err := resolveExpr(exprQuantifier{quantifier: "1", pattern: "filter*"}, items)
	if err == nil {
		t.Fatal("expected error for quantifier matching nothing")
	}
}

func TestResolveQuantifier_UnsupportedCount(t *testing.T) {
	items := testItems("selection1", "selection2", "selection3")
	_, err := resolveExpr(exprQuantifier{quantifier: "2", pattern: "them"}, items)
	if err == nil {
		t.Fatal("expected error for '2 of them'")
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"selection", "selection", true},
		{"selection*", "selection1", true},
		{"selection*", "filter", false},
		{"*filter", "net_filter", true},
		{"*filter", "filtered", false},
		{"selection", "selection1", false},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s); got != tt.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}
