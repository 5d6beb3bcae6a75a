package sigma

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// detectionItem holds the resolved condition tree for a named detection block.
type detectionItem struct {
	name string
	tree Node
}

// resolveDetectionItems walks the detection mapping in document order and
// resolves each named entry (excluding "condition" and "timeframe") into
// a condition tree.
func resolveDetectionItems(detection *yaml.Node) (map[string]*detectionItem, error) {
	items := make(map[string]*detectionItem)

	for i := 0; i+1 < len(detection.Content); i += 2 {
		key := detection.Content[i]
		val := detection.Content[i+1]

		lower := strings.ToLower(key.Value)
		if lower == "condition" || lower == "timeframe" {
			continue
		}

		tree, err := resolveDetectionEntry(key.Value, val)
		if err != nil {
			return nil, err
		}
		items[key.Value] = &detectionItem{name: key.Value, tree: tree}
	}

	return items, nil
}

// conditionString extracts the condition expression from the detection
// mapping. A list of conditions yields the first entry, matching the
// one-query-per-rule output contract.
func conditionString(detection *yaml.Node) (string, error) {
	for i := 0; i+1 < len(detection.Content); i += 2 {
		if !strings.EqualFold(detection.Content[i].Value, "condition") {
			continue
		}
		val := detection.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			return val.Value, nil
		case yaml.SequenceNode:
			if len(val.Content) == 0 {
				return "", fmt.Errorf("empty condition list")
			}
			return val.Content[0].Value, nil
		default:
			return "", fmt.Errorf("condition must be a string or list of strings")
		}
	}
	return "", fmt.Errorf("sigma rule missing 'detection.condition'")
}

// resolveDetectionEntry resolves a single detection entry to a condition tree.
func resolveDetectionEntry(name string, node *yaml.Node) (Node, error) {
	switch node.Kind {
	case yaml.MappingNode:
		// Map of field:value, AND between fields
		return resolveFieldMap(name, node)

	case yaml.SequenceNode:
		// List: either list of maps (OR between maps) or keyword list
		return resolveList(name, node)

	case yaml.ScalarNode:
		// Single keyword value
		lit, err := scalarLiteral(node, false)
		if err != nil {
			return nil, fmt.Errorf("detection %q: %w", name, err)
		}
		return FieldEquals{Value: lit}, nil

	default:
		return nil, fmt.Errorf("detection %q: unsupported YAML structure (%s)", name, yamlKindName(node.Kind))
	}
}

// resolveFieldMap resolves a map of field:value pairs. Fields within a
// map are AND'd, in document order.
func resolveFieldMap(name string, node *yaml.Node) (Node, error) {
	var children []Node

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]

		child, err := resolveFieldValue(key.Value, val)
		if err != nil {
			return nil, fmt.Errorf("detection %q: %w", name, err)
		}
		children = append(children, child)
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("detection %q: empty field map", name)
	}
	return conjoin(children), nil
}

// resolveFieldValue resolves a single field:value pair, applying modifiers.
func resolveFieldValue(fieldWithMods string, val *yaml.Node) (Node, error) {
	field, chain, err := parseModifiers(fieldWithMods)
	if err != nil {
		return nil, err
	}
	if chain.fieldRef {
		return nil, fmt.Errorf("field %q: fieldref comparisons are not supported by this backend", field)
	}

	// Null value: the field must be absent.
	if val.Kind == yaml.ScalarNode && val.Tag == "!!null" {
		return FieldEquals{Field: field, Value: Presence{Present: false}}, nil
	}

	scalars, err := scalarNodes(field, val)
	if err != nil {
		return nil, err
	}

	// exists modifier: the value is the assertion itself.
	if chain.exists {
		if len(scalars) != 1 {
			return nil, fmt.Errorf("field %q: exists takes a single boolean value", field)
		}
		return FieldEquals{Field: field, Value: Presence{Present: truthy(scalars[0].Value)}}, nil
	}

	// Numeric comparison modifiers.
	if chain.compareOp != "" {
		return resolveComparison(field, chain, scalars)
	}

	// Regular expression values.
	if chain.regex {
		return resolveRegex(field, chain, scalars)
	}

	// Plain values without string-match modifiers or value transforms
	// keep their YAML types.
	if !chain.stringMatch && !chain.cidr && len(chain.transforms) == 0 {
		return resolveTypedValues(field, chain, scalars)
	}

	// String matching: coerce, run the transform chain, build literals.
	values := make([]string, 0, len(scalars))
	for _, s := range scalars {
		values = append(values, s.Value)
	}
	values, err = chain.apply(values)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}

	lits := make([]Literal, 0, len(values))
	for _, v := range values {
		lits = append(lits, String{Value: v, Match: chain.match, CaseSensitive: chain.caseSensitive})
	}
	return combineLiterals(field, lits, chain.allOf), nil
}

// resolveTypedValues builds literals that preserve YAML scalar types.
func resolveTypedValues(field string, chain *modifierChain, scalars []*yaml.Node) (Node, error) {
	lits := make([]Literal, 0, len(scalars))
	for _, s := range scalars {
		lit, err := scalarLiteral(s, chain.caseSensitive)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		// A bare wildcard matches any value, i.e. a presence test.
		if str, ok := lit.(String); ok && str.Value == "*" {
			lit = Presence{Present: true}
		}
		lits = append(lits, lit)
	}
	return combineLiterals(field, lits, chain.allOf), nil
}

// resolveComparison builds numeric comparison leaves.
func resolveComparison(field string, chain *modifierChain, scalars []*yaml.Node) (Node, error) {
	children := make([]Node, 0, len(scalars))
	for _, s := range scalars {
		f, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q: comparison value %q is not a number", field, s.Value)
		}
		children = append(children, FieldEquals{Field: field, Value: Comparison{Op: chain.compareOp, Value: f}})
	}
	if chain.allOf {
		return conjoin(children), nil
	}
	return disjoin(children), nil
}

// resolveRegex validates and builds regex leaves.
func resolveRegex(field string, chain *modifierChain, scalars []*yaml.Node) (Node, error) {
	children := make([]Node, 0, len(scalars))
	for _, s := range scalars {
		if err := validateRegex(s.Value); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		children = append(children, FieldEquals{Field: field, Value: Regex{Pattern: s.Value}})
	}
	if chain.allOf {
		return conjoin(children), nil
	}
	return disjoin(children), nil
}

// combineLiterals joins multiple values for one field: AND'd as separate
// leaves under |all, otherwise a single list-valued leaf (OR semantics,
// foldable into list membership by the backend).
func combineLiterals(field string, lits []Literal, allOf bool) Node {
	if len(lits) == 1 {
		return FieldEquals{Field: field, Value: lits[0]}
	}
	if allOf {
		children := make([]Node, 0, len(lits))
		for _, lit := range lits {
			children = append(children, FieldEquals{Field: field, Value: lit})
		}
		return And{Children: children}
	}
	return FieldEquals{Field: field, Value: List{Values: lits}}
}

// resolveList resolves a YAML list: a list of maps is OR'd selections, a
// list of scalars is an OR'd keyword list.
func resolveList(name string, node *yaml.Node) (Node, error) {
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("detection %q: empty list", name)
	}

	if node.Content[0].Kind == yaml.MappingNode {
		children := make([]Node, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("detection %q: mixed map and scalar entries in list", name)
			}
			child, err := resolveFieldMap(name, item)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return disjoin(children), nil
	}

	// Keyword list: unbound values, OR'd.
	children := make([]Node, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("detection %q: mixed map and scalar entries in list", name)
		}
		if item.Tag == "!!null" {
			continue
		}
		lit, err := scalarLiteral(item, false)
		if err != nil {
			return nil, fmt.Errorf("detection %q: %w", name, err)
		}
		children = append(children, FieldEquals{Value: lit})
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("detection %q: keyword list has no usable values", name)
	}
	return disjoin(children), nil
}

// scalarNodes flattens a scalar or a sequence of scalars.
func scalarNodes(field string, val *yaml.Node) ([]*yaml.Node, error) {
	switch val.Kind {
	case yaml.ScalarNode:
		return []*yaml.Node{val}, nil
	case yaml.SequenceNode:
		if len(val.Content) == 0 {
			return nil, fmt.Errorf("field %q: empty value list", field)
		}
		out := make([]*yaml.Node, 0, len(val.Content))
		for _, item := range val.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("field %q: nested structures are not valid detection values", field)
			}
			out = append(out, item)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported value structure (%s)", field, yamlKindName(val.Kind))
	}
}

// scalarLiteral converts a YAML scalar into a typed literal.
func scalarLiteral(node *yaml.Node, caseSensitive bool) (Literal, error) {
	switch node.Tag {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value %q", node.Value)
		}
		return Number{Value: f}, nil
	case "!!bool":
		return Bool{Value: truthy(node.Value)}, nil
	case "!!null":
		return Presence{Present: false}, nil
	default:
		return String{Value: node.Value, CaseSensitive: caseSensitive}, nil
	}
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "false", "no", "off", "0", "":
		return false
	default:
		return true
	}
}

// conjoin wraps children in an And group, collapsing single children.
func conjoin(children []Node) Node {
	if len(children) == 1 {
		return children[0]
	}
	return And{Children: children}
}

// disjoin wraps children in an Or group, collapsing single children.
func disjoin(children []Node) Node {
	if len(children) == 1 {
		return children[0]
	}
	return Or{Children: children}
}
