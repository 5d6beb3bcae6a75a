package sigma

import "strings"

// aggregationFunction classifies the aggregation expression after the |
// in a condition ("count() by src > 10", "near selection1 and ...").
// PowerQuery has no aggregation pipeline for detection rules, so the
// converter only needs the function name for its error message; emitting
// the boolean part alone would silently widen the rule.
func aggregationFunction(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}

	i := 0
	for i < len(expr) && (isIdentChar(rune(expr[i]))) {
		i++
	}
	word := strings.ToLower(expr[:i])

	switch word {
	case "count", "sum", "min", "max", "avg", "near":
		return word
	default:
		return "unknown"
	}
}
