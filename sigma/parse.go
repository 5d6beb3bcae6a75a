package sigma

import (
	"fmt"
	"strings"
	"time"
)

// parseGuardTimeout bounds how long a single rule may spend in parsing.
// Hostile YAML (deep nesting, alias bombs) should fail, not hang a batch.
const parseGuardTimeout = 5 * time.Second

// ParseRule parses a Sigma YAML rule into its metadata and condition
// tree. It is the package entry point. Runs with panic recovery and a
// wall-clock guard so one malformed rule cannot take down or stall the
// conversion of others.
func ParseRule(content []byte) (*Rule, error) {
	type outcome struct {
		rule *Rule
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic during parsing: %v", r)}
			}
		}()
		rule, err := parseRule(content)
		done <- outcome{rule: rule, err: err}
	}()

	select {
	case out := <-done:
		return out.rule, out.err
	case <-time.After(parseGuardTimeout):
		return nil, fmt.Errorf("parsing timed out after %s", parseGuardTimeout)
	}
}

// parseRule does the actual parsing work.
func parseRule(content []byte) (*Rule, error) {
	// Phase 1: YAML deserialization
	raw, err := parseSigmaRule(content)
	if err != nil {
		return nil, err
	}

	// Phase 2: Resolve detection items to condition trees
	items, err := resolveDetectionItems(&raw.Detection)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("sigma rule has no detection items")
	}

	// Phase 3: Parse the condition expression
	condStr, err := conditionString(&raw.Detection)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(condStr) == "" {
		return nil, fmt.Errorf("empty condition expression")
	}

	expr, aggExpr, parseErrs := parseConditionExpr(condStr)
	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("condition %q: %s", condStr, strings.Join(parseErrs, "; "))
	}
	if aggExpr != "" {
		return nil, fmt.Errorf("aggregation %q cannot be expressed as a boolean query", aggregationFunction(aggExpr))
	}

	// Phase 4: Substitute detection items into the expression
	tree, err := resolveExpr(expr, items)
	if err != nil {
		return nil, err
	}

	return &Rule{Metadata: raw.metadata(), Condition: tree}, nil
}
