package sigma

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

const (
	// maxRegexLength is the maximum allowed regex pattern length.
	maxRegexLength = 500
	// regexCompileTimeout bounds backtracking when a pattern is exercised.
	regexCompileTimeout = 500 * time.Millisecond
)

var repetitionRange = regexp.MustCompile(`\{(\d+)(?:,\d*)?\}`)

// validateRegex screens a |re pattern before it is accepted into a rule.
// Patterns land verbatim in generated queries and in whatever engine
// executes them downstream, so obvious ReDoS shapes are rejected here.
func validateRegex(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("regex pattern cannot be empty")
	}
	if len(pattern) > maxRegexLength {
		return fmt.Errorf("regex pattern too long: %d characters (max %d)", len(pattern), maxRegexLength)
	}

	if err := checkReDoSShapes(pattern); err != nil {
		return err
	}
	if count := strings.Count(pattern, "|"); count > 50 {
		return fmt.Errorf("regex pattern has too many alternations: %d (max 50)", count)
	}
	if err := checkRepetitionBounds(pattern); err != nil {
		return err
	}

	// Compile with a backtracking engine so constructs Go's regexp does
	// not accept (lookaround, backreferences) still validate.
	re, err := regexp2.Compile(pattern, 0)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	re.MatchTimeout = regexCompileTimeout

	return nil
}

// checkReDoSShapes rejects nested quantifier patterns.
func checkReDoSShapes(pattern string) error {
	dangerous := []string{
		")+*", ")*+", ")+{", ")*{",
		"}+*", "}*+", "}+{", "}*{",
		"++", "**", "*+", "+*",
	}
	for _, d := range dangerous {
		if strings.Contains(pattern, d) {
			return fmt.Errorf("regex pattern contains nested quantifiers: found %q", d)
		}
	}
	return nil
}

// checkRepetitionBounds rejects repetition ranges of 1000 or more.
func checkRepetitionBounds(pattern string) error {
	for _, match := range repetitionRange.FindAllStringSubmatch(pattern, -1) {
		count, err := strconv.Atoi(match[1])
		if err == nil && count >= 1000 {
			return fmt.Errorf("regex pattern has excessive repetition: %s (max 999)", match[0])
		}
	}
	return nil
}
