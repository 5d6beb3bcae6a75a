package powerquery

import (
	"regexp"
	"strings"
)

var (
	// simpleFieldName matches field names that need no quoting.
	simpleFieldName = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	// fieldWhitespace matches characters that are escaped inside field
	// names whether or not the name ends up quoted.
	fieldWhitespace = regexp.MustCompile(`\s`)
)

// newEscaper builds the string-literal escaper for a dialect: the
// escape character and the string quote are both prefixed with the
// escape character.
func newEscaper(d Dialect) *strings.Replacer {
	return strings.NewReplacer(
		d.EscapeChar, d.EscapeChar+d.EscapeChar,
		d.StringQuote, d.EscapeChar+d.StringQuote,
	)
}

// renderField quotes and escapes a field name. Simple dotted
// identifiers pass through untouched; anything else is wrapped in the
// dialect's field quote with whitespace backslash-escaped.
func (c *Compiler) renderField(name string) string {
	if simpleFieldName.MatchString(name) {
		return name
	}
	escaped := fieldWhitespace.ReplaceAllStringFunc(name, func(ws string) string {
		return c.d.EscapeChar + ws
	})
	return c.d.FieldQuote + escaped + c.d.FieldQuote
}

// quoteString wraps a value in the dialect's string quotes, escaping
// embedded quote and escape characters. The escape is a pure function of
// the value: unescaping the result reproduces the input exactly.
func (c *Compiler) quoteString(s string) string {
	return c.d.StringQuote + c.escaper.Replace(s) + c.d.StringQuote
}

// quoteRegex escapes a regex source for the target's string-literal
// syntax. The pattern itself is never reinterpreted; only the characters
// that would terminate or corrupt the surrounding literal are escaped.
func (c *Compiler) quoteRegex(pattern string) string {
	return c.d.StringQuote + c.escaper.Replace(pattern) + c.d.StringQuote
}
