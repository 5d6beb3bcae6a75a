package powerquery

import "fmt"

// UnsupportedError reports a condition node or literal the compiler does
// not recognize. It is always fatal for the rule being compiled:
// skipping the construct would silently narrow the rule's matching
// scope, which is worse than failing.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported construct: %s", e.Construct)
}

func unsupported(v any) error {
	return &UnsupportedError{Construct: fmt.Sprintf("%T", v)}
}
