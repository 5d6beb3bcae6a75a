package sigma

// Node is a node in a rule's boolean condition tree. The set of
// implementations is closed: And, Or, Not and FieldEquals. Backends
// switch over this set exhaustively; anything else is a programming
// error surfaced by the backend, never silently dropped.
type Node interface {
	node()
}

// And is the conjunction of its children. Never empty.
type And struct {
	Children []Node
}

func (And) node() {}

// Or is the disjunction of its children. Never empty.
type Or struct {
	Children []Node
}

func (Or) node() {}

// Not negates a single operand.
type Not struct {
	Operand Node
}

func (Not) node() {}

// FieldEquals compares a field against a literal value. The literal
// encodes the match kind (exact, substring, regex, comparison, list,
// presence). An empty Field means an unbound keyword value that is
// matched against the whole event.
type FieldEquals struct {
	Field string
	Value Literal
}

func (FieldEquals) node() {}

// Literal is a typed leaf value. The set of implementations is closed:
// String, Number, Bool, Regex, Comparison, List and Presence.
type Literal interface {
	literal()
}

// MatchKind selects how a String literal is matched.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchSuffix
	MatchSubstring
)

// String is a string value. Value may contain * wildcard markers; how
// they are interpreted depends on Match and on the backend.
type String struct {
	Value         string
	Match         MatchKind
	CaseSensitive bool
}

func (String) literal() {}

// Number is a numeric value compared for equality.
type Number struct {
	Value float64
}

func (Number) literal() {}

// Bool is a boolean value compared for equality.
type Bool struct {
	Value bool
}

func (Bool) literal() {}

// Regex is a regular expression matched against the field value. The
// pattern is carried verbatim; backends escape it for their string
// literal syntax but never reinterpret it.
type Regex struct {
	Pattern string
}

func (Regex) literal() {}

// CompareOp is a numeric comparison operator.
type CompareOp string

const (
	CompareLT  CompareOp = "<"
	CompareLTE CompareOp = "<="
	CompareGT  CompareOp = ">"
	CompareGTE CompareOp = ">="
)

// Comparison compares a field numerically against a threshold.
type Comparison struct {
	Op    CompareOp
	Value float64
}

func (Comparison) literal() {}

// List is an ordered disjunction of values for one field. Backends may
// fold it into a list-membership form when every element allows it.
type List struct {
	Values []Literal
}

func (List) literal() {}

// Presence asserts that a field has any value (Present) or no value at
// all (absent). A null value in a rule maps to the absent form.
type Presence struct {
	Present bool
}

func (Presence) literal() {}
