package validation

// Constraint is a single field rule compiled to a CEL program.
// Expression must evaluate to a bool; false means the value is rejected.
type Constraint struct {
	Field      string
	Type       string // one of: int, double, string
	Expression string
	Message    string // shown to the caller, e.g. "must be between 1 and 120"

	// Descriptive bounds, reported by the info endpoint only
	Range   *Range
	Allowed []string
}

// Range is an inclusive numeric interval
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Violation is a constraint that evaluated to false
type Violation struct {
	Field   string
	Message string
	Value   any
}
