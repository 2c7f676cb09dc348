package prediction

import (
	"errors"
	"fmt"
	"strings"
)

// MissingFieldsError reports required fields absent from a request
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// InvalidInputError reports a field that is present but has the wrong type,
// category or range.
type InvalidInputError struct {
	Field      string
	Constraint string
	Value      any
}

func (e *InvalidInputError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
	}
	return fmt.Sprintf("invalid %s: %s, got %v", e.Field, e.Constraint, e.Value)
}

// DegenerateScaleError is raised when a fitted range has zero width.
// It points at malformed artifacts, never at user input.
type DegenerateScaleError struct {
	Index int
	Value float64
}

func (e *DegenerateScaleError) Error() string {
	return fmt.Sprintf("degenerate scale for feature %d: min and max are both %v", e.Index, e.Value)
}

// IsUserError reports whether err was caused by the request contents.
// Anything else is an internal fault.
func IsUserError(err error) bool {
	var missing *MissingFieldsError
	var invalid *InvalidInputError
	return errors.As(err, &missing) || errors.As(err, &invalid)
}
