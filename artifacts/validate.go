package artifacts

import (
	"fmt"
	"regexp"
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateFeatureNames checks the feature-name list written at training time.
// Names must be unique identifiers so they can be echoed in diagnostics and
// matched against column headers.
func validateFeatureNames(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("feature list cannot be empty")
	}

	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if err := validateIdentifier(name); err != nil {
			return fmt.Errorf("invalid feature name %q at position %d: %w", name, i, err)
		}
		if seen[name] {
			return fmt.Errorf("duplicate feature name %q", name)
		}
		seen[name] = true
	}
	return nil
}

func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$")
	}
	return nil
}
