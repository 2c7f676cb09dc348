package prediction

import "github.com/liamcoop/eligibility/validation"

// DefaultConstraints is the input contract shared by every entry point.
// Order matters: it is the order violations are reported in.
func DefaultConstraints() []validation.Constraint {
	return []validation.Constraint{
		{
			Field:      FieldAge,
			Type:       "double",
			Expression: `age >= 1.0 && age <= 120.0`,
			Message:    "must be between 1 and 120",
			Range:      &validation.Range{Min: 1, Max: 120},
		},
		{
			Field:      FieldGender,
			Type:       "string",
			Expression: `gender in ["male", "female"]`,
			Message:    "must be male or female",
			Allowed:    []string{"Male", "Female"},
		},
		{
			Field:      FieldICDFrequency,
			Type:       "int",
			Expression: `icd_frequency >= 1 && icd_frequency <= 683`,
			Message:    "must be between 1 and 683",
			Range:      &validation.Range{Min: 1, Max: 683},
		},
		{
			Field:      FieldCPTFrequency,
			Type:       "int",
			Expression: `cpt_frequency >= 1 && cpt_frequency <= 1815`,
			Message:    "must be between 1 and 1815",
			Range:      &validation.Range{Min: 1, Max: 1815},
		},
		{
			Field:      FieldMonth,
			Type:       "int",
			Expression: `month >= 1 && month <= 6`,
			Message:    "must be between 1 and 6",
			Range:      &validation.Range{Min: 1, Max: 6},
		},
	}
}

// NewDefaultValidator compiles DefaultConstraints
func NewDefaultValidator() (*validation.Engine, error) {
	return validation.NewEngine(DefaultConstraints())
}
