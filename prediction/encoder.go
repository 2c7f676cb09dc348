package prediction

import "strings"

const (
	genderMale   = "male"
	genderFemale = "female"
)

func normalizeGender(gender string) string {
	return strings.ToLower(strings.TrimSpace(gender))
}

// Encode converts a record into the fixed-order feature vector.
// Gender is the only categorical input: male encodes to 1, female to 0.
func Encode(record PatientRecord) (FeatureVector, error) {
	var genderEncoded float64
	switch normalizeGender(record.Gender) {
	case genderMale:
		genderEncoded = 1
	case genderFemale:
		genderEncoded = 0
	default:
		return nil, &InvalidInputError{
			Field:      FieldGender,
			Constraint: "must be male or female",
			Value:      record.Gender,
		}
	}

	return FeatureVector{
		record.Age,
		genderEncoded,
		float64(record.ICDFrequency),
		float64(record.CPTFrequency),
		float64(record.Month),
	}, nil
}
