package prediction

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxExactInt is the largest integer a float64 holds without rounding
const maxExactInt = 1 << 53

// ParseRecord turns transport fields into a PatientRecord.
// Absent keys, nulls and blank strings count as missing; every missing field is
// reported at once. Type problems are reported for the first offending field.
func ParseRecord(fields Fields) (PatientRecord, error) {
	var missing []string
	for _, name := range RequiredFields() {
		if isMissing(fields[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return PatientRecord{}, &MissingFieldsError{Fields: missing}
	}

	var record PatientRecord
	var err error

	if record.Age, err = toFloat(FieldAge, fields[FieldAge]); err != nil {
		return PatientRecord{}, err
	}
	if record.Gender, err = toString(FieldGender, fields[FieldGender]); err != nil {
		return PatientRecord{}, err
	}
	if record.ICDFrequency, err = toInt(FieldICDFrequency, fields[FieldICDFrequency]); err != nil {
		return PatientRecord{}, err
	}
	if record.CPTFrequency, err = toInt(FieldCPTFrequency, fields[FieldCPTFrequency]); err != nil {
		return PatientRecord{}, err
	}
	if record.Month, err = toInt(FieldMonth, fields[FieldMonth]); err != nil {
		return PatientRecord{}, err
	}

	return record, nil
}

func isMissing(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}

func toFloat(field string, value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, &InvalidInputError{Field: field, Constraint: "must be a number", Value: value}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &InvalidInputError{Field: field, Constraint: "must be a number", Value: value}
		}
		f = parsed
	default:
		return 0, &InvalidInputError{Field: field, Constraint: "must be a number", Value: value}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &InvalidInputError{Field: field, Constraint: "must be a finite number", Value: value}
	}
	return f, nil
}

func toInt(field string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	}

	f, err := toFloat(field, value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, &InvalidInputError{Field: field, Constraint: "must be an integer", Value: value}
	}
	return int(f), nil
}

func toString(field string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &InvalidInputError{
			Field:      field,
			Constraint: "must be a string",
			Value:      fmt.Sprintf("%v", value),
		}
	}
	return strings.TrimSpace(s), nil
}
