package prediction

// Canonical field names as they appear on every transport
const (
	FieldAge          = "age"
	FieldGender       = "gender"
	FieldICDFrequency = "icd_frequency"
	FieldCPTFrequency = "cpt_frequency"
	FieldMonth        = "month"
)

// FeatureCount is the length of every FeatureVector, normalization table and
// coefficient vector the service works with.
const FeatureCount = 5

// RequiredFields returns the input fields in canonical order.
// The same order is used for the feature vector, for missing-field reports
// and for reporting the first violated constraint.
func RequiredFields() []string {
	return []string{
		FieldAge,
		FieldGender,
		FieldICDFrequency,
		FieldCPTFrequency,
		FieldMonth,
	}
}

// PatientRecord is a single request's input after coercion
type PatientRecord struct {
	Age          float64
	Gender       string
	ICDFrequency int
	CPTFrequency int
	Month        int
}

// Values returns the record as a CEL activation keyed by field name.
// Gender is lower-cased so the constraint check is case-insensitive.
func (r PatientRecord) Values() map[string]any {
	return map[string]any{
		FieldAge:          r.Age,
		FieldGender:       normalizeGender(r.Gender),
		FieldICDFrequency: int64(r.ICDFrequency),
		FieldCPTFrequency: int64(r.CPTFrequency),
		FieldMonth:        int64(r.Month),
	}
}

// FeatureVector is ordered as [age, gender_encoded, icd_frequency, cpt_frequency, month].
// The classifier and normalization parameters were fitted with this exact order;
// nothing at runtime can detect a permutation.
type FeatureVector []float64

// NormalizationParams holds the fitted per-feature range
type NormalizationParams struct {
	Min []float64
	Max []float64
}

// Classification is the raw classifier output.
// Probabilities[0] is P(not eligible), Probabilities[1] is P(eligible).
type Classification struct {
	Label         int
	Probabilities [2]float64
}

// PredictionResult is the response contract shared by every entry point
type PredictionResult struct {
	Eligible               bool    `json:"eligible"`
	EligibleProbability    float64 `json:"eligible_probability"`
	NotEligibleProbability float64 `json:"not_eligible_probability"`
	Confidence             float64 `json:"confidence"`
}

// Text returns the label the UIs display for the result
func (r PredictionResult) Text() string {
	if r.Eligible {
		return "ELIGIBLE"
	}
	return "NOT ELIGIBLE"
}

// Fields is the untyped input a handler extracts from its transport:
// a JSON object, form values or a CSV row.
type Fields map[string]any

// Outcome is one position of a batch response. Exactly one of Result and Err is set.
type Outcome struct {
	Result *PredictionResult
	Err    error
}
