package prediction

import "fmt"

// Validate checks that the table is usable for Normalize
func (p NormalizationParams) Validate() error {
	if len(p.Min) != len(p.Max) {
		return fmt.Errorf("normalization table has %d minimums and %d maximums", len(p.Min), len(p.Max))
	}
	for i := range p.Min {
		if p.Max[i] == p.Min[i] {
			return &DegenerateScaleError{Index: i, Value: p.Min[i]}
		}
	}
	return nil
}

// Normalize applies the fitted min-max transform.
// Values outside the fitted range map outside [0, 1]; they are not clamped.
func Normalize(vector FeatureVector, params NormalizationParams) (FeatureVector, error) {
	if len(vector) != len(params.Min) || len(vector) != len(params.Max) {
		return nil, fmt.Errorf("feature vector has %d values, normalization table has %d/%d",
			len(vector), len(params.Min), len(params.Max))
	}

	out := make(FeatureVector, len(vector))
	for i, value := range vector {
		span := params.Max[i] - params.Min[i]
		if span == 0 {
			return nil, &DegenerateScaleError{Index: i, Value: params.Min[i]}
		}
		out[i] = (value - params.Min[i]) / span
	}
	return out, nil
}
