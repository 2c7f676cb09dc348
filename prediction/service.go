package prediction

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/eligibility/validation"
)

// probabilityTolerance bounds |p0 + p1 - 1| for a classifier result to be accepted
const probabilityTolerance = 1e-9

// Validator checks a record's values against the input contract
type Validator interface {
	Check(values map[string]any) (*validation.Violation, error)
}

// Service runs validate → encode → normalize → classify → format.
// It holds only read-only state, so one instance serves all requests concurrently.
type Service struct {
	classifier Classifier
	params     NormalizationParams
	validator  Validator
	workers    int
}

// Option configures a Service
type Option func(*Service)

// WithWorkers bounds how many batch records are scored at once
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewService wires the loaded artifacts into a service
func NewService(classifier Classifier, params NormalizationParams, validator Validator, opts ...Option) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if len(params.Min) != FeatureCount {
		return nil, fmt.Errorf("normalization table has %d features, want %d", len(params.Min), FeatureCount)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		classifier: classifier,
		params: NormalizationParams{
			Min: append([]float64(nil), params.Min...),
			Max: append([]float64(nil), params.Max...),
		},
		validator: validator,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Predict scores a typed record
func (s *Service) Predict(record PatientRecord) (*PredictionResult, error) {
	violation, err := s.validator.Check(record.Values())
	if err != nil {
		return nil, fmt.Errorf("validating record: %w", err)
	}
	if violation != nil {
		return nil, &InvalidInputError{
			Field:      violation.Field,
			Constraint: violation.Message,
			Value:      violation.Value,
		}
	}

	vector, err := Encode(record)
	if err != nil {
		return nil, err
	}

	normalized, err := Normalize(vector, s.params)
	if err != nil {
		return nil, fmt.Errorf("normalizing features: %w", err)
	}

	classification, err := s.classifier.Classify(normalized)
	if err != nil {
		return nil, fmt.Errorf("classifying: %w", err)
	}

	return shapeResult(classification)
}

// PredictFields parses untyped transport fields and scores them
func (s *Service) PredictFields(fields Fields) (*PredictionResult, error) {
	record, err := ParseRecord(fields)
	if err != nil {
		return nil, err
	}
	return s.Predict(record)
}

// PredictBatch scores every entry independently. The output has one Outcome per
// input at the same index; a failing entry never affects its neighbours.
func (s *Service) PredictBatch(batch []Fields) []Outcome {
	outcomes := make([]Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range batch {
		g.Go(func() error {
			result, err := s.PredictFields(batch[i])
			outcomes[i] = Outcome{Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func shapeResult(c Classification) (*PredictionResult, error) {
	p0, p1 := c.Probabilities[0], c.Probabilities[1]
	if c.Label != 0 && c.Label != 1 {
		return nil, fmt.Errorf("classifier returned label %d, want 0 or 1", c.Label)
	}
	if math.Abs(p0+p1-1) > probabilityTolerance {
		return nil, fmt.Errorf("classifier probabilities %v and %v do not sum to 1", p0, p1)
	}

	return &PredictionResult{
		Eligible:               c.Label == 1,
		EligibleProbability:    p1,
		NotEligibleProbability: p0,
		Confidence:             math.Max(p0, p1),
	}, nil
}
