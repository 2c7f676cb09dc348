package prediction

import (
	"errors"
	"fmt"
	"math"
)

// Classifier is the trained model. Implementations must be safe for concurrent use
// and return probabilities that sum to 1.
type Classifier interface {
	Classify(normalized FeatureVector) (Classification, error)
}

// LogisticRegression scores a normalized vector with a fitted linear model
type LogisticRegression struct {
	Coefficients []float64
	Intercept    float64
}

// NewLogisticRegression copies the fitted parameters so later changes to the
// caller's slice cannot leak into a serving model.
func NewLogisticRegression(coefficients []float64, intercept float64) (*LogisticRegression, error) {
	if len(coefficients) == 0 {
		return nil, errors.New("logistic regression needs at least one coefficient")
	}
	for i, c := range coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return nil, errors.New("intercept is not finite")
	}

	coef := make([]float64, len(coefficients))
	copy(coef, coefficients)
	return &LogisticRegression{Coefficients: coef, Intercept: intercept}, nil
}

// Classify returns label 1 when P(eligible) > 0.5
func (m *LogisticRegression) Classify(normalized FeatureVector) (Classification, error) {
	if len(normalized) != len(m.Coefficients) {
		return Classification{}, fmt.Errorf("classifier expects %d features, got %d",
			len(m.Coefficients), len(normalized))
	}

	z := m.Intercept
	for i, x := range normalized {
		z += m.Coefficients[i] * x
	}

	p1 := sigmoid(z)
	label := 0
	if p1 > 0.5 {
		label = 1
	}
	return Classification{
		Label:         label,
		Probabilities: [2]float64{1 - p1, p1},
	}, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
