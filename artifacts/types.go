package artifacts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Artifact names as reported in load errors
const (
	ArtifactModel    = "model"
	ArtifactScaler   = "scaler"
	ArtifactFeatures = "features"
	ArtifactMetadata = "metadata"
	ArtifactBundle   = "bundle"
)

// ErrNotFound marks an artifact that does not exist at its configured location
var ErrNotFound = errors.New("artifact not found")

// LoadError is a startup failure; the process must not serve without artifacts
type LoadError struct {
	Artifact string
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	if errors.Is(e.Err, ErrNotFound) {
		return fmt.Sprintf("artifact not found: %s (%s)", e.Artifact, e.Location)
	}
	return fmt.Sprintf("failed to load %s artifact from %s: %v", e.Artifact, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Source loads the artifact bundle once at startup
type Source interface {
	Load(ctx context.Context) (*Bundle, error)
	Describe() string
}

// ModelDocument is the persisted classifier
type ModelDocument struct {
	ModelType    string    `json:"model_type" yaml:"model_type"`
	Coefficients []float64 `json:"coefficients" yaml:"coefficients"`
	Intercept    float64   `json:"intercept" yaml:"intercept"`
}

// ScalerDocument is the persisted min-max scaler
type ScalerDocument struct {
	DataMin []float64 `json:"data_min" yaml:"data_min"`
	DataMax []float64 `json:"data_max" yaml:"data_max"`
}

// Metadata describes the model for the info endpoint. Values are recorded at
// training time and served as-is.
type Metadata struct {
	ModelType    string        `json:"model_type" yaml:"model_type"`
	Algorithm    string        `json:"algorithm" yaml:"algorithm"`
	Version      string        `json:"version,omitempty" yaml:"version,omitempty"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	Features     []FeatureInfo `json:"features" yaml:"features"`
	Coefficients []float64     `json:"coefficients,omitempty" yaml:"coefficients,omitempty"`
	Intercept    *float64      `json:"intercept,omitempty" yaml:"intercept,omitempty"`
	Performance  *Performance  `json:"performance,omitempty" yaml:"performance,omitempty"`
}

// FeatureInfo documents one input field
type FeatureInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Type        string    `json:"type" yaml:"type"`
	Range       []float64 `json:"range,omitempty" yaml:"range,omitempty"`
	Values      []string  `json:"values,omitempty" yaml:"values,omitempty"`
	Unit        string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Performance holds offline evaluation metrics
type Performance struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1Score   float64 `json:"f1_score" yaml:"f1_score"`
	ROCAUC    float64 `json:"roc_auc" yaml:"roc_auc"`
}

// Documents is the raw content of a bundle as stored on disk or in the registry
type Documents struct {
	Model    ModelDocument
	Scaler   ScalerDocument
	Features []string
	Metadata *Metadata
}

// Version is one row of the registry history
type Version struct {
	ID        string
	Name      string
	Version   int
	Active    bool
	CreatedAt time.Time
}
