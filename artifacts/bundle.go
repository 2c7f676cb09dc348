package artifacts

import (
	"fmt"
	"strings"

	"github.com/liamcoop/eligibility/prediction"
)

// Bundle is the immutable set of fitted artifacts the service runs on.
// It is produced once by a Source and shared read-only afterwards.
type Bundle struct {
	ID       string // registry UUID, empty for file bundles
	Name     string
	Version  int
	Location string

	Documents  Documents
	Classifier *prediction.LogisticRegression
	Params     prediction.NormalizationParams
}

// NewBundle checks the cross-artifact invariants and builds the runtime objects.
// The feature list, scaler and coefficients must all describe the same
// FeatureCount dimensions; their order is trusted, not re-derived.
func NewBundle(docs Documents, location string) (*Bundle, error) {
	fail := func(artifact string, err error) (*Bundle, error) {
		return nil, &LoadError{Artifact: artifact, Location: location, Err: err}
	}

	if err := validateFeatureNames(docs.Features); err != nil {
		return fail(ArtifactFeatures, err)
	}
	if len(docs.Features) != prediction.FeatureCount {
		return fail(ArtifactFeatures, fmt.Errorf("expected %d features, got %d", prediction.FeatureCount, len(docs.Features)))
	}

	if !isSupportedModelType(docs.Model.ModelType) {
		return fail(ArtifactModel, fmt.Errorf("unsupported model type %q", docs.Model.ModelType))
	}
	if len(docs.Model.Coefficients) != len(docs.Features) {
		return fail(ArtifactModel, fmt.Errorf("model has %d coefficients for %d features", len(docs.Model.Coefficients), len(docs.Features)))
	}
	classifier, err := prediction.NewLogisticRegression(docs.Model.Coefficients, docs.Model.Intercept)
	if err != nil {
		return fail(ArtifactModel, err)
	}

	if len(docs.Scaler.DataMin) != len(docs.Features) || len(docs.Scaler.DataMax) != len(docs.Features) {
		return fail(ArtifactScaler, fmt.Errorf("scaler has %d/%d bounds for %d features",
			len(docs.Scaler.DataMin), len(docs.Scaler.DataMax), len(docs.Features)))
	}
	params := prediction.NormalizationParams{
		Min: append([]float64(nil), docs.Scaler.DataMin...),
		Max: append([]float64(nil), docs.Scaler.DataMax...),
	}
	if err := params.Validate(); err != nil {
		return fail(ArtifactScaler, err)
	}

	return &Bundle{
		Location:   location,
		Documents:  docs,
		Classifier: classifier,
		Params:     params,
	}, nil
}

func isSupportedModelType(modelType string) bool {
	switch strings.ToLower(strings.ReplaceAll(modelType, "_", "")) {
	case "logisticregression":
		return true
	default:
		return false
	}
}

// Describe returns a one-line summary for logs
func (b *Bundle) Describe() string {
	if b.ID != "" {
		return fmt.Sprintf("%s v%d (%s) from %s", b.Name, b.Version, b.ID, b.Location)
	}
	return fmt.Sprintf("%s from %s", b.Documents.Model.ModelType, b.Location)
}
