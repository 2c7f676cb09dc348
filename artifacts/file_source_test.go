package artifacts

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liamcoop/eligibility/prediction"
)

const goldenDir = "../testdata/artifacts"

// copyBundle copies the golden bundle into a temp dir so a test can break it
func copyBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{ModelFile, ScalerFile, FeaturesFile, MetadataFile} {
		payload, err := os.ReadFile(filepath.Join(goldenDir, name))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), payload, 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestFileSource_LoadsGoldenBundle(t *testing.T) {
	bundle, err := NewFileSource(goldenDir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if bundle.Name != "artifacts" {
		t.Errorf("Expected name artifacts, got %s", bundle.Name)
	}
	if len(bundle.Documents.Features) != prediction.FeatureCount {
		t.Errorf("Expected %d features, got %d", prediction.FeatureCount, len(bundle.Documents.Features))
	}
	if bundle.Params.Max[3] != 1815 {
		t.Errorf("Expected cpt max 1815, got %v", bundle.Params.Max[3])
	}
	if bundle.Documents.Metadata == nil {
		t.Fatal("Expected metadata to be loaded")
	}
	if bundle.Documents.Metadata.Performance == nil || bundle.Documents.Metadata.Performance.Accuracy != 0.5809 {
		t.Errorf("Unexpected performance: %+v", bundle.Documents.Metadata.Performance)
	}

	validator, err := prediction.NewDefaultValidator()
	if err != nil {
		t.Fatalf("NewDefaultValidator() failed: %v", err)
	}
	svc, err := prediction.NewService(bundle.Classifier, bundle.Params, validator)
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	result, err := svc.Predict(prediction.PatientRecord{Age: 45, Gender: "Male", ICDFrequency: 15, CPTFrequency: 8, Month: 6})
	if err != nil {
		t.Fatalf("Predict() failed: %v", err)
	}
	if !result.Eligible {
		t.Error("Expected golden record to be eligible")
	}
	if math.Abs(result.EligibleProbability-0.62878212013307255) > 1e-12 {
		t.Errorf("Expected eligible probability 0.62878212013307255, got %.17f", result.EligibleProbability)
	}
}

func TestFileSource_MissingArtifact(t *testing.T) {
	for _, name := range []string{ModelFile, ScalerFile, FeaturesFile} {
		t.Run(name, func(t *testing.T) {
			dir := copyBundle(t)
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatalf("Failed to remove %s: %v", name, err)
			}

			_, err := NewFileSource(dir).Load(context.Background())
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Expected *LoadError, got %T", err)
			}
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if !strings.HasPrefix(err.Error(), "artifact not found") {
				t.Errorf("Unexpected message: %v", err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("Expected message to name %s, got %v", name, err)
			}
		})
	}
}

func TestFileSource_MetadataIsOptional(t *testing.T) {
	dir := copyBundle(t)
	if err := os.Remove(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatalf("Failed to remove metadata: %v", err)
	}

	bundle, err := NewFileSource(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if bundle.Documents.Metadata != nil {
		t.Errorf("Expected no metadata, got %+v", bundle.Documents.Metadata)
	}
}

func TestFileSource_MetadataYAMLFallback(t *testing.T) {
	dir := copyBundle(t)
	if err := os.Remove(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatalf("Failed to remove metadata: %v", err)
	}
	writeFile(t, dir, MetadataYAMLFile, `
model_type: LogisticRegression
algorithm: Logistic Regression
features:
  - name: age
    type: numeric
    range: [1, 120]
performance:
  accuracy: 0.5
  roc_auc: 0.6
`)

	bundle, err := NewFileSource(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	metadata := bundle.Documents.Metadata
	if metadata == nil {
		t.Fatal("Expected metadata from YAML")
	}
	if metadata.Algorithm != "Logistic Regression" {
		t.Errorf("Expected algorithm from YAML, got %q", metadata.Algorithm)
	}
	if len(metadata.Features) != 1 || metadata.Features[0].Range[1] != 120 {
		t.Errorf("Unexpected features: %+v", metadata.Features)
	}
	if metadata.Performance == nil || metadata.Performance.ROCAUC != 0.6 {
		t.Errorf("Unexpected performance: %+v", metadata.Performance)
	}
}

func TestFileSource_RejectsBrokenBundles(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		artifact string
		wantErr  string
	}{
		{"invalid json", ModelFile, `{"model_type":`, ArtifactModel, "invalid JSON"},
		{"wrong model type", ModelFile, `{"model_type":"RandomForest","coefficients":[1,1,1,1,1],"intercept":0}`, ArtifactModel, "unsupported model type"},
		{"short coefficients", ModelFile, `{"model_type":"logistic_regression","coefficients":[1,1],"intercept":0}`, ArtifactModel, "2 coefficients"},
		{"degenerate range", ScalerFile, `{"data_min":[1,0,1,1,1],"data_max":[117.4,1,683,1815,1]}`, ArtifactScaler, "degenerate scale for feature 4"},
		{"short scaler", ScalerFile, `{"data_min":[1,0],"data_max":[117.4,1]}`, ArtifactScaler, "bounds"},
		{"extra feature", FeaturesFile, `["a","b","c","d","e","f"]`, ArtifactFeatures, "expected 5 features"},
		{"duplicate feature", FeaturesFile, `["a","b","c","d","a"]`, ArtifactFeatures, "duplicate"},
		{"bad feature name", FeaturesFile, `["a","b","c","d","1month"]`, ArtifactFeatures, "invalid feature name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copyBundle(t)
			writeFile(t, dir, tt.file, tt.content)

			_, err := NewFileSource(dir).Load(context.Background())
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Expected *LoadError, got %T: %v", err, err)
			}
			if loadErr.Artifact != tt.artifact {
				t.Errorf("Expected artifact %s, got %s", tt.artifact, loadErr.Artifact)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestFileSource_DegenerateRangeUnwraps(t *testing.T) {
	dir := copyBundle(t)
	writeFile(t, dir, ScalerFile, `{"data_min":[1,0,1,1,1],"data_max":[117.4,0,683,1815,6]}`)

	_, err := NewFileSource(dir).Load(context.Background())
	var degenerate *prediction.DegenerateScaleError
	if !errors.As(err, &degenerate) {
		t.Fatalf("Expected *DegenerateScaleError in chain, got %v", err)
	}
	if degenerate.Index != 1 {
		t.Errorf("Expected index 1, got %d", degenerate.Index)
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewFileSource(goldenDir).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestFileSource_Describe(t *testing.T) {
	var src Source = NewFileSource("/srv/model")
	if src.Describe() != "dir /srv/model" {
		t.Errorf("Unexpected description: %s", src.Describe())
	}
}
