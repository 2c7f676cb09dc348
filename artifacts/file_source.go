package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// File names inside an artifact directory
const (
	ModelFile        = "model.json"
	ScalerFile       = "scaler.json"
	FeaturesFile     = "features.json"
	MetadataFile     = "model_info.json"
	MetadataYAMLFile = "model_info.yaml"
)

// FileSource reads a bundle from a directory written by the training export
type FileSource struct {
	Dir string
}

// NewFileSource creates a FileSource for dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Describe returns the directory being read
func (s *FileSource) Describe() string {
	return "dir " + s.Dir
}

// Load reads model, scaler and feature list (all required) and the optional metadata
func (s *FileSource) Load(ctx context.Context) (*Bundle, error) {
	docs, err := ReadDocuments(s.Dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundle, err := NewBundle(docs, s.Dir)
	if err != nil {
		return nil, err
	}
	bundle.Name = filepath.Base(s.Dir)
	return bundle, nil
}

// ReadDocuments decodes the artifact files in dir without cross-checking them
func ReadDocuments(dir string) (Documents, error) {
	var docs Documents

	if err := readJSON(filepath.Join(dir, ModelFile), ArtifactModel, &docs.Model); err != nil {
		return Documents{}, err
	}
	if err := readJSON(filepath.Join(dir, ScalerFile), ArtifactScaler, &docs.Scaler); err != nil {
		return Documents{}, err
	}
	if err := readJSON(filepath.Join(dir, FeaturesFile), ArtifactFeatures, &docs.Features); err != nil {
		return Documents{}, err
	}

	metadata, err := readMetadata(dir)
	if err != nil {
		return Documents{}, err
	}
	docs.Metadata = metadata

	return docs, nil
}

func readJSON(path, artifact string, dst any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Artifact: artifact, Location: path, Err: notFound(err)}
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return &LoadError{Artifact: artifact, Location: path, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

// readMetadata prefers model_info.json and falls back to model_info.yaml.
// Neither existing is not an error.
func readMetadata(dir string) (*Metadata, error) {
	jsonPath := filepath.Join(dir, MetadataFile)
	if payload, err := os.ReadFile(jsonPath); err == nil {
		var metadata Metadata
		if err := json.Unmarshal(payload, &metadata); err != nil {
			return nil, &LoadError{Artifact: ArtifactMetadata, Location: jsonPath, Err: fmt.Errorf("invalid JSON: %w", err)}
		}
		return &metadata, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Artifact: ArtifactMetadata, Location: jsonPath, Err: err}
	}

	yamlPath := filepath.Join(dir, MetadataYAMLFile)
	payload, err := os.ReadFile(yamlPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactMetadata, Location: yamlPath, Err: err}
	}
	var metadata Metadata
	if err := yaml.Unmarshal(payload, &metadata); err != nil {
		return nil, &LoadError{Artifact: ArtifactMetadata, Location: yamlPath, Err: fmt.Errorf("invalid YAML: %w", err)}
	}
	return &metadata, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
