package artifacts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresSource loads the active bundle for a name from the model_artifacts registry
type PostgresSource struct {
	db   *sql.DB
	name string
}

// NewPostgresSource creates a registry-backed Source for a bundle name
func NewPostgresSource(db *sql.DB, name string) *PostgresSource {
	return &PostgresSource{
		db:   db,
		name: name,
	}
}

// Describe returns the registry key being read
func (s *PostgresSource) Describe() string {
	return "registry " + s.name
}

// Load reads the active row for the bundle name
func (s *PostgresSource) Load(ctx context.Context) (*Bundle, error) {
	location := s.Describe()

	var (
		id, name                string
		version                 int
		model, scaler, features []byte
		metadata                []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, version, model, scaler, features, metadata
		FROM model_artifacts
		WHERE name = $1 AND active = true
	`, s.name).Scan(&id, &name, &version, &model, &scaler, &features, &metadata)

	if err == sql.ErrNoRows {
		return nil, &LoadError{Artifact: ArtifactBundle, Location: location, Err: fmt.Errorf("%w: no active version", ErrNotFound)}
	}
	if err != nil {
		return nil, &LoadError{Artifact: ArtifactBundle, Location: location, Err: fmt.Errorf("failed to query registry: %w", err)}
	}

	var docs Documents
	if err := json.Unmarshal(model, &docs.Model); err != nil {
		return nil, &LoadError{Artifact: ArtifactModel, Location: location, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := json.Unmarshal(scaler, &docs.Scaler); err != nil {
		return nil, &LoadError{Artifact: ArtifactScaler, Location: location, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := json.Unmarshal(features, &docs.Features); err != nil {
		return nil, &LoadError{Artifact: ArtifactFeatures, Location: location, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if len(metadata) > 0 {
		docs.Metadata = &Metadata{}
		if err := json.Unmarshal(metadata, docs.Metadata); err != nil {
			return nil, &LoadError{Artifact: ArtifactMetadata, Location: location, Err: fmt.Errorf("invalid JSON: %w", err)}
		}
	}

	bundle, err := NewBundle(docs, location)
	if err != nil {
		return nil, err
	}
	bundle.ID = id
	bundle.Name = name
	bundle.Version = version
	return bundle, nil
}

// Publish stores docs as the next version of name and makes it the active one.
// The documents are checked with NewBundle first so a broken bundle never
// becomes active.
func Publish(ctx context.Context, db *sql.DB, name string, docs Documents) (*Version, error) {
	if err := validateIdentifier(name); err != nil {
		return nil, fmt.Errorf("invalid bundle name: %w", err)
	}
	if _, err := NewBundle(docs, "registry "+name); err != nil {
		return nil, err
	}

	model, err := json.Marshal(docs.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	scaler, err := json.Marshal(docs.Scaler)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scaler: %w", err)
	}
	features, err := json.Marshal(docs.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	var metadata []byte
	if docs.Metadata != nil {
		if metadata, err = json.Marshal(docs.Metadata); err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serialise concurrent publishers of the same name
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
		return nil, fmt.Errorf("failed to lock bundle name: %w", err)
	}

	var next int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM model_artifacts WHERE name = $1
	`, name).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts SET active = false WHERE name = $1 AND active = true
	`, name); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	v := &Version{
		ID:        uuid.New().String(),
		Name:      name,
		Version:   next,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO model_artifacts (id, name, version, model, scaler, features, metadata, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, v.ID, v.Name, v.Version, string(model), string(scaler), string(features), nullableJSON(metadata), v.Active, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert bundle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bundle: %w", err)
	}
	return v, nil
}

// Activate makes an existing version the active one for its name
func Activate(ctx context.Context, db *sql.DB, name string, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts SET active = false WHERE name = $1 AND active = true
	`, name); err != nil {
		return fmt.Errorf("failed to deactivate previous version: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE model_artifacts SET active = true WHERE name = $1 AND version = $2
	`, name, version)
	if err != nil {
		return fmt.Errorf("failed to activate version: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
	}

	return tx.Commit()
}

// ListVersions returns the history of a bundle name, newest first
func ListVersions(ctx context.Context, db *sql.DB, name string) ([]Version, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, version, active, created_at
		FROM model_artifacts
		WHERE name = $1
		ORDER BY version DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.Name, &v.Version, &v.Active, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func nullableJSON(payload []byte) any {
	if payload == nil {
		return nil
	}
	return string(payload)
}
