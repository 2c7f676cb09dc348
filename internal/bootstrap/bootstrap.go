// Package bootstrap turns a loaded Config into a ready prediction service.
// It is shared by the HTTP server and the operator CLI so both score with
// exactly the same artifacts and constraints.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/liamcoop/eligibility/artifacts"
	"github.com/liamcoop/eligibility/config"
	"github.com/liamcoop/eligibility/internal/logger"
	"github.com/liamcoop/eligibility/prediction"
	"github.com/liamcoop/eligibility/validation"
)

// OpenDB connects to Postgres and checks the connection
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// LoadBundle reads the artifact bundle from the configured source.
// The database connection, if any, is closed before returning: artifacts are
// only read at startup.
func LoadBundle(ctx context.Context, cfg *config.Config) (*artifacts.Bundle, error) {
	var source artifacts.Source
	switch cfg.ArtifactSource {
	case config.SourcePostgres:
		db, err := OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		source = artifacts.NewPostgresSource(db, cfg.ArtifactName)
	default:
		source = artifacts.NewFileSource(cfg.ArtifactDir)
	}

	logger.Info("Loading artifacts", "source", source.Describe())
	start := time.Now()
	bundle, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Artifacts loaded",
		"bundle", bundle.Describe(),
		"features", bundle.Documents.Features,
		"duration", time.Since(start).String())
	return bundle, nil
}

// NewService builds the prediction service for a bundle with the default constraints
func NewService(cfg *config.Config, bundle *artifacts.Bundle) (*prediction.Service, *validation.Engine, error) {
	validator, err := prediction.NewDefaultValidator()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile constraints: %w", err)
	}

	svc, err := prediction.NewService(bundle.Classifier, bundle.Params, validator,
		prediction.WithWorkers(cfg.BatchWorkers))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prediction service: %w", err)
	}
	return svc, validator, nil
}
