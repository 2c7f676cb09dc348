//go:build integration
// +build integration

package artifacts_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/eligibility/artifacts"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container with the registry schema applied
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "eligibility_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=eligibility_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_model_artifacts.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func goldenDocuments(t *testing.T) artifacts.Documents {
	t.Helper()
	docs, err := artifacts.ReadDocuments(filepath.Join("..", "testdata", "artifacts"))
	if err != nil {
		t.Fatalf("ReadDocuments() failed: %v", err)
	}
	return docs
}

func TestPostgresSource_PublishAndLoad(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	v1, err := artifacts.Publish(ctx, db, "eligibility", goldenDocuments(t))
	if err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	if v1.Version != 1 || !v1.Active {
		t.Errorf("Expected active version 1, got %+v", v1)
	}

	docs := goldenDocuments(t)
	docs.Model.Intercept = 0.5
	v2, err := artifacts.Publish(ctx, db, "eligibility", docs)
	if err != nil {
		t.Fatalf("Second Publish() failed: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("Expected version 2, got %d", v2.Version)
	}

	bundle, err := artifacts.NewPostgresSource(db, "eligibility").Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if bundle.ID != v2.ID || bundle.Version != 2 {
		t.Errorf("Expected active bundle %s v2, got %s v%d", v2.ID, bundle.ID, bundle.Version)
	}
	if bundle.Classifier.Intercept != 0.5 {
		t.Errorf("Expected intercept from v2, got %v", bundle.Classifier.Intercept)
	}
	if bundle.Documents.Metadata == nil || bundle.Documents.Metadata.Performance == nil {
		t.Error("Expected metadata to round-trip through the registry")
	}

	versions, err := artifacts.ListVersions(ctx, db, "eligibility")
	if err != nil {
		t.Fatalf("ListVersions() failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions, got %d", len(versions))
	}
	if versions[0].Version != 2 || !versions[0].Active || versions[1].Active {
		t.Errorf("Expected only v2 active, got %+v", versions)
	}
}

func TestPostgresSource_Activate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := artifacts.Publish(ctx, db, "eligibility", goldenDocuments(t)); err != nil {
			t.Fatalf("Publish() failed: %v", err)
		}
	}

	if err := artifacts.Activate(ctx, db, "eligibility", 1); err != nil {
		t.Fatalf("Activate() failed: %v", err)
	}
	bundle, err := artifacts.NewPostgresSource(db, "eligibility").Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if bundle.Version != 1 {
		t.Errorf("Expected version 1 active, got %d", bundle.Version)
	}

	if err := artifacts.Activate(ctx, db, "eligibility", 9); !errors.Is(err, artifacts.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown version, got %v", err)
	}
	// The failed activation must not leave the name without an active version
	if _, err := artifacts.NewPostgresSource(db, "eligibility").Load(ctx); err != nil {
		t.Errorf("Load() after failed Activate() failed: %v", err)
	}
}

func TestPostgresSource_NoActiveVersion(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := artifacts.NewPostgresSource(db, "missing").Load(context.Background())
	if !errors.Is(err, artifacts.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	var loadErr *artifacts.LoadError
	if !errors.As(err, &loadErr) || loadErr.Artifact != artifacts.ArtifactBundle {
		t.Errorf("Expected bundle LoadError, got %v", err)
	}
}

func TestPostgresSource_PublishRejectsBrokenBundle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	docs := goldenDocuments(t)
	docs.Scaler.DataMax[2] = docs.Scaler.DataMin[2]
	if _, err := artifacts.Publish(ctx, db, "eligibility", docs); err == nil {
		t.Fatal("Expected Publish() to reject a degenerate scaler")
	}

	versions, err := artifacts.ListVersions(ctx, db, "eligibility")
	if err != nil {
		t.Fatalf("ListVersions() failed: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("Expected nothing stored, got %d versions", len(versions))
	}
}

func TestPostgresSource_ConcurrentPublish(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	docs := goldenDocuments(t)
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := artifacts.Publish(ctx, db, "eligibility", docs); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent Publish() failed: %v", err)
	}

	versions, err := artifacts.ListVersions(ctx, db, "eligibility")
	if err != nil {
		t.Fatalf("ListVersions() failed: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("Expected 5 versions, got %d", len(versions))
	}
	active := 0
	for i, v := range versions {
		if v.Version != 5-i {
			t.Errorf("Expected version %d at %d, got %d", 5-i, i, v.Version)
		}
		if v.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("Expected exactly one active version, got %d", active)
	}
}
