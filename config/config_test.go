package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "absent.yaml"), false, env(nil))
	if err != nil {
		t.Fatalf("load() failed: %v", err)
	}

	want := Default()
	if cfg.Port != want.Port || cfg.ArtifactSource != SourceFile || cfg.ArtifactDir != "models" {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.Addr() != ":5000" {
		t.Errorf("Expected :5000, got %s", cfg.Addr())
	}
}

func TestLoad_RequiredFileMissing(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"), true, env(nil))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file, got nil")
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
artifact_dir: /srv/artifacts
request_timeout: 5s
max_batch_size: 50
log_level: debug
`)

	cfg, err := load(path, true, env(map[string]string{
		"PORT":           "9090",
		"MAX_BATCH_SIZE": "25",
	}))
	if err != nil {
		t.Fatalf("load() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected env port 9090, got %s", cfg.Port)
	}
	if cfg.ArtifactDir != "/srv/artifacts" {
		t.Errorf("Expected file artifact_dir, got %s", cfg.ArtifactDir)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("Expected file timeout 5s, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxBatchSize != 25 {
		t.Errorf("Expected env max batch 25, got %d", cfg.MaxBatchSize)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("Expected upper-cased log level, got %s", cfg.LogLevel)
	}
}

func TestLoad_PostgresRequiresDatabase(t *testing.T) {
	_, err := load("", false, env(map[string]string{"ARTIFACT_SOURCE": "postgres"}))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "DatabaseURL") {
		t.Errorf("Expected error to name DatabaseURL, got: %v", err)
	}

	cfg, err := load("", false, env(map[string]string{
		"ARTIFACT_SOURCE": "Postgres",
		"DATABASE_URL":    "postgres://localhost/eligibility",
	}))
	if err != nil {
		t.Fatalf("load() failed: %v", err)
	}
	if cfg.ArtifactSource != SourcePostgres {
		t.Errorf("Expected postgres source, got %s", cfg.ArtifactSource)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"unknown source", map[string]string{"ARTIFACT_SOURCE": "s3"}, "ArtifactSource"},
		{"non-numeric port", map[string]string{"PORT": "http"}, "Port"},
		{"zero batch size", map[string]string{"MAX_BATCH_SIZE": "0"}, "MaxBatchSize"},
		{"unparsable batch size", map[string]string{"MAX_BATCH_SIZE": "many"}, "MAX_BATCH_SIZE"},
		{"unparsable timeout", map[string]string{"REQUEST_TIMEOUT": "soon"}, "REQUEST_TIMEOUT"},
		{"zero timeout", map[string]string{"REQUEST_TIMEOUT": "0s"}, "RequestTimeout"},
		{"unknown log level", map[string]string{"LOG_LEVEL": "chatty"}, "LogLevel"},
		{"empty artifact dir", map[string]string{"ARTIFACT_DIR": ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", false, env(tt.vars))
			if tt.wantErr == "" {
				// Empty env values fall back to the previous layer
				if err != nil {
					t.Errorf("Expected empty value to be ignored, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ARTIFACT_DIR=from-dotenv\nBATCH_WORKERS=3\n"), 0o644); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BATCH_WORKERS", "7")
	// godotenv sets ARTIFACT_DIR in the process environment; restore it afterwards
	t.Setenv("ARTIFACT_DIR", "")
	os.Unsetenv("ARTIFACT_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ArtifactDir != "from-dotenv" {
		t.Errorf("Expected ARTIFACT_DIR from .env, got %s", cfg.ArtifactDir)
	}
	if cfg.BatchWorkers != 7 {
		t.Errorf("Expected process env to win over .env, got %d", cfg.BatchWorkers)
	}
}
