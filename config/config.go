package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultFile is read when CONFIG_FILE is not set. A missing default file is not an error.
const DefaultFile = "config.yaml"

// Artifact sources
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config is the process configuration.
// Precedence: defaults < YAML file < environment (.env included).
type Config struct {
	Port           string        `yaml:"port" validate:"required,numeric"`
	ArtifactSource string        `yaml:"artifact_source" validate:"required,oneof=file postgres"`
	ArtifactDir    string        `yaml:"artifact_dir" validate:"required_if=ArtifactSource file"`
	ArtifactName   string        `yaml:"artifact_name" validate:"required_if=ArtifactSource postgres,max=100"`
	DatabaseURL    string        `yaml:"database_url" validate:"required_if=ArtifactSource postgres"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	SlowRequest    time.Duration `yaml:"slow_request_threshold" validate:"gte=0"`
	MaxBatchSize   int           `yaml:"max_batch_size" validate:"gte=1,lte=100000"`
	BatchWorkers   int           `yaml:"batch_workers" validate:"gte=0,lte=1024"`
	LogLevel       string        `yaml:"log_level" validate:"oneof=TRACE DEBUG INFO WARN WARNING ERROR FATAL"`
	LogFile        string        `yaml:"log_file"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:           "5000",
		ArtifactSource: SourceFile,
		ArtifactDir:    "models",
		ArtifactName:   "eligibility",
		RequestTimeout: 30 * time.Second,
		SlowRequest:    time.Second,
		MaxBatchSize:   1000,
		BatchWorkers:   0, // GOMAXPROCS
		LogLevel:       "INFO",
	}
}

// Load reads .env, the YAML file named by CONFIG_FILE (or config.yaml if present)
// and the environment, then validates the result.
func Load() (*Config, error) {
	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit || path == "" {
		path, explicit = DefaultFile, false
	}
	return load(path, explicit, os.LookupEnv)
}

func load(path string, required bool, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if err := readFile(path, required, &cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	cfg.ArtifactSource = strings.ToLower(strings.TrimSpace(cfg.ArtifactSource))
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, required bool, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("PORT", &cfg.Port)
	str("ARTIFACT_SOURCE", &cfg.ArtifactSource)
	str("ARTIFACT_DIR", &cfg.ArtifactDir)
	str("ARTIFACT_NAME", &cfg.ArtifactName)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	if err := integer("MAX_BATCH_SIZE", &cfg.MaxBatchSize); err != nil {
		return err
	}
	if err := integer("BATCH_WORKERS", &cfg.BatchWorkers); err != nil {
		return err
	}
	if err := duration("REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return err
	}
	return duration("SLOW_REQUEST_THRESHOLD", &cfg.SlowRequest)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every failing field at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", fe.Field(), fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
