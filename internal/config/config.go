// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence. A
// development-only watcher hot reloads the file on change.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "antbox-backend/pkg/errors"
)

// Environment names a deployment mode.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Backend names for the pluggable persistence layers.
const (
	BackendMemory = "memory"
	BackendDynamo = "dynamo"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config is the full service configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development production"`
	Tenant      string      `yaml:"tenant" validate:"required"`

	HTTP     HTTPConfig     `yaml:"http"`
	Nodes    NodesConfig    `yaml:"nodes"`
	Binaries BinariesConfig `yaml:"binaries"`
	Semantic SemanticConfig `yaml:"semantic"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// NodesConfig selects the node repository backend.
type NodesConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory dynamo"`
	Table   string `yaml:"table"`
	Region  string `yaml:"region"`
}

// BinariesConfig selects the binary store backend.
type BinariesConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory s3"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// SemanticConfig configures the optional semantic plane. Backend "none"
// disables it; find queries then degrade to fulltext matching.
type SemanticConfig struct {
	Backend        string `yaml:"backend" validate:"oneof=none memory sqlite"`
	DatabasePath   string `yaml:"databasePath"`
	APIKey         string `yaml:"apiKey"`
	EmbeddingModel string `yaml:"embeddingModel"`
	OCRModel       string `yaml:"ocrModel"`
}

// LoggingConfig tunes the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the baseline configuration before file and environment
// overlays.
func Default() *Config {
	return &Config{
		Environment: Development,
		Tenant:      "default",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Nodes:    NodesConfig{Backend: BackendMemory},
		Binaries: BinariesConfig{Backend: BackendMemory},
		Semantic: SemanticConfig{Backend: BackendNone},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// it exists), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperrors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return apperrors.Wrap(err, "parsing config file")
	}
	return nil
}

// applyEnv overlays ANTBOX_* environment variables. Only the settings an
// operator realistically overrides per deployment are exposed.
func applyEnv(cfg *Config) {
	setString := func(key string, target *string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}

	if v := os.Getenv("ANTBOX_ENV"); v != "" {
		cfg.Environment = Environment(v)
	}
	setString("ANTBOX_TENANT", &cfg.Tenant)
	setString("ANTBOX_HTTP_ADDR", &cfg.HTTP.Addr)

	setString("ANTBOX_NODES_BACKEND", &cfg.Nodes.Backend)
	setString("ANTBOX_NODES_TABLE", &cfg.Nodes.Table)
	setString("ANTBOX_NODES_REGION", &cfg.Nodes.Region)

	setString("ANTBOX_BINARIES_BACKEND", &cfg.Binaries.Backend)
	setString("ANTBOX_S3_ENDPOINT", &cfg.Binaries.Endpoint)
	setString("ANTBOX_S3_REGION", &cfg.Binaries.Region)
	setString("ANTBOX_S3_BUCKET", &cfg.Binaries.Bucket)
	setString("ANTBOX_S3_ACCESS_KEY", &cfg.Binaries.AccessKey)
	setString("ANTBOX_S3_SECRET_KEY", &cfg.Binaries.SecretKey)

	setString("ANTBOX_SEMANTIC_BACKEND", &cfg.Semantic.Backend)
	setString("ANTBOX_SEMANTIC_DB", &cfg.Semantic.DatabasePath)
	setString("ANTBOX_GENAI_API_KEY", &cfg.Semantic.APIKey)
	setString("ANTBOX_EMBEDDING_MODEL", &cfg.Semantic.EmbeddingModel)
	setString("ANTBOX_OCR_MODEL", &cfg.Semantic.OCRModel)

	setString("ANTBOX_LOG_LEVEL", &cfg.Logging.Level)

	if v := os.Getenv("ANTBOX_HTTP_READ_TIMEOUT_SECONDS"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.ReadTimeout = time.Duration(seconds) * time.Second
		}
	}
}
