// Package config provides configuration loading and structs for the eiga server and CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Model     ModelConfig     `yaml:"model"`
	Recommend RecommendConfig `yaml:"recommend"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host" validate:"required"`
	Port               int           `yaml:"port" validate:"min=1,max=65535"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	RateLimitRequests  int           `yaml:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow    time.Duration `yaml:"rate_limit_window"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the registry database path and the artifact store settings.
type StorageConfig struct {
	RegistryPath string   `yaml:"registry_path" validate:"required"`
	Backend      string   `yaml:"backend" validate:"oneof=file s3"`
	ArtifactDir  string   `yaml:"artifact_dir"`
	S3           S3Config `yaml:"s3"`
}

// S3Config holds settings for the S3 artifact backend.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// ModelConfig names the registered model and the version or alias served.
type ModelConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Ref         string `yaml:"ref" validate:"required"`
	Alias       string `yaml:"alias"`
	Experiment  string `yaml:"experiment" validate:"required"`
	MaxFeatures int    `yaml:"max_features" validate:"min=1"`
}

// URI returns the models:/ reference for the served model.
func (m *ModelConfig) URI() string {
	return "models:/" + m.Name + "/" + m.Ref
}

// RecommendConfig holds query defaults.
// MaxTopK 0 means no limit. CacheSize and SuggestionLimit use 0 to switch the feature off
// and nil for the default.
type RecommendConfig struct {
	DefaultTitle    string `yaml:"default_title"`
	DefaultTopK     int    `yaml:"default_top_k" validate:"min=1"`
	MaxTopK         int    `yaml:"max_top_k" validate:"omitempty,gtefield=DefaultTopK"`
	MatchPolicy     string `yaml:"match_policy" validate:"oneof=first exact_first"`
	CacheSize       *int   `yaml:"cache_size,omitempty" validate:"omitempty,min=0"`
	SuggestionLimit *int   `yaml:"suggestion_limit,omitempty" validate:"omitempty,min=0,max=50"`
}

// CacheSizeOrDefault returns the configured cache capacity, DefaultCacheSize when unset.
func (r *RecommendConfig) CacheSizeOrDefault() int {
	if r.CacheSize != nil {
		return *r.CacheSize
	}
	return DefaultCacheSize
}

// SuggestionLimitOrDefault returns the configured suggestion limit, DefaultSuggestionLimit when unset.
func (r *RecommendConfig) SuggestionLimitOrDefault() int {
	if r.SuggestionLimit != nil {
		return *r.SuggestionLimit
	}
	return DefaultSuggestionLimit
}

// DatasetConfig points at the processed training table.
type DatasetConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto csv tsv movielens xlsx"`
}

// WatchConfig controls hot reload of the served model when the registry changes.
type WatchConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// EnabledOrDefault returns whether to watch the registry; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.RegistryPath = expandPath(cfg.Storage.RegistryPath, configDir)
	cfg.Storage.ArtifactDir = expandPath(cfg.Storage.ArtifactDir, configDir)
	if cfg.Dataset.Path != "" {
		cfg.Dataset.Path = expandPath(cfg.Dataset.Path, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path. Used for persisting the served model ref.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Storage.Backend == "s3" && cfg.Storage.S3.Bucket == "" {
		return fmt.Errorf("invalid config: storage.s3.bucket is required for the s3 backend")
	}
	if cfg.Storage.Backend == "file" && cfg.Storage.ArtifactDir == "" {
		return fmt.Errorf("invalid config: storage.artifact_dir is required for the file backend")
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
