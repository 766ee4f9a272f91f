package config

import "time"

// DefaultModelName is the registered model name used when none is configured.
const DefaultModelName = "movie-recommender"

// Used when recommend.cache_size or recommend.suggestion_limit is left unset.
const (
	DefaultCacheSize       = 1000
	DefaultSuggestionLimit = 5
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSAllowedOrigins == nil {
		cfg.Server.CORSAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if cfg.Server.RateLimitWindow == 0 {
		cfg.Server.RateLimitWindow = time.Minute
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.RegistryPath == "" {
		cfg.Storage.RegistryPath = "/usr/local/var/eiga/data/registry.db"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.ArtifactDir == "" {
		cfg.Storage.ArtifactDir = "/usr/local/var/eiga/data/artifacts"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelName
	}
	if cfg.Model.Ref == "" {
		cfg.Model.Ref = "production"
	}
	if cfg.Model.Alias == "" {
		cfg.Model.Alias = "production"
	}
	if cfg.Model.Experiment == "" {
		cfg.Model.Experiment = "movielens-content-based"
	}
	if cfg.Model.MaxFeatures == 0 {
		cfg.Model.MaxFeatures = 5000
	}
	if cfg.Recommend.DefaultTitle == "" {
		cfg.Recommend.DefaultTitle = "Toy Story"
	}
	if cfg.Recommend.DefaultTopK == 0 {
		cfg.Recommend.DefaultTopK = 5
	}
	if cfg.Recommend.MatchPolicy == "" {
		cfg.Recommend.MatchPolicy = "first"
	}
	if cfg.Dataset.Format == "" {
		cfg.Dataset.Format = "auto"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
