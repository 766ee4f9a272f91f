package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  rate_limit_window: 30s
storage:
  registry_path: "/tmp/eiga/registry.db"
  artifact_dir: "/tmp/eiga/artifacts"
recommend:
  default_top_k: 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RateLimitWindow != 30*time.Second {
		t.Errorf("rate_limit_window = %v", cfg.Server.RateLimitWindow)
	}
	if cfg.Recommend.DefaultTopK != 3 || cfg.Recommend.MaxTopK != 0 {
		t.Errorf("recommend config: %+v", cfg.Recommend)
	}
	if cfg.Model.URI() != "models:/movie-recommender/production" {
		t.Errorf("model uri = %s", cfg.Model.URI())
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  registry_path: "/tmp/registry.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  registry_path: "./data/registry.db"
  artifact_dir: "./data/artifacts"
dataset:
  path: "./data/processed/items.csv"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "registry.db"); cfg.Storage.RegistryPath != want {
		t.Errorf("registry_path = %s, want %s", cfg.Storage.RegistryPath, want)
	}
	if want := filepath.Join(dir, "data", "artifacts"); cfg.Storage.ArtifactDir != want {
		t.Errorf("artifact_dir = %s, want %s", cfg.Storage.ArtifactDir, want)
	}
	if want := filepath.Join(dir, "data", "processed", "items.csv"); cfg.Dataset.Path != want {
		t.Errorf("dataset path = %s, want %s", cfg.Dataset.Path, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad match policy", "recommend:\n  match_policy: fuzzy\n", "MatchPolicy"},
		{"max below default", "recommend:\n  default_top_k: 10\n  max_top_k: 5\n", "MaxTopK"},
		{"unknown backend", "storage:\n  backend: gcs\n", "Backend"},
		{"s3 without bucket", "storage:\n  backend: s3\n", "bucket"},
		{"bad port", "server:\n  port: 70000\n", "Port"},
		{"negative cache size", "recommend:\n  cache_size: -1\n", "CacheSize"},
		{"suggestion limit too high", "recommend:\n  suggestion_limit: 80\n", "SuggestionLimit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_zeroDisablesRecommendFeatures(t *testing.T) {
	path := writeConfig(t, `
storage:
  registry_path: "/tmp/registry.db"
recommend:
  max_top_k: 0
  cache_size: 0
  suggestion_limit: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Recommend.CacheSizeOrDefault(); got != 0 {
		t.Errorf("cache_size = %d, want 0", got)
	}
	if got := cfg.Recommend.SuggestionLimitOrDefault(); got != 0 {
		t.Errorf("suggestion_limit = %d, want 0", got)
	}
	if cfg.Recommend.MaxTopK != 0 {
		t.Errorf("max_top_k = %d, want 0", cfg.Recommend.MaxTopK)
	}
}

func TestLoad_recommendDefaultsWhenUnset(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  registry_path: \"/tmp/registry.db\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Recommend.CacheSizeOrDefault(); got != DefaultCacheSize {
		t.Errorf("cache_size = %d, want %d", got, DefaultCacheSize)
	}
	if got := cfg.Recommend.SuggestionLimitOrDefault(); got != DefaultSuggestionLimit {
		t.Errorf("suggestion_limit = %d, want %d", got, DefaultSuggestionLimit)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 2 || cfg.Server.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors origins: got %v", cfg.Server.CORSAllowedOrigins)
	}
	if cfg.Model.MaxFeatures != 5000 {
		t.Errorf("max_features: got %d", cfg.Model.MaxFeatures)
	}
	if cfg.Recommend.DefaultTitle != "Toy Story" || cfg.Recommend.DefaultTopK != 5 {
		t.Errorf("recommend defaults: %+v", cfg.Recommend)
	}
	if cfg.Watch.Debounce != 400*time.Millisecond {
		t.Errorf("watch debounce: got %v", cfg.Watch.Debounce)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestWatchConfig_EnabledOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if !w.EnabledOrDefault() {
			t.Error("EnabledOrDefault() = false, want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Enabled: &f}
		if w.EnabledOrDefault() {
			t.Error("EnabledOrDefault() = true, want false")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Model.Ref = "3"
	cfg.Storage.RegistryPath = filepath.Join(dir, "registry.db")
	cfg.Storage.ArtifactDir = filepath.Join(dir, "artifacts")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Model.Ref != "3" {
		t.Errorf("loaded ref: got %s", loaded.Model.Ref)
	}
	if loaded.Server.RequestTimeout != 60*time.Second {
		t.Errorf("loaded request timeout: got %v", loaded.Server.RequestTimeout)
	}
}
