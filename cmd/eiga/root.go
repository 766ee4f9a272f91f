package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/model"
	"github.com/hyperjump/eiga/internal/recommend"
	"github.com/hyperjump/eiga/internal/registry"
	"github.com/hyperjump/eiga/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "/usr/local/etc/eiga/config.yaml"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	debug      bool
}

// NewRootCmd builds the eiga command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "eiga",
		Short:         "Content-based movie recommendations from title similarity",
		Long:          "eiga fits a TF-IDF title similarity model, tracks trained versions in a local registry, and serves recommendations over HTTP.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newPrepareCmd(opts),
		newTrainCmd(opts),
		newRecommendCmd(opts),
		newModelsCmd(opts),
		newRunsCmd(opts),
		newStatusCmd(opts),
	)
	return rootCmd
}

// loadConfig loads config from the --config path. When the path is the default, it first
// looks for config.yaml in the current directory; when neither exists the built-in
// defaults are used. It returns the config and the path it came from ("" for defaults).
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	if o.configPath == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(defaultConfigPath); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, o.configPath, nil
}

// setup loads config and a console logger for one-shot commands.
func (o *rootOptions) setup() (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := o.loadConfig()
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || o.debug)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, path, logger, nil
}

// Components holds the registry and artifact store opened from config.
type Components struct {
	Registry *registry.SQLiteRegistry
	Store    artifact.Store
}

// Close releases the registry.
func (c *Components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	reg, err := registry.NewSQLiteRegistry(cfg.Storage.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	store, err := artifact.NewStore(ctx, &cfg.Storage, logger)
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	logger.Debug("components initialized",
		zap.String("registry", cfg.Storage.RegistryPath),
		zap.String("artifact_backend", store.Type()),
	)
	return &Components{Registry: reg, Store: store}, nil
}

// newManager wires a model manager for the configured model reference.
func (c *Components) newManager(cfg *config.Config, holder *model.Holder, logger *zap.Logger, opts ...model.ManagerOption) *model.Manager {
	opts = append([]model.ManagerOption{model.WithLogger(logger)}, opts...)
	return model.NewManager(c.Registry, c.Store, holder, cfg.Model.Name, cfg.Model.Ref, opts...)
}

func newService(cfg *config.Config, holder *model.Holder, logger *zap.Logger) (*recommend.Service, error) {
	policy, err := recommend.ParseMatchPolicy(cfg.Recommend.MatchPolicy)
	if err != nil {
		return nil, err
	}
	return recommend.NewService(holder,
		recommend.WithLogger(logger),
		recommend.WithCache(cfg.Recommend.CacheSizeOrDefault()),
		recommend.WithMatchPolicy(policy),
		recommend.WithDefaults(cfg.Recommend.DefaultTitle, cfg.Recommend.DefaultTopK, cfg.Recommend.MaxTopK),
		recommend.WithSuggestionLimit(cfg.Recommend.SuggestionLimitOrDefault()),
	), nil
}
