// Package trainer fits a bundle from a catalog, stores it as an artifact, and registers
// it as a new model version under a tracked run.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/dataset"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/registry"
	"go.uber.org/zap"
)

// ArtifactExt is appended to artifact keys.
const ArtifactExt = ".eiga"

// Options describes one training run.
type Options struct {
	ModelName   string
	Experiment  string
	MaxFeatures int
	// Alias, when set, is pointed at the new version.
	Alias string
	// Source is recorded in the bundle metadata, typically the dataset path.
	Source string
}

// Result is what a successful run produced.
type Result struct {
	Run     *models.Run
	Version *models.ModelVersion
	Bundle  *bundle.Bundle
	Dropped int
}

// Trainer runs the fit, store, register pipeline.
type Trainer struct {
	registry registry.Registry
	store    artifact.Store
	logger   *zap.Logger
	now      func() time.Time
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = l }
}

// New creates a trainer writing to reg and store.
func New(reg registry.Registry, store artifact.Store, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		registry: reg,
		store:    store,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits items and registers the result. On any failure after the run has started
// the run is marked FAILED and the error returned.
func (t *Trainer) Train(ctx context.Context, items []models.Item, opts Options) (*Result, error) {
	if opts.ModelName == "" {
		return nil, errors.New("model name is required")
	}
	if opts.Alias != "" {
		if err := registry.ValidAlias(opts.Alias); err != nil {
			return nil, err
		}
	}
	run, err := t.registry.StartRun(ctx, opts.Experiment, map[string]string{
		"model_type":   "content_based",
		"model_name":   opts.ModelName,
		"max_features": strconv.Itoa(opts.MaxFeatures),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	t.logger.Info("training started",
		zap.String("run_id", run.ID),
		zap.String("experiment", opts.Experiment),
		zap.Int("items", len(items)),
	)

	res, runMetrics, err := t.train(ctx, run, items, opts)
	if err != nil {
		// Recording the failure must not be skipped because ctx was canceled.
		if ferr := t.registry.FinishRun(context.WithoutCancel(ctx), run.ID, models.RunFailed, runMetrics, err); ferr != nil {
			t.logger.Warn("failed to mark run failed", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		t.logger.Error("training failed", zap.String("run_id", run.ID), zap.Error(err))
		return nil, err
	}
	if err := t.registry.FinishRun(ctx, run.ID, models.RunFinished, runMetrics, nil); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}
	if res.Run, err = t.registry.GetRun(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("failed to reload run: %w", err)
	}
	t.logger.Info("training finished",
		zap.String("run_id", run.ID),
		zap.String("model", registry.FormatURI(res.Version.Name, strconv.Itoa(res.Version.Version))),
		zap.Int("items", res.Bundle.Len()),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

func (t *Trainer) train(ctx context.Context, run *models.Run, items []models.Item, opts Options) (*Result, map[string]float64, error) {
	runMetrics := map[string]float64{}
	clean, dropped := dataset.Clean(items)
	runMetrics["dropped_items"] = float64(dropped)

	start := t.now()
	b, err := bundle.Fit(clean, bundle.Options{
		MaxFeatures: opts.MaxFeatures,
		Source:      opts.Source,
		Logger:      t.logger,
	})
	if err != nil {
		return nil, runMetrics, fmt.Errorf("failed to fit bundle: %w", err)
	}
	runMetrics["fit_seconds"] = t.now().Sub(start).Seconds()
	runMetrics["num_items"] = float64(b.Len())
	runMetrics["vocabulary_size"] = float64(b.Metadata.VocabularySize)

	if err := ctx.Err(); err != nil {
		return nil, runMetrics, err
	}
	data, err := bundle.Marshal(b)
	if err != nil {
		return nil, runMetrics, err
	}
	runMetrics["artifact_bytes"] = float64(len(data))

	key := opts.ModelName + "/" + run.ID + ArtifactExt
	location, err := t.store.Put(ctx, key, data)
	if err != nil {
		return nil, runMetrics, fmt.Errorf("failed to store artifact: %w", err)
	}
	version, err := t.registry.CreateVersion(ctx, registry.VersionInput{
		Name:     opts.ModelName,
		Location: location,
		Checksum: artifact.Checksum(data),
		RunID:    run.ID,
		NumItems: b.Len(),
	})
	if err != nil {
		t.discardArtifact(ctx, location)
		return nil, runMetrics, fmt.Errorf("failed to register version: %w", err)
	}
	if opts.Alias != "" {
		if err := t.registry.SetAlias(ctx, opts.ModelName, opts.Alias, version.Version); err != nil {
			// A version the alias never reached is rolled back with its artifact.
			if derr := t.registry.DeleteVersion(context.WithoutCancel(ctx), version.Name, version.Version); derr != nil {
				t.logger.Warn("failed to roll back version",
					zap.String("model", version.Name), zap.Int("version", version.Version), zap.Error(derr))
			} else {
				t.discardArtifact(ctx, location)
			}
			return nil, runMetrics, fmt.Errorf("failed to set alias %q: %w", opts.Alias, err)
		}
		version.Aliases = append(version.Aliases, opts.Alias)
	}
	return &Result{Version: version, Bundle: b, Dropped: dropped}, runMetrics, nil
}

func (t *Trainer) discardArtifact(ctx context.Context, location string) {
	if err := t.store.Delete(context.WithoutCancel(ctx), location); err != nil {
		t.logger.Warn("failed to remove orphaned artifact", zap.String("location", location), zap.Error(err))
	}
}
