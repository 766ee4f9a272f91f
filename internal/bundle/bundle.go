// Package bundle ties a catalog, its similarity matrix, and the fitted vectorizer into
// one immutable, versioned unit that can be persisted and loaded as an artifact.
package bundle

import (
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/vector"
	"github.com/hyperjump/eiga/internal/vectorizer"
	"go.uber.org/zap"
)

var (
	// ErrArtifactNotFound is returned when no artifact exists at the requested location.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrArtifactCorrupt is returned when an artifact cannot be decoded or is inconsistent.
	ErrArtifactCorrupt = errors.New("artifact corrupt")
)

// Bundle is the unit the query engine reads. It is never mutated after Fit or Decode.
type Bundle struct {
	Catalog    *catalog.Catalog
	Matrix     *vector.Matrix
	Vectorizer *vectorizer.Vectorizer
	Metadata   models.BundleMetadata
}

// Options configures Fit.
type Options struct {
	MaxFeatures int
	// Workers bounds matrix construction parallelism; 0 uses GOMAXPROCS.
	Workers int
	Source  string
	Logger  *zap.Logger
	now     func() time.Time
}

// Fit vectorizes item titles and builds the similarity matrix.
func Fit(items []models.Item, opts Options) (*Bundle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	vz := vectorizer.New(vectorizer.WithMaxFeatures(opts.MaxFeatures))
	vecs, err := vz.FitTransform(titles)
	if err != nil {
		return nil, fmt.Errorf("fit vectorizer: %w", err)
	}
	logger.Debug("vectorizer fitted",
		zap.Int("items", len(items)),
		zap.Int("vocabulary", len(vz.Vocabulary())),
	)

	var matrix *vector.Matrix
	if opts.Workers > 0 {
		matrix = vector.BuildMatrixWorkers(vecs, opts.Workers)
	} else {
		matrix = vector.BuildMatrix(vecs)
	}

	b := &Bundle{
		Catalog:    catalog.New(items),
		Matrix:     matrix,
		Vectorizer: vz,
		Metadata: models.BundleMetadata{
			FittedAt:       now().UTC(),
			NumItems:       len(items),
			VocabularySize: len(vz.Vocabulary()),
			MaxFeatures:    vz.MaxFeatures(),
			Source:         opts.Source,
		},
	}
	return b, nil
}

// Len returns the number of items.
func (b *Bundle) Len() int {
	return b.Catalog.Len()
}

// Validate checks that the catalog and matrix describe the same items.
func (b *Bundle) Validate() error {
	if b.Catalog == nil || b.Matrix == nil || b.Vectorizer == nil {
		return fmt.Errorf("%w: incomplete bundle", ErrArtifactCorrupt)
	}
	if b.Catalog.Len() != b.Matrix.Size() {
		return fmt.Errorf("%w: catalog has %d items but matrix is %dx%d",
			ErrArtifactCorrupt, b.Catalog.Len(), b.Matrix.Size(), b.Matrix.Size())
	}
	if b.Catalog.Len() == 0 {
		return fmt.Errorf("%w: empty catalog", ErrArtifactCorrupt)
	}
	return nil
}
