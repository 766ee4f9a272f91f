// Package artifact stores opaque model artifacts on local disk or in S3.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/eiga/internal/config"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a location holds no artifact.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts under a key and reads them back by the location Put returned.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
	Type() string
}

// Backend names.
const (
	BackendFile = "file"
	BackendS3   = "s3"
)

// NewStore creates the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendFile, "":
		logger.Debug("using file artifact store", zap.String("dir", cfg.ArtifactDir))
		return NewFileStore(cfg.ArtifactDir)
	case BackendS3:
		logger.Debug("using s3 artifact store",
			zap.String("bucket", cfg.S3.Bucket),
			zap.String("prefix", cfg.S3.Prefix),
			zap.String("region", cfg.S3.Region),
		)
		client, err := NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix)
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s (supported: file, s3)", cfg.Backend)
	}
}
