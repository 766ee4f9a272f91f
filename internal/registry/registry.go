// Package registry tracks registered models, their immutable versions, movable aliases,
// and the training runs that produced them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
)

// ErrNotFound is returned when a model, version, alias, or run does not exist.
var ErrNotFound = errors.New("not found")

// URIScheme prefixes model references such as models:/movie-recommender/production.
const URIScheme = "models:/"

// VersionInput describes a new model version.
type VersionInput struct {
	Name     string
	Location string
	Checksum string
	RunID    string
	NumItems int
}

// Registry defines model version, alias, and run persistence.
type Registry interface {
	// Models and versions
	EnsureModel(ctx context.Context, name, description string) error
	ListModels(ctx context.Context) ([]string, error)
	CreateVersion(ctx context.Context, in VersionInput) (*models.ModelVersion, error)
	GetVersion(ctx context.Context, name string, version int) (*models.ModelVersion, error)
	ListVersions(ctx context.Context, name string) ([]*models.ModelVersion, error)
	DeleteVersion(ctx context.Context, name string, version int) error

	// Aliases
	SetAlias(ctx context.Context, name, alias string, version int) error
	DeleteAlias(ctx context.Context, name, alias string) error
	Resolve(ctx context.Context, name, ref string) (*models.ModelVersion, error)

	// Runs
	StartRun(ctx context.Context, experiment string, params map[string]string) (*models.Run, error)
	FinishRun(ctx context.Context, runID, status string, metrics map[string]float64, runErr error) error
	GetRun(ctx context.Context, runID string) (*models.Run, error)
	LatestRun(ctx context.Context, experiment string) (*models.Run, error)

	Close() error
}

// ParseURI splits models:/<name>/<ref> into name and ref.
func ParseURI(uri string) (name, ref string, err error) {
	rest, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return "", "", fmt.Errorf("model uri must start with %q: %q", URIScheme, uri)
	}
	name, ref, ok = strings.Cut(rest, "/")
	if !ok || name == "" || ref == "" || strings.Contains(ref, "/") {
		return "", "", fmt.Errorf("model uri must look like %s<name>/<version|alias>: %q", URIScheme, uri)
	}
	return name, ref, nil
}

// FormatURI builds models:/<name>/<ref>.
func FormatURI(name, ref string) string {
	return URIScheme + name + "/" + ref
}

// ResolveURI resolves a models:/ reference against r.
func ResolveURI(ctx context.Context, r Registry, uri string) (*models.ModelVersion, error) {
	name, ref, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, name, ref)
}

// parseVersion reports whether ref names a version number rather than an alias.
func parseVersion(ref string) (int, bool) {
	v, err := strconv.Atoi(ref)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// ValidAlias reports whether alias can be stored. Aliases must not look like version numbers.
func ValidAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if _, err := strconv.Atoi(alias); err == nil {
		return fmt.Errorf("alias %q must not be numeric", alias)
	}
	if strings.ContainsAny(alias, "/ ") {
		return fmt.Errorf("alias %q must not contain '/' or spaces", alias)
	}
	return nil
}
