package trainer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var movies = []models.Item{
	{ID: "1", Title: "Toy Story (1995)"},
	{ID: "2", Title: "GoldenEye (1995)"},
	{ID: "3", Title: "  "},
	{ID: "4", Title: "Toy Story 2 (1999)"},
}

func setup(t *testing.T) (*registry.SQLiteRegistry, *artifact.FileStore) {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.NewSQLiteRegistry(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	store, err := artifact.NewFileStore(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	return reg, store
}

func TestTrain_RegistersVersion(t *testing.T) {
	reg, store := setup(t)
	ctx := context.Background()
	res, err := New(reg, store).Train(ctx, movies, Options{
		ModelName:  "movies",
		Experiment: "test",
		Alias:      "production",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, 3, res.Bundle.Len())
	assert.Equal(t, 1, res.Version.Version)
	assert.Equal(t, []string{"production"}, res.Version.Aliases)
	assert.Equal(t, res.Run.ID, res.Version.RunID)
	assert.Equal(t, filepath.Join(store.Root(), "movies", res.Run.ID+ArtifactExt), res.Version.Location)

	assert.Equal(t, models.RunFinished, res.Run.Status)
	assert.Equal(t, "content_based", res.Run.Params["model_type"])
	assert.Equal(t, float64(3), res.Run.Metrics["num_items"])
	assert.Contains(t, res.Run.Metrics, "vocabulary_size")
	assert.Contains(t, res.Run.Metrics, "artifact_bytes")

	mv, err := reg.Resolve(ctx, "movies", "production")
	require.NoError(t, err)
	b, err := bundle.Load(ctx, store, mv.Location, mv.Checksum)
	require.NoError(t, err)
	assert.Equal(t, res.Bundle.Catalog.Titles(), b.Catalog.Titles())
}

func TestTrain_SecondRunIncrementsVersion(t *testing.T) {
	reg, store := setup(t)
	tr := New(reg, store)
	ctx := context.Background()
	_, err := tr.Train(ctx, movies, Options{ModelName: "movies", Alias: "production"})
	require.NoError(t, err)
	res, err := tr.Train(ctx, movies[:2], Options{ModelName: "movies", Alias: "production"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Version.Version)

	mv, err := reg.Resolve(ctx, "movies", "production")
	require.NoError(t, err)
	assert.Equal(t, 2, mv.Version)
}

func TestTrain_FailureMarksRunFailed(t *testing.T) {
	reg, store := setup(t)
	ctx := context.Background()
	_, err := New(reg, store).Train(ctx, []models.Item{{ID: "1", Title: "the and of"}}, Options{
		ModelName:  "movies",
		Experiment: "broken",
	})
	require.Error(t, err)

	run, err := reg.LatestRun(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, run.Status)
	assert.NotEmpty(t, run.Error)

	versions, err := reg.ListVersions(ctx, "movies")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

type aliasFailingRegistry struct {
	*registry.SQLiteRegistry
}

func (r aliasFailingRegistry) SetAlias(context.Context, string, string, int) error {
	return errors.New("alias table locked")
}

func TestTrain_AliasFailureRollsBackVersion(t *testing.T) {
	reg, store := setup(t)
	ctx := context.Background()
	_, err := New(aliasFailingRegistry{reg}, store).Train(ctx, movies, Options{
		ModelName:  "movies",
		Experiment: "alias",
		Alias:      "production",
	})
	require.ErrorContains(t, err, "alias table locked")

	versions, err := reg.ListVersions(ctx, "movies")
	require.NoError(t, err)
	assert.Empty(t, versions)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "movies"))
	if !os.IsNotExist(err) {
		require.NoError(t, err)
		assert.Empty(t, entries)
	}

	run, err := reg.LatestRun(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, run.Status)
}

func TestTrain_RejectsBadOptions(t *testing.T) {
	reg, store := setup(t)
	_, err := New(reg, store).Train(context.Background(), movies, Options{})
	assert.Error(t, err)
	_, err = New(reg, store).Train(context.Background(), movies, Options{ModelName: "movies", Alias: "3"})
	assert.Error(t, err)
}
