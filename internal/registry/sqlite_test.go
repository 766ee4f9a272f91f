package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/eiga/internal/models"
)

func newTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	reg, err := NewSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestSQLiteRegistry_VersionsAndAliases(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	v1, err := reg.CreateVersion(ctx, VersionInput{Name: "movie-recommender", Location: "/a/1.eiga", Checksum: "sha256:1", RunID: "r1", NumItems: 10})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := reg.CreateVersion(ctx, VersionInput{Name: "movie-recommender", Location: "/a/2.eiga", NumItems: 12})
	if err != nil {
		t.Fatal(err)
	}
	if v1.Version != 1 || v2.Version != 2 {
		t.Fatalf("versions = %d, %d; want 1, 2", v1.Version, v2.Version)
	}

	names, err := reg.ListModels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "movie-recommender" {
		t.Errorf("ListModels = %v", names)
	}

	if err := reg.SetAlias(ctx, "movie-recommender", "production", 1); err != nil {
		t.Fatal(err)
	}
	got, err := reg.Resolve(ctx, "movie-recommender", "production")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Location != "/a/1.eiga" || got.Checksum != "sha256:1" || got.RunID != "r1" {
		t.Errorf("resolved %+v", got)
	}
	if len(got.Aliases) != 1 || got.Aliases[0] != "production" {
		t.Errorf("aliases = %v", got.Aliases)
	}

	// Moving the alias is a single update.
	if err := reg.SetAlias(ctx, "movie-recommender", "production", 2); err != nil {
		t.Fatal(err)
	}
	got, err = ResolveURI(ctx, reg, "models:/movie-recommender/production")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("alias should point at 2, got %d", got.Version)
	}

	got, err = reg.Resolve(ctx, "movie-recommender", "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || len(got.Aliases) != 0 {
		t.Errorf("version 1: %+v", got)
	}

	list, err := reg.ListVersions(ctx, "movie-recommender")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Version != 2 || list[1].Version != 1 {
		t.Fatalf("ListVersions order: %+v", list)
	}
	if len(list[0].Aliases) != 1 {
		t.Errorf("newest version should carry the alias: %+v", list[0])
	}

	if err := reg.DeleteAlias(ctx, "movie-recommender", "production"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Resolve(ctx, "movie-recommender", "production"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := reg.DeleteAlias(ctx, "movie-recommender", "production"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting missing alias, got %v", err)
	}
}

func TestSQLiteRegistry_NotFound(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.GetVersion(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVersion: %v", err)
	}
	if _, err := reg.Resolve(ctx, "missing", "production"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve alias: %v", err)
	}
	if err := reg.SetAlias(ctx, "missing", "production", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetAlias on missing version: %v", err)
	}
	if _, err := reg.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun: %v", err)
	}
}

func TestSQLiteRegistry_DeleteVersion(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	v, err := reg.CreateVersion(ctx, VersionInput{Name: "m", Location: "/x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.SetAlias(ctx, "m", "production", v.Version); err != nil {
		t.Fatal(err)
	}
	if err := reg.DeleteVersion(ctx, "m", v.Version); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.GetVersion(ctx, "m", v.Version); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVersion after delete: %v", err)
	}
	if _, err := reg.Resolve(ctx, "m", "production"); !errors.Is(err, ErrNotFound) {
		t.Errorf("alias should go with its version: %v", err)
	}
	if err := reg.DeleteVersion(ctx, "m", v.Version); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestSQLiteRegistry_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	var regs []*SQLiteRegistry
	for i := 0; i < 2; i++ {
		reg, err := NewSQLiteRegistry(path)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = reg.Close() })
		regs = append(regs, reg)
	}

	const perWriter = 10
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 2*perWriter)
	for _, reg := range regs {
		wg.Add(1)
		go func(reg *SQLiteRegistry) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := reg.CreateVersion(ctx, VersionInput{Name: "m", Location: "/x"}); err != nil {
					errs <- err
				}
			}
		}(reg)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("CreateVersion: %v", err)
	}

	versions, err := regs[0].ListVersions(ctx, "m")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2*perWriter {
		t.Fatalf("got %d versions, want %d", len(versions), 2*perWriter)
	}
	for i, mv := range versions {
		if want := 2*perWriter - i; mv.Version != want {
			t.Errorf("versions[%d] = %d, want %d", i, mv.Version, want)
		}
	}
}

func TestSQLiteRegistry_SetAliasRejectsNumeric(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	if _, err := reg.CreateVersion(ctx, VersionInput{Name: "m", Location: "/x"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetAlias(ctx, "m", "2", 1); err == nil {
		t.Error("numeric alias should be rejected")
	}
}

func TestSQLiteRegistry_Runs(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	run, err := reg.StartRun(ctx, "exp", map[string]string{"max_features": "5000"})
	if err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || run.Status != models.RunRunning {
		t.Fatalf("run = %+v", run)
	}
	if err := reg.FinishRun(ctx, run.ID, models.RunFinished, map[string]float64{"num_items": 1682}, nil); err != nil {
		t.Fatal(err)
	}
	got, err := reg.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunFinished || got.Params["max_features"] != "5000" || got.Metrics["num_items"] != 1682 {
		t.Errorf("run = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}

	failed, err := reg.StartRun(ctx, "exp", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.FinishRun(ctx, failed.ID, models.RunFailed, nil, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	latest, err := reg.LatestRun(ctx, "exp")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != failed.ID || latest.Status != models.RunFailed || latest.Error != "boom" {
		t.Errorf("latest = %+v", latest)
	}
	if err := reg.FinishRun(ctx, "nope", models.RunFinished, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun missing: %v", err)
	}
}

func TestSQLiteRegistry_InMemory(t *testing.T) {
	reg, err := NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	ctx := context.Background()
	if _, err := reg.CreateVersion(ctx, VersionInput{Name: "m", Location: "/x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Resolve(ctx, "m", "1"); err != nil {
		t.Fatal(err)
	}
}

func TestParseURI(t *testing.T) {
	name, ref, err := ParseURI("models:/movie-recommender/production")
	if err != nil || name != "movie-recommender" || ref != "production" {
		t.Errorf("got %q %q %v", name, ref, err)
	}
	for _, bad := range []string{"movie-recommender/1", "models:/only", "models://1", "models:/a/b/c", "models:/a/"} {
		if _, _, err := ParseURI(bad); err == nil {
			t.Errorf("ParseURI(%q) should fail", bad)
		}
	}
	if FormatURI("m", "3") != "models:/m/3" {
		t.Error("FormatURI")
	}
}
