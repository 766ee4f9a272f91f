package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/eiga/internal/models"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	memory := dbPath == ":memory:"
	if !memory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create registry directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRegistry{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS registered_models (
		name TEXT PRIMARY KEY,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS model_versions (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		location TEXT NOT NULL,
		checksum TEXT,
		run_id TEXT,
		num_items INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (name, version),
		FOREIGN KEY (name) REFERENCES registered_models(name) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS model_aliases (
		name TEXT NOT NULL,
		alias TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (name, alias),
		FOREIGN KEY (name, version) REFERENCES model_versions(name, version) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		status TEXT NOT NULL,
		params TEXT,
		metrics TEXT,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_experiment_started ON runs(experiment, started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database path.
func (s *SQLiteRegistry) Path() string {
	return s.path
}

// EnsureModel registers name if it does not exist yet.
func (s *SQLiteRegistry) EnsureModel(ctx context.Context, name, description string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO registered_models (name, description, created_at) VALUES (?, ?, ?)`,
		name, description, time.Now(),
	)
	return err
}

// ListModels returns registered model names in order.
func (s *SQLiteRegistry) ListModels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM registered_models ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CreateVersion registers the model if needed and allocates the next version number
// in the same transaction.
func (s *SQLiteRegistry) CreateVersion(ctx context.Context, in VersionInput) (*models.ModelVersion, error) {
	if in.Name == "" || in.Location == "" {
		return nil, fmt.Errorf("model name and location are required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO registered_models (name, description, created_at) VALUES (?, '', ?)`,
		in.Name, now,
	); err != nil {
		return nil, fmt.Errorf("failed to register model: %w", err)
	}
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE name = ?`, in.Name,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to allocate version: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO model_versions (name, version, location, checksum, run_id, num_items, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Name, next, in.Location, in.Checksum, in.RunID, in.NumItems, now,
	); err != nil {
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.ModelVersion{
		Name:      in.Name,
		Version:   next,
		Location:  in.Location,
		Checksum:  in.Checksum,
		RunID:     in.RunID,
		NumItems:  in.NumItems,
		CreatedAt: now,
	}, nil
}

// DeleteVersion removes one version and any alias pointing at it.
func (s *SQLiteRegistry) DeleteVersion(ctx context.Context, name string, version int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM model_versions WHERE name = ? AND version = ?`, name, version)
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: model version %s/%d", ErrNotFound, name, version)
	}
	return nil
}

// GetVersion returns one version with its aliases.
func (s *SQLiteRegistry) GetVersion(ctx context.Context, name string, version int) (*models.ModelVersion, error) {
	var mv models.ModelVersion
	var checksum, runID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT name, version, location, checksum, run_id, num_items, created_at
		 FROM model_versions WHERE name = ? AND version = ?`, name, version,
	).Scan(&mv.Name, &mv.Version, &mv.Location, &checksum, &runID, &mv.NumItems, &mv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: model version %s/%d", ErrNotFound, name, version)
	}
	if err != nil {
		return nil, err
	}
	mv.Checksum = checksum.String
	mv.RunID = runID.String
	aliases, err := s.aliases(ctx, name)
	if err != nil {
		return nil, err
	}
	mv.Aliases = aliases[mv.Version]
	return &mv, nil
}

// ListVersions returns every version of name, newest first.
func (s *SQLiteRegistry) ListVersions(ctx context.Context, name string) ([]*models.ModelVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, version, location, checksum, run_id, num_items, created_at
		 FROM model_versions WHERE name = ? ORDER BY version DESC`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.ModelVersion
	for rows.Next() {
		var mv models.ModelVersion
		var checksum, runID sql.NullString
		if err := rows.Scan(&mv.Name, &mv.Version, &mv.Location, &checksum, &runID, &mv.NumItems, &mv.CreatedAt); err != nil {
			return nil, err
		}
		mv.Checksum = checksum.String
		mv.RunID = runID.String
		versions = append(versions, &mv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	aliases, err := s.aliases(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, mv := range versions {
		mv.Aliases = aliases[mv.Version]
	}
	return versions, nil
}

func (s *SQLiteRegistry) aliases(ctx context.Context, name string) (map[int][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias, version FROM model_aliases WHERE name = ?`, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int][]string)
	for rows.Next() {
		var alias string
		var version int
		if err := rows.Scan(&alias, &version); err != nil {
			return nil, err
		}
		out[version] = append(out[version], alias)
	}
	for _, list := range out {
		sort.Strings(list)
	}
	return out, rows.Err()
}

// SetAlias points alias at version, replacing any previous target in one transaction.
func (s *SQLiteRegistry) SetAlias(ctx context.Context, name, alias string, version int) error {
	if err := ValidAlias(alias); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM model_versions WHERE name = ? AND version = ?`, name, version,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: model version %s/%d", ErrNotFound, name, version)
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO model_aliases (name, alias, version, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name, alias) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		name, alias, version, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to set alias: %w", err)
	}
	return tx.Commit()
}

// DeleteAlias removes alias from name.
func (s *SQLiteRegistry) DeleteAlias(ctx context.Context, name, alias string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM model_aliases WHERE name = ? AND alias = ?`, name, alias,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: alias %s@%s", ErrNotFound, name, alias)
	}
	return nil
}

// Resolve returns the version named by ref, a version number or an alias.
func (s *SQLiteRegistry) Resolve(ctx context.Context, name, ref string) (*models.ModelVersion, error) {
	if v, ok := parseVersion(ref); ok {
		return s.GetVersion(ctx, name, v)
	}
	var version int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM model_aliases WHERE name = ? AND alias = ?`, name, ref,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: alias %s@%s", ErrNotFound, name, ref)
	}
	if err != nil {
		return nil, err
	}
	return s.GetVersion(ctx, name, version)
}

// StartRun records a new RUNNING run with a random ID.
func (s *SQLiteRegistry) StartRun(ctx context.Context, experiment string, params map[string]string) (*models.Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	run := &models.Run{
		ID:         uuid.New().String(),
		Experiment: experiment,
		Status:     models.RunRunning,
		Params:     params,
		StartedAt:  time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, experiment, status, params, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Experiment, run.Status, string(paramsJSON), run.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun stores the final status, metrics, and error of a run.
func (s *SQLiteRegistry) FinishRun(ctx context.Context, runID, status string, metrics map[string]float64, runErr error) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, metrics = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, string(metricsJSON), errText, time.Now(), runID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteRegistry) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, experiment, status, params, metrics, error, started_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	), runID)
}

// LatestRun returns the most recently started run of experiment.
func (s *SQLiteRegistry) LatestRun(ctx context.Context, experiment string) (*models.Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, experiment, status, params, metrics, error, started_at, finished_at
		 FROM runs WHERE experiment = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, experiment,
	), "latest of "+experiment)
}

func (s *SQLiteRegistry) scanRun(row *sql.Row, what string) (*models.Run, error) {
	var run models.Run
	var params, metrics, errText sql.NullString
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Experiment, &run.Status, &params, &metrics, &errText, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, what)
	}
	if err != nil {
		return nil, err
	}
	if params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &run.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}
	if metrics.String != "" {
		if err := json.Unmarshal([]byte(metrics.String), &run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	run.Error = errText.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Close closes the database connection.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}
