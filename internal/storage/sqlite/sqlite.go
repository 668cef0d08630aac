package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/luamill/luamill/internal/log"
	"github.com/luamill/luamill/internal/model"
	"github.com/luamill/luamill/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite run ledger.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.RunRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite run ledger initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateRun records a started run and its resolved releases.
func (r *Repository) CreateRun(ctx context.Context, run model.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, success, missing) VALUES (?, ?, 0, '')`,
		run.ID, run.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("could not insert run: %w", err)
	}

	for _, rel := range run.Releases {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_releases (run_id, project, release, url) VALUES (?, ?, ?, ?)`,
			run.ID, rel.Project, rel.Release, rel.URL)
		if err != nil {
			return fmt.Errorf("could not insert release for %s: %w", rel.Project, err)
		}
	}

	return tx.Commit()
}

// FinishRun records the outcome of a run.
func (r *Repository) FinishRun(ctx context.Context, run model.Run) error {
	finishedAt := time.Now().Unix()
	if run.FinishedAt != nil {
		finishedAt = run.FinishedAt.Unix()
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = ?, missing = ? WHERE id = ?`,
		finishedAt, boolToInt(run.Success), strings.Join(run.Missing, "\n"), run.ID)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q: %w", run.ID, model.ErrNotFound)
	}

	return nil
}

// GetRun returns one run with its resolved releases.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, success, missing FROM runs WHERE id = ?`, id)
	return r.scanRun(ctx, row, id)
}

// LatestRun returns the most recently started run with its resolved releases.
func (r *Repository) LatestRun(ctx context.Context) (*model.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, success, missing FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	return r.scanRun(ctx, row, "latest")
}

func (r *Repository) scanRun(ctx context.Context, row *sql.Row, id string) (*model.Run, error) {
	var run model.Run
	var startedAt int64
	var finishedAt sql.NullInt64
	var success int
	var missing string
	err := row.Scan(&run.ID, &startedAt, &finishedAt, &success, &missing)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("could not scan run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	run.Success = success != 0
	if missing != "" {
		run.Missing = strings.Split(missing, "\n")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT project, release, url FROM run_releases WHERE run_id = ? ORDER BY project`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("could not query releases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rel model.ResolvedRelease
		if err := rows.Scan(&rel.Project, &rel.Release, &rel.URL); err != nil {
			return nil, fmt.Errorf("could not scan release: %w", err)
		}
		run.Releases = append(run.Releases, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate releases: %w", err)
	}

	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
