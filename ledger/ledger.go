// Package ledger keeps an optional local index of pipeline runs in SQLite.
//
// The ledger mirrors the audit artifact of each run so history can be
// listed without reading artifact storage. It is never consulted for
// idempotency; the target API's external_ref uniqueness is the only
// source of truth for what has been imported.
package ledger

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/govpipe/db"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/ixgest/audit"
)

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 50

// Run is one recorded pipeline run
type Run struct {
	RunID        string    `json:"run_id"`
	Environment  string    `json:"environment"`
	EntityType   string    `json:"entity_type"`
	Mode         string    `json:"mode"`
	Source       string    `json:"source"`
	SourceHash   string    `json:"source_hash"`
	RecordCount  int       `json:"record_count"`
	Imported     int       `json:"imported"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	ArtifactPath string    `json:"artifact_path"`
	StartedAt    time.Time `json:"started_at"`
}

// FromEvent builds a ledger row from an audit event
func FromEvent(ev audit.Event, artifactPath string) Run {
	return Run{
		RunID:        ev.RunID,
		Environment:  ev.Environment,
		EntityType:   ev.EntityType,
		Mode:         ev.Mode,
		Source:       ev.Source,
		SourceHash:   ev.SourceHash,
		RecordCount:  ev.RecordCount,
		Imported:     ev.Imported,
		Skipped:      ev.Skipped,
		Failed:       ev.Failed,
		ArtifactPath: artifactPath,
		StartedAt:    ev.Timestamp.UTC(),
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EntityType  string
	Environment string
	Mode        string
	Limit       int
}

// Stats summarises recorded runs
type Stats struct {
	Runs     int `json:"runs"`
	Records  int `json:"records"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Store reads and writes the runs table
type Store struct {
	db *sql.DB
}

// New wraps an already migrated database
func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Open opens (and migrates) the ledger database at path
func Open(path string, logger *zap.SugaredLogger) (*Store, error) {
	conn, err := db.OpenWithMigrations(path, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}
	return New(conn), nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

const runColumns = `run_id, environment, entity_type, mode, source, source_hash,
	record_count, imported, skipped, failed, artifact_path, started_at`

// Record stores a run. Re-recording a run ID (a repeated dry-run) replaces it.
func (s *Store) Record(ctx context.Context, run Run) error {
	query := `INSERT OR REPLACE INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.Environment, run.EntityType, run.Mode, run.Source, run.SourceHash,
		run.RecordCount, run.Imported, run.Skipped, run.Failed, run.ArtifactPath, run.StartedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(db.MarkClosed(err), "failed to record run %s", run.RunID)
	}
	return nil
}

// Get returns one run by ID
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run %s", runID)
	}
	return run, nil
}

// List returns runs newest first
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.Environment != "" {
		where = append(where, "environment = ?")
		args = append(args, f.Environment)
	}
	if f.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, f.Mode)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, run_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate runs")
	}
	return runs, nil
}

// LastImport returns the most recent import of a source into an
// environment, or nil when there is none
func (s *Store) LastImport(ctx context.Context, sourceHash, environment, entityType string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs
		WHERE source_hash = ? AND environment = ? AND entity_type = ? AND mode = 'import'
		ORDER BY started_at DESC LIMIT 1`, sourceHash, environment, entityType)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up previous import")
	}
	return run, nil
}

// Stats totals runs started at or after since
func (s *Store) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(record_count), 0),
			COALESCE(SUM(imported), 0),
			COALESCE(SUM(skipped), 0),
			COALESCE(SUM(failed), 0)
		FROM runs
		WHERE started_at >= ?`

	var st Stats
	err := s.db.QueryRowContext(ctx, query, since.UTC()).Scan(&st.Runs, &st.Records, &st.Imported, &st.Skipped, &st.Failed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute run stats")
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	err := row.Scan(&r.RunID, &r.Environment, &r.EntityType, &r.Mode, &r.Source, &r.SourceHash,
		&r.RecordCount, &r.Imported, &r.Skipped, &r.Failed, &r.ArtifactPath, &r.StartedAt)
	if err != nil {
		return nil, err
	}
	r.StartedAt = r.StartedAt.UTC()
	return &r, nil
}
