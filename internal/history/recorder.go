package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Run is one row of the run log.
type Run struct {
	ID         uuid.UUID
	Input      string
	Output     string
	Encoding   string
	Strategy   string
	Rows       int
	Personal   int
	Skipped    int
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder writes audit runs to a Postgres table.
type Recorder struct {
	db    *sql.DB
	table string
}

// New wraps an open database handle.
func New(db *sql.DB, table string) (*Recorder, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid history table name %q", table)
	}
	return &Recorder{db: db, table: table}, nil
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL, table string) (*Recorder, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("history database url is empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r, err := New(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the database handle.
func (r *Recorder) Close() error { return r.db.Close() }

// EnsureSchema creates the run log table if it is missing.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+r.table+` (
		run_id        UUID PRIMARY KEY,
		input         TEXT NOT NULL,
		output        TEXT NOT NULL,
		encoding      TEXT NOT NULL DEFAULT '',
		strategy      TEXT NOT NULL DEFAULT '',
		row_count     INTEGER NOT NULL DEFAULT 0,
		personal      INTEGER NOT NULL DEFAULT 0,
		skipped       INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL CHECK (status IN ('completed','failed')),
		error_message TEXT NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ensure %s: %w", r.table, err)
	}
	return nil
}

// Record inserts the run, or replaces it if the id was already logged.
func (r *Recorder) Record(ctx context.Context, run Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (run_id, input, output, encoding, strategy, row_count, personal, skipped, status, error_message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (run_id) DO UPDATE SET
		   encoding=EXCLUDED.encoding, strategy=EXCLUDED.strategy,
		   row_count=EXCLUDED.row_count, personal=EXCLUDED.personal, skipped=EXCLUDED.skipped,
		   status=EXCLUDED.status, error_message=EXCLUDED.error_message,
		   finished_at=EXCLUDED.finished_at`,
		run.ID.String(), run.Input, run.Output, run.Encoding, run.Strategy,
		run.Rows, run.Personal, run.Skipped, run.Status, run.Error,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}
