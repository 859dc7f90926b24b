package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// jobsSchema is the single durable index table. One row per archived job,
// keyed by job ID so a rewritten script replaces the earlier row.
const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	cluster     TEXT NOT NULL,
	scheduler   TEXT NOT NULL,
	path        TEXT NOT NULL,
	event_kind  TEXT NOT NULL,
	moment      TEXT NOT NULL,
	script      BLOB NOT NULL,
	environment TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_cluster_moment ON jobs (cluster, moment);
`

// SQLiteBackend stores archived jobs in a local SQLite database — a
// queryable index for operators who want post-hoc lookups without a
// directory tree or a broker.
type SQLiteBackend struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteBackend opens (creating if needed) the database and ensures the
// schema. Sole-writer: the dispatcher serializes all calls, so a single
// connection avoids SQLITE_BUSY entirely.
func NewSQLiteBackend(dbPath string, logger *slog.Logger) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database %s: %w", ErrIO, dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(jobsSchema); err != nil {
		db.Close()

		return nil, fmt.Errorf("%w: creating schema in %s: %w", ErrIO, dbPath, err)
	}

	logger.Info("using sqlite archival", slog.String("db_path", dbPath))

	return &SQLiteBackend{db: db, logger: logger}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

// Archive upserts the job row. Re-archival of the same job ID reflects the
// latest script, matching the file backend's overwrite semantics.
func (s *SQLiteBackend) Archive(ctx context.Context, req *Request) error {
	var envJSON []byte

	if len(req.Job.Env) > 0 {
		var err error
		if envJSON, err = json.Marshal(req.Job.Env); err != nil {
			return fmt.Errorf("%w: serializing environment for job %s: %w", ErrIO, req.Job.ID, err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO jobs
			(job_id, event_id, cluster, scheduler, path, event_kind, moment, script, environment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Job.ID,
		req.EventID,
		req.Cluster,
		string(req.Scheduler),
		req.Path,
		req.EventKind,
		req.Moment.UTC().Format(time.RFC3339Nano),
		req.Job.Script,
		nullableString(envJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: storing job %s: %w", ErrIO, req.Job.ID, err)
	}

	s.logger.Debug("stored job row", slog.String("job_id", req.Job.ID))

	return nil
}

// Close closes the database handle during shutdown drain.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return string(b)
}
