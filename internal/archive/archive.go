// Package archive defines the pluggable archival backend and its three
// implementations: a hierarchical file store, a Redis Stream producer, and
// a local SQLite index. Exactly one backend is active per daemon process,
// selected from configuration; the dispatcher treats all of them uniformly
// through the Backend interface.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpcops/spoolarchive/internal/config"
	"github.com/hpcops/spoolarchive/internal/scheduler"
)

// Backend error taxonomy. Archival failures are isolated to the event that
// caused them — the dispatcher logs and moves on, never crashing the
// daemon over a single bad file or transient outage.
var (
	// ErrIO marks local filesystem or database failures.
	ErrIO = errors.New("archive: io error")
	// ErrTransport marks broker publish, connection, and serialization
	// failures.
	ErrTransport = errors.New("archive: transport error")
)

// Request carries one job archival: the event metadata plus the payload
// collected from the spool. Owned by the caller; backends must not retain
// it past the Archive call.
type Request struct {
	EventID   string
	Cluster   string
	Scheduler scheduler.Kind
	Path      string
	EventKind string
	Moment    time.Time
	Job       *scheduler.Job
}

// Backend is the single capability every archival sink implements.
// Backends are used from the dispatcher goroutine only; dispatch is
// serialized, so implementations need no internal locking.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string
	// Archive durably stores or forwards the job payload.
	Archive(ctx context.Context, req *Request) error
	// Close flushes and releases backend resources during shutdown drain.
	Close() error
}

// New constructs the backend selected by the configuration. Construction
// failures are fatal startup configuration errors.
func New(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileBackend(cfg.File.ArchiveDir, Period(cfg.File.Period), logger)
	case "redis":
		return NewRedisBackend(cfg.Redis.URL, cfg.Redis.Stream, cfg.Redis.MaxLen, logger)
	case "sqlite":
		return NewSQLiteBackend(cfg.SQLite.DBPath, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrConfiguration, cfg.Backend)
	}
}
