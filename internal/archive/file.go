package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Period buckets the archive into time subdirectories derived from the
// event's observation timestamp.
type Period string

const (
	PeriodNone    Period = ""
	PeriodYearly  Period = "yearly"
	PeriodMonthly Period = "monthly"
	PeriodDaily   Period = "daily"
)

// Standard permissions for archive directories and files.
const (
	archiveDirPerm  = 0o755
	archiveFilePerm = 0o644
)

// FileBackend writes job payloads into a hierarchical file store:
// root[/period-subdir]/<filename>, where the period subdir is YYYY,
// YYYYMM, or YYYYMMDD. Re-archival of the same filename overwrites the
// previous copy.
type FileBackend struct {
	root   string
	period Period
	logger *slog.Logger
}

// NewFileBackend creates the archive root if it does not yet exist.
func NewFileBackend(root string, period Period, logger *slog.Logger) (*FileBackend, error) {
	info, err := os.Stat(root)

	switch {
	case err == nil && !info.IsDir():
		return nil, fmt.Errorf("%w: archive path %s is not a directory", ErrIO, root)
	case err != nil:
		logger.Warn("archive root does not exist, creating it",
			slog.String("archive_dir", root))

		if mkdirErr := os.MkdirAll(root, archiveDirPerm); mkdirErr != nil {
			return nil, fmt.Errorf("%w: creating archive root %s: %w", ErrIO, root, mkdirErr)
		}
	}

	return &FileBackend{root: root, period: period, logger: logger}, nil
}

func (f *FileBackend) Name() string { return "file" }

// Archive writes every collected spool file into the period bucket for the
// event's observation moment, creating missing period subdirectories.
func (f *FileBackend) Archive(_ context.Context, req *Request) error {
	destDir := f.root
	if sub := periodSubdir(f.period, req.Moment); sub != "" {
		destDir = filepath.Join(f.root, sub)
		if err := os.MkdirAll(destDir, archiveDirPerm); err != nil {
			return fmt.Errorf("%w: creating period directory %s: %w", ErrIO, destDir, err)
		}
	}

	for _, file := range req.Job.Files {
		dest := filepath.Join(destDir, file.Name)

		if err := os.WriteFile(dest, file.Data, archiveFilePerm); err != nil {
			return fmt.Errorf("%w: copying %s to %s: %w", ErrIO, file.Source, dest, err)
		}

		f.logger.Info("archived spool file",
			slog.String("source", file.Source),
			slog.String("dest", dest),
			slog.Int("bytes", len(file.Data)),
		)
	}

	return nil
}

// Close is a no-op — every Archive call leaves the store consistent.
func (f *FileBackend) Close() error { return nil }

// periodSubdir formats the bucket name for the given period and timestamp.
func periodSubdir(p Period, t time.Time) string {
	switch p {
	case PeriodYearly:
		return t.Format("2006")
	case PeriodMonthly:
		return t.Format("200601")
	case PeriodDaily:
		return t.Format("20060102")
	default:
		return ""
	}
}
