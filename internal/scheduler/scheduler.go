// Package scheduler abstracts over the supported cluster job schedulers.
// A Scheduler knows the spool layout of its kind: which directories to
// watch, which event paths denote a job entry, and how to gather the job
// script and its accompanying files from the spool.
package scheduler

import (
	"context"
	"fmt"
	"os"
)

// Kind enumerates the supported schedulers.
type Kind string

const (
	Slurm  Kind = "slurm"
	Torque Kind = "torque"
)

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Slurm, Torque:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("scheduler: unknown kind %q", s)
	}
}

// Scheduler is the capability set the watch pipeline needs from a
// scheduler kind. Implementations are stateless beyond their spool root
// and safe for concurrent use.
type Scheduler interface {
	// Kind returns the scheduler kind.
	Kind() Kind

	// WatchTargets enumerates the spool directories to watch, resolved
	// once at startup. Each returned path is verified to exist; a missing
	// spool or shard directory is a fatal configuration error.
	WatchTargets() ([]string, error)

	// Relevant reports whether an event path denotes a job entry worth
	// archiving, per this scheduler's spool naming convention. Scheduler
	// housekeeping files are filtered out here.
	Relevant(path string) bool

	// CollectJob gathers the job script and accompanying files for the
	// job entry at path. The spool is written by the scheduler
	// concurrently, so implementations wait briefly for expected files to
	// appear; ctx bounds that wait during shutdown.
	CollectJob(ctx context.Context, path string) (*Job, error)
}

// New constructs the Scheduler for the given kind and spool root.
// torqueSubdirs selects the sharded Torque spool layout; it is ignored for
// Slurm.
func New(kind Kind, spoolDir string, torqueSubdirs bool) (Scheduler, error) {
	switch kind {
	case Slurm:
		return &slurm{spool: spoolDir}, nil
	case Torque:
		return &torque{spool: spoolDir, subdirs: torqueSubdirs}, nil
	default:
		return nil, fmt.Errorf("scheduler: unknown kind %q", kind)
	}
}

// checkDir verifies that path exists and is a directory.
func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("scheduler: spool directory %s: %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("scheduler: spool path %s is not a directory", path)
	}

	return nil
}
