package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// slurmHashDirs is the fixed number of hashed shard directories Slurm
// maintains under its spool root (hash.0 .. hash.9).
const slurmHashDirs = 10

// slurm implements Scheduler for the Slurm spool layout: job state lives
// in hash.N/job.<id>/ directories, each holding a "script" and an
// "environment" file.
type slurm struct {
	spool string
}

func (s *slurm) Kind() Kind { return Slurm }

// WatchTargets returns the ten hashed shard directories under the spool
// root. All of them must exist — a partially watched spool silently loses
// archival coverage, so a missing shard aborts startup.
func (s *slurm) WatchTargets() ([]string, error) {
	if err := checkDir(s.spool); err != nil {
		return nil, err
	}

	targets := make([]string, 0, slurmHashDirs)

	for hash := range slurmHashDirs {
		dir := filepath.Join(s.spool, fmt.Sprintf("hash.%d", hash))
		if err := checkDir(dir); err != nil {
			return nil, err
		}

		targets = append(targets, dir)
	}

	return targets, nil
}

// Relevant reports whether path names a Slurm job entry: "job.<id>", e.g.
// /var/spool/slurm/hash.3/job.01234. The check is name-only — the path may
// already be gone for removal events, and collection verifies the entry is
// a readable directory anyway.
func (s *slurm) Relevant(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "job.")
}

// CollectJob reads the script and environment files from the job entry
// directory, waiting briefly for each to be written by slurmd.
func (s *slurm) CollectJob(ctx context.Context, path string) (*Job, error) {
	jobID := strings.TrimPrefix(filepath.Base(path), "job.")

	job := &Job{ID: jobID}

	for _, filename := range []string{"script", "environment"} {
		source := filepath.Join(path, filename)
		if err := waitForFile(ctx, path, source); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("scheduler: reading %s: %w", source, err)
		}

		job.Files = append(job.Files, File{
			Name:   fmt.Sprintf("job.%s_%s", jobID, filename),
			Data:   data,
			Source: source,
		})

		switch filename {
		case "script":
			job.Script = data
		case "environment":
			job.Env = parseNullSeparatedEnv(data)
		}
	}

	return job, nil
}
