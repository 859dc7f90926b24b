package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File is one spool file collected for archival, already read into memory
// so the backend never touches the spool after collection.
type File struct {
	// Name is the filename to archive under (e.g. "job.1234_script").
	Name string
	// Data is the file content.
	Data []byte
	// Source is the absolute spool path the content was read from.
	Source string
}

// Job is the payload collected from the spool for one observed job entry.
// It is immutable after collection and owned by the dispatcher until handed
// to the backend.
type Job struct {
	// ID is the scheduler-assigned job ID.
	ID string
	// Script is the submitted job script.
	Script []byte
	// Files lists every file to archive, script included.
	Files []File
	// Env holds scheduler-specific extra information: the submission
	// environment for Slurm, accompanying .TA/.JB file contents for Torque.
	Env map[string]string
}

// Spool files are written by the scheduler concurrently with our create
// event, so collection polls for each expected file: up to 100 turns of
// 10ms, matching the observed upper bound on scheduler write latency.
const (
	fileWaitTurns    = 100
	fileWaitInterval = 10 * time.Millisecond
)

// waitForFile polls until path exists, the wait budget is spent, or ctx is
// canceled. It fails fast if the containing job entry itself disappears —
// the scheduler has already purged the job.
func waitForFile(ctx context.Context, entryPath, path string) error {
	for turn := 0; turn < fileWaitTurns; turn++ {
		if _, err := os.Stat(path); err == nil {
			return nil
		}

		if _, err := os.Stat(entryPath); err != nil {
			return fmt.Errorf("scheduler: job entry %s disappeared while waiting for %s: %w",
				entryPath, filepath.Base(path), err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("scheduler: wait for %s: %w", path, ctx.Err())
		case <-time.After(fileWaitInterval):
		}
	}

	return fmt.Errorf("scheduler: %s did not appear within %v",
		path, fileWaitTurns*fileWaitInterval)
}

// parseNullSeparatedEnv parses the NUL-separated KEY=VALUE records the
// scheduler writes into the environment file. Malformed records keep the
// whole record as the key with an empty value.
func parseNullSeparatedEnv(data []byte) map[string]string {
	env := make(map[string]string)

	for _, record := range strings.Split(string(data), "\x00") {
		if record == "" {
			continue
		}

		key, value, found := strings.Cut(record, "=")
		if !found {
			env[record] = ""
			continue
		}

		env[key] = value
	}

	return env
}
