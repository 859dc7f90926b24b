package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpcops/spoolarchive/internal/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeRequest(jobID string, moment time.Time) *Request {
	return &Request{
		EventID:   "evt-1",
		Cluster:   "huppel",
		Scheduler: scheduler.Slurm,
		Path:      "/spool/hash.0/job." + jobID,
		EventKind: "created",
		Moment:    moment,
		Job: &scheduler.Job{
			ID:     jobID,
			Script: []byte("#!/bin/bash\nsleep 1\n"),
			Files: []scheduler.File{
				{
					Name:   "job." + jobID + "_script",
					Data:   []byte("#!/bin/bash\nsleep 1\n"),
					Source: "/spool/hash.0/job." + jobID + "/script",
				},
				{
					Name:   "job." + jobID + "_environment",
					Data:   []byte("PATH=/usr/bin"),
					Source: "/spool/hash.0/job." + jobID + "/environment",
				},
			},
		},
	}
}

func TestFileBackend_PeriodSubdirectories(t *testing.T) {
	t.Parallel()

	moment := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period Period
		subdir string
	}{
		{"none", PeriodNone, ""},
		{"yearly", PeriodYearly, "2024"},
		{"monthly", PeriodMonthly, "202403"},
		{"daily", PeriodDaily, "20240315"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			backend, err := NewFileBackend(root, tc.period, testLogger())
			require.NoError(t, err)

			require.NoError(t, backend.Archive(context.Background(), makeRequest("123", moment)))

			dest := filepath.Join(root, tc.subdir, "job.123_script")
			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			require.Equal(t, "#!/bin/bash\nsleep 1\n", string(data))

			env, err := os.ReadFile(filepath.Join(root, tc.subdir, "job.123_environment"))
			require.NoError(t, err)
			require.Equal(t, "PATH=/usr/bin", string(env))
		})
	}
}

func TestFileBackend_RearchivalOverwrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	backend, err := NewFileBackend(root, PeriodNone, testLogger())
	require.NoError(t, err)

	moment := time.Now()

	first := makeRequest("7", moment)
	require.NoError(t, backend.Archive(context.Background(), first))

	second := makeRequest("7", moment)
	second.Job.Files[0].Data = []byte("#!/bin/bash\necho rewritten\n")
	require.NoError(t, backend.Archive(context.Background(), second))

	data, err := os.ReadFile(filepath.Join(root, "job.7_script"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/bash\necho rewritten\n", string(data))
}

func TestNewFileBackend_CreatesMissingRoot(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "archive", "jobs")

	_, err := NewFileBackend(root, PeriodDaily, testLogger())
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewFileBackend_RejectsFileAsRoot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewFileBackend(path, PeriodNone, testLogger())
	require.ErrorIs(t, err, ErrIO)
}
