package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hpcops/spoolarchive/internal/lifecycle"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// A single SIGINT per test binary: a second delivery would look like the
// force-exit signal to the handler spawned here.
func TestWatchSignals_FirstSignalEntersDraining(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc := lifecycle.NewController(quietLogger())
	lc.Transition(lifecycle.Running)

	watchSignals(parent, lc, quietLogger())
	workerCtx := lc.DrainContext(parent)

	// Send SIGINT to ourselves.
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))

	select {
	case <-lc.Draining():
		require.Equal(t, lifecycle.Draining, lc.State())
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not enter Draining within 2 seconds of SIGINT")
	}

	// The signal-driven transition cancels the worker context.
	select {
	case <-workerCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker context not canceled after Draining transition")
	}
}

func TestHandleSIGHUP_RotatesLogFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rotator := &lumberjack.Logger{Filename: filepath.Join(dir, "spoolarchive.log")}

	_, err := rotator.Write([]byte("before rotation\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handleSIGHUP(ctx, rotator, quietLogger())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	// Rotation renames the live file to a timestamped backup.
	require.Eventually(t, func() bool {
		entries, readErr := os.ReadDir(dir)
		return readErr == nil && len(entries) >= 2
	}, 5*time.Second, 50*time.Millisecond, "no backup file after SIGHUP")
}
