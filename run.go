package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hpcops/spoolarchive/internal/archive"
	"github.com/hpcops/spoolarchive/internal/config"
	"github.com/hpcops/spoolarchive/internal/lifecycle"
	"github.com/hpcops/spoolarchive/internal/scheduler"
	"github.com/hpcops/spoolarchive/internal/watch"
)

// runDaemon is the root command: resolve configuration, build the pipeline,
// watch until signaled, then drain.
func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	logger, rotator := buildLogger(cfg)

	if cfg.PIDFile != "" {
		cleanup, pidErr := writePIDFile(cfg.PIDFile)
		if pidErr != nil {
			return pidErr
		}
		defer cleanup()
	}

	ctx := context.Background()
	handleSIGHUP(ctx, rotator, logger)

	return runPipeline(ctx, cfg, logger)
}

// runPipeline assembles and runs the watch/dispatch pipeline. Startup is
// all-or-nothing: if any watch target cannot be registered the daemon exits
// non-zero without consuming a single event.
func runPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	lc := lifecycle.NewController(logger)
	// Startup failures jump the state machine straight to Terminated.
	defer lc.Transition(lifecycle.Terminated)

	kind, err := scheduler.ParseKind(cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	sched, err := scheduler.New(kind, cfg.SpoolDir, cfg.TorqueSubdirs)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	targets, err := sched.WatchTargets()
	if err != nil {
		return fmt.Errorf("%w: resolving watch targets: %w", config.ErrConfiguration, err)
	}

	backend, err := archive.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("constructing %s backend: %w", cfg.Backend, err)
	}

	queue := watch.NewQueue(cfg.Queue.Capacity)
	abort := make(chan struct{})

	watchers := make([]*watch.Watcher, 0, len(targets))

	for _, dir := range targets {
		target := watch.Target{Dir: dir, Cluster: cfg.Cluster, Scheduler: sched.Kind()}

		w, watchErr := watch.NewWatcher(target, sched, queue, abort, logger)
		if watchErr != nil {
			backend.Close()

			return watchErr
		}

		watchers = append(watchers, w)
	}

	logger.Info("spoolarchive started",
		slog.String("cluster", cfg.Cluster),
		slog.String("scheduler", string(sched.Kind())),
		slog.String("backend", backend.Name()),
		slog.Int("watchers", len(watchers)),
	)

	lc.Transition(lifecycle.Running)

	// The lifecycle controller is the cancellation primitive: the signal
	// handler moves it to Draining, and the watchers run under a context
	// derived from that transition. dispatchCtx stays live through the
	// graceful drain and cancels only when the grace period expires.
	watchSignals(ctx, lc, logger)
	watchCtx := lc.DrainContext(ctx)
	dispatchCtx, forceStop := context.WithCancel(ctx)
	defer forceStop()

	g, gctx := errgroup.WithContext(watchCtx)
	for _, w := range watchers {
		g.Go(func() error { return w.Run(gctx) })
	}

	dispatcher := watch.NewDispatcher(sched, queue, backend, logger)

	dispatchDone := make(chan error, 1)
	go func() { dispatchDone <- dispatcher.Run(dispatchCtx) }()

	// Block until the first signal (or a watcher failure) ends the watch
	// phase, then drain. The transition is a no-op when the signal handler
	// already moved the controller to Draining.
	watchErr := g.Wait()
	lc.Transition(lifecycle.Draining)

	// Watchers have flushed every observed event; close the queue so the
	// dispatcher exits once it has consumed the backlog.
	queue.Close()

	grace := cfg.GracePeriod()
	graceTimer := time.AfterFunc(grace, func() {
		logger.Error("drain grace period expired, abandoning queued events",
			slog.Duration("grace_period", grace),
			slog.Int("remaining", queue.Len()),
		)
		close(abort)
		forceStop()
	})

	drainErr := <-dispatchDone
	graceTimer.Stop()

	if closeErr := backend.Close(); closeErr != nil {
		logger.Warn("closing backend failed", slog.String("error", closeErr.Error()))
	}

	lc.Transition(lifecycle.Terminated)

	archived, failed := dispatcher.Stats()
	logger.Info("spoolarchive stopped",
		slog.String("state", lc.State().String()),
		slog.Int("archived", archived),
		slog.Int("failed", failed),
	)

	if watchErr != nil {
		return fmt.Errorf("watcher failed: %w", watchErr)
	}

	if drainErr != nil && !errors.Is(drainErr, context.Canceled) {
		return fmt.Errorf("dispatcher failed: %w", drainErr)
	}

	return nil
}
