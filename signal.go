package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hpcops/spoolarchive/internal/lifecycle"
)

// watchSignals moves the lifecycle controller to Draining on the first
// SIGINT/SIGTERM and force-exits on the second. The first signal starts the
// graceful drain; the second is the operator saying the drain hung.
func watchSignals(ctx context.Context, lc *lifecycle.Controller, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, draining before shutdown",
				slog.String("signal", sig.String()),
			)
			lc.Transition(lifecycle.Draining)
		case <-ctx.Done():
			return
		}

		// Wait for second signal — force exit.
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-ctx.Done():
			return
		}
	}()
}

// handleSIGHUP reopens the log file on SIGHUP until ctx is canceled. No-op
// when logging to stderr.
func handleSIGHUP(ctx context.Context, rotator *lumberjack.Logger, logger *slog.Logger) {
	if rotator == nil {
		return
	}

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hupCh)

		for {
			select {
			case <-hupCh:
				if err := rotator.Rotate(); err != nil {
					logger.Error("rotating log file failed",
						slog.String("error", err.Error()))
				} else {
					logger.Info("log file rotated")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
