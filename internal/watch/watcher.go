package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/hpcops/spoolarchive/internal/scheduler"
)

// Backoff bounds for the fsnotify error channel. Sustained errors (kernel
// notification queue overflow under load) must not spin the loop.
const (
	watchErrInitBackoff = 100 * time.Millisecond
	watchErrMaxBackoff  = 5 * time.Second
	watchErrBackoffMult = 2
)

// FsWatcher is the subset of *fsnotify.Watcher the watch loop needs,
// extracted so tests can inject events and errors.
type FsWatcher interface {
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// fsnotifyWatcher adapts *fsnotify.Watcher to FsWatcher.
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }

// Watcher owns one non-recursive filesystem subscription on one spool
// directory and translates raw notifications into JobEvents on the shared
// queue. Registration happens in NewWatcher so that a failure on any
// directory aborts startup before any watcher consumes events.
type Watcher struct {
	target Target
	sched  scheduler.Scheduler
	queue  *Queue
	fsw    FsWatcher
	// abort releases a blocked enqueue on forced shutdown.
	abort  <-chan struct{}
	logger *slog.Logger
}

// NewWatcher registers a watch on the target directory. A registration
// failure (missing directory, permissions) is fatal — a partially watched
// spool silently loses archival coverage.
func NewWatcher(
	target Target, sched scheduler.Scheduler, queue *Queue,
	abort <-chan struct{}, logger *slog.Logger,
) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher for %s: %w", target.Dir, err)
	}

	if err := fsw.Add(target.Dir); err != nil {
		fsw.Close()

		return nil, fmt.Errorf("watch: registering watch on %s: %w", target.Dir, err)
	}

	return &Watcher{
		target: target,
		sched:  sched,
		queue:  queue,
		fsw:    &fsnotifyWatcher{w: fsw},
		abort:  abort,
		logger: logger.With(slog.String("dir", target.Dir)),
	}, nil
}

// Run is the watcher's main loop. It exits when ctx is canceled (drain) or
// the fsnotify channels close. Because each raw notification is enqueued
// synchronously before the next select, every observed event is flushed to
// the queue before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	w.logger.Info("watching spool directory")

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopped watching spool directory")
			return nil

		case fsEvent, ok := <-w.fsw.Events():
			if !ok {
				return nil
			}

			if err := w.handleFsEvent(fsEvent); err != nil {
				return err
			}

			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-w.fsw.Errors():
			if !ok {
				return nil
			}

			// Overflow means the kernel dropped raw events. No per-event
			// reconciliation is attempted — an accepted, logged degradation.
			w.logger.Warn("filesystem watcher error, events may have been dropped",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errBackoff):
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}
		}
	}
}

// handleFsEvent classifies one raw notification and enqueues the resulting
// JobEvent. Irrelevant paths (scheduler housekeeping files) are dropped
// here so the queue only ever carries archivable work.
func (w *Watcher) handleFsEvent(fsEvent fsnotify.Event) error {
	kind, ok := classifyOp(fsEvent.Op)
	if !ok {
		return nil
	}

	if !w.sched.Relevant(fsEvent.Name) {
		w.logger.Debug("ignoring irrelevant spool entry",
			slog.String("path", fsEvent.Name),
			slog.String("kind", string(kind)),
		)

		return nil
	}

	ev := JobEvent{
		ID:        uuid.New(),
		Path:      fsEvent.Name,
		Kind:      kind,
		Moment:    time.Now(),
		Cluster:   w.target.Cluster,
		Scheduler: w.target.Scheduler,
	}

	w.logger.Debug("queueing job event",
		slog.String("event_id", ev.ID.String()),
		slog.String("path", ev.Path),
		slog.String("kind", string(ev.Kind)),
	)

	return w.queue.Enqueue(ev, w.abort)
}
