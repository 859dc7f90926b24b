package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpcops/spoolarchive/internal/archive"
	"github.com/hpcops/spoolarchive/internal/scheduler"
)

const (
	// settleDelay gives the scheduler time to finish writing the spool
	// files after the create notification, before collection starts.
	defaultSettleDelay = 2 * time.Second
	// dedupWindow: a second event for the same path and kind inside this
	// window is trivially redundant (e.g. create + immediate write of the
	// same job entry observed as two raw notifications).
	defaultDedupWindow = 500 * time.Millisecond
)

// Dispatcher is the queue's single consumer. It collects the job payload
// for each event and invokes the backend synchronously, one event at a
// time — at most one archival operation is ever in flight, so backends
// need no internal concurrency control.
type Dispatcher struct {
	sched   scheduler.Scheduler
	queue   *Queue
	backend archive.Backend
	logger  *slog.Logger

	settleDelay time.Duration
	dedupWindow time.Duration

	// last dispatched event, for trivial duplicate suppression.
	lastPath   string
	lastKind   EventKind
	lastMoment time.Time

	archived int
	failed   int
}

// NewDispatcher creates a dispatcher. Run must be called exactly once.
func NewDispatcher(
	sched scheduler.Scheduler, queue *Queue, backend archive.Backend, logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sched:       sched,
		queue:       queue,
		backend:     backend,
		logger:      logger.With(slog.String("backend", backend.Name())),
		settleDelay: defaultSettleDelay,
		dedupWindow: defaultDedupWindow,
	}
}

// Run consumes events until the queue is closed and empty. ctx is the
// forced-shutdown context: during a graceful drain it stays live, so every
// queued event is archived (or individually logged as failed) before Run
// returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.logger.Warn("dispatcher force-stopped, queued events lost",
				slog.Int("remaining", d.queue.Len()),
			)

			return ctx.Err()

		case ev, ok := <-d.queue.Events():
			if !ok {
				d.logger.Info("event queue drained, dispatcher exiting",
					slog.Int("archived", d.archived),
					slog.Int("failed", d.failed),
				)

				return nil
			}

			d.dispatch(ctx, ev)
		}
	}
}

// dispatch handles one event end to end. Failures are isolated: they are
// logged with full event context and never stop the loop, because losing
// one event must not cascade into losing all subsequent ones.
func (d *Dispatcher) dispatch(ctx context.Context, ev JobEvent) {
	if d.redundant(ev) {
		d.logger.Debug("dropping redundant event",
			slog.String("path", ev.Path),
			slog.String("kind", string(ev.Kind)),
		)

		return
	}

	d.remember(ev)

	// Removed entries have no payload left to read. The scheduler purged
	// the job before we got to it — nothing to archive.
	if ev.Kind == EventRemoved {
		d.logger.Debug("job entry removed before archival",
			slog.String("path", ev.Path))

		return
	}

	d.settle(ctx, ev)

	job, err := d.sched.CollectJob(ctx, ev.Path)
	if err != nil {
		d.failed++
		d.logger.Warn("collecting job payload failed",
			slog.String("event_id", ev.ID.String()),
			slog.String("path", ev.Path),
			slog.String("cluster", ev.Cluster),
			slog.String("error", err.Error()),
		)

		return
	}

	req := &archive.Request{
		EventID:   ev.ID.String(),
		Cluster:   ev.Cluster,
		Scheduler: ev.Scheduler,
		Path:      ev.Path,
		EventKind: string(ev.Kind),
		Moment:    ev.Moment,
		Job:       job,
	}

	if err := d.backend.Archive(ctx, req); err != nil {
		d.failed++
		d.logger.Error("archival failed",
			slog.String("event_id", ev.ID.String()),
			slog.String("job_id", job.ID),
			slog.String("path", ev.Path),
			slog.String("cluster", ev.Cluster),
			slog.Time("moment", ev.Moment),
			slog.String("error", err.Error()),
		)

		return
	}

	d.archived++
	d.logger.Info("archived job",
		slog.String("job_id", job.ID),
		slog.String("cluster", ev.Cluster),
		slog.String("kind", string(ev.Kind)),
	)
}

// redundant reports whether ev duplicates the previously dispatched event
// within the dedup window.
func (d *Dispatcher) redundant(ev JobEvent) bool {
	return ev.Path == d.lastPath &&
		ev.Kind == d.lastKind &&
		ev.Moment.Sub(d.lastMoment) <= d.dedupWindow
}

func (d *Dispatcher) remember(ev JobEvent) {
	d.lastPath = ev.Path
	d.lastKind = ev.Kind
	d.lastMoment = ev.Moment
}

// settle waits out the remainder of the settle delay since the event was
// observed, so the scheduler has finished writing the spool files.
// Interruptible by forced shutdown only.
func (d *Dispatcher) settle(ctx context.Context, ev JobEvent) {
	remaining := d.settleDelay - time.Since(ev.Moment)
	if remaining <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(remaining):
	}
}

// Stats returns archived/failed counters, for the final drain log line.
func (d *Dispatcher) Stats() (archived, failed int) {
	return d.archived, d.failed
}
