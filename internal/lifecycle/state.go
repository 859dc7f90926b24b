// Package lifecycle implements the process-wide daemon state machine.
// The controller is written only from the signal-handling path and read
// by every watcher and the dispatcher, replacing ad hoc shared booleans
// with one atomic value and defined transitions.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is the daemon lifecycle phase. Transitions only move forward:
// Starting -> Running -> Draining -> Terminated.
type State int32

const (
	// Starting covers target resolution, backend construction, and
	// watcher spawn. No events are dispatched yet.
	Starting State = iota
	// Running is normal operation: watchers produce, dispatcher consumes.
	Running
	// Draining is entered on the first termination signal. Watchers stop
	// observing new events; the dispatcher empties the queue.
	Draining
	// Terminated means all goroutines have joined and the backend is closed.
	Terminated
)

// String returns the lowercase state name for logging.
func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Controller holds the single process-wide lifecycle state. Reads are
// lock-free; transitions are serialized so the draining channel is closed
// exactly once.
type Controller struct {
	state  atomic.Int32
	logger *slog.Logger

	mu       sync.Mutex
	draining chan struct{}
}

// NewController creates a Controller in the Starting state.
func NewController(logger *slog.Logger) *Controller {
	c := &Controller{
		logger:   logger,
		draining: make(chan struct{}),
	}
	c.state.Store(int32(Starting))

	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Transition moves the controller to the given state. Only forward
// transitions are accepted; anything else (including a repeated Draining
// request from a second signal) is a no-op returning false.
func (c *Controller) Transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := State(c.state.Load())
	if to <= from {
		c.logger.Debug("lifecycle transition ignored",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)

		return false
	}

	c.state.Store(int32(to))
	c.logger.Info("lifecycle transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	// Jumping straight past Draining (startup failure -> Terminated)
	// still releases waiters.
	if to >= Draining {
		select {
		case <-c.draining:
		default:
			close(c.draining)
		}
	}

	return true
}

// Draining returns a channel that is closed once the controller has
// entered Draining (or a later state). Watchers and the dispatcher select
// on this channel at their blocking points.
func (c *Controller) Draining() <-chan struct{} {
	return c.draining
}

// DrainContext returns a child of parent that is canceled once the
// controller enters Draining. Workers run under this context, so the state
// machine is the single cancellation primitive.
func (c *Controller) DrainContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		select {
		case <-c.draining:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}
