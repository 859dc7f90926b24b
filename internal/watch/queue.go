package watch

import (
	"errors"
	"time"
)

// ErrQueueAborted is returned by Enqueue when the abort channel closes
// while the queue is full — only a forced shutdown abandons an observed
// event.
var ErrQueueAborted = errors.New("watch: enqueue aborted by shutdown")

// enqueueRetryInterval is how long a producer waits on a full queue before
// rechecking the abort channel. Short enough that a blocked watcher stays
// responsive to a forced shutdown.
const enqueueRetryInterval = 250 * time.Millisecond

// Queue is the bounded multi-producer single-consumer channel connecting
// watchers to the dispatcher. Events from the same producer keep their
// order; interleaving across producers is unspecified.
type Queue struct {
	ch chan JobEvent
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan JobEvent, capacity)}
}

// Enqueue adds an event, blocking under backpressure with a
// timeout-and-recheck loop: losing an already-observed event is strictly
// worse than brief producer stalls, so only the abort channel (forced
// shutdown) interrupts the wait.
func (q *Queue) Enqueue(ev JobEvent, abort <-chan struct{}) error {
	for {
		select {
		case q.ch <- ev:
			return nil
		case <-abort:
			return ErrQueueAborted
		case <-time.After(enqueueRetryInterval):
			// Full queue — recheck abort and try again.
		}
	}
}

// Events returns the consumer side. The channel yields events until the
// queue is closed and drained.
func (q *Queue) Events() <-chan JobEvent {
	return q.ch
}

// Len reports the number of queued events, for drain logging.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close marks the producer side finished. Must be called exactly once,
// after every watcher has exited.
func (q *Queue) Close() {
	close(q.ch)
}
