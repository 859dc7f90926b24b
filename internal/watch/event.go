// Package watch implements the directory-watch / event-dispatch pipeline:
// one fsnotify watcher goroutine per spool directory, a bounded
// multi-producer single-consumer queue, and a single dispatcher that hands
// each observed job to the configured archival backend.
package watch

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/hpcops/spoolarchive/internal/scheduler"
)

// EventKind classifies the filesystem change that produced a JobEvent.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventModified  EventKind = "modified"
	EventRemoved   EventKind = "removed"
	EventRenamedTo EventKind = "renamed-to"
)

// Target is one spool directory a watcher subscribes to. Immutable; owned
// by its watcher goroutine for the watcher's lifetime.
type Target struct {
	Dir       string
	Cluster   string
	Scheduler scheduler.Kind
}

// JobEvent is the unit flowing through the pipeline. It is immutable once
// constructed and moves (never shared) from watcher to queue to dispatcher
// to backend.
type JobEvent struct {
	// ID uniquely identifies this observation, for log correlation.
	ID uuid.UUID
	// Path is the absolute spool path the event refers to.
	Path string
	// Kind is the observed change.
	Kind EventKind
	// Moment is the wall-clock observation time.
	Moment time.Time
	// Cluster is the operator-supplied scheduler instance name.
	Cluster string
	// Scheduler is the configured scheduler kind.
	Scheduler scheduler.Kind
}

// classifyOp maps a raw fsnotify op onto an EventKind. Chmod-only events
// carry no archival signal and map to false.
func classifyOp(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreated, true
	case op.Has(fsnotify.Write):
		return EventModified, true
	case op.Has(fsnotify.Remove):
		return EventRemoved, true
	case op.Has(fsnotify.Rename):
		return EventRenamedTo, true
	default:
		return "", false
	}
}
