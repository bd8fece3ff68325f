// Package scheduler provides the run-to-completion task primitives the watchdog is
// driven by: a delayed task, a repeating task and a posted callback. Every callback a
// Scheduler runs executes on one logical thread, so callers never need their own locks
// for state touched only from scheduled callbacks.
package scheduler

import "time"

// Task is a handle to a scheduled callback.
type Task interface {
	// Cancel stops the task. It is safe to call more than once and after the task
	// has already fired. A task cancelled after its timer expired but before its
	// callback ran never runs.
	Cancel()
}

// Scheduler runs callbacks serially.
type Scheduler interface {
	// After runs fn once, d from now.
	After(d time.Duration, fn func()) Task
	// Every runs fn every d until cancelled. The first run happens d from now.
	Every(d time.Duration, fn func()) Task
	// Post queues fn to run as soon as the scheduler is free.
	Post(fn func())
}

// Cancel cancels task when it is non-nil.
func Cancel(task Task) {
	if task != nil {
		task.Cancel()
	}
}
