package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrLoopAlreadyRunning is returned when Run is called on a running loop.
	ErrLoopAlreadyRunning = errors.New("scheduler loop: already running")
)

// Loop is a single-goroutine event loop. Timers fire on runtime goroutines and only
// post their callbacks; the callbacks themselves run inside Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running bool
	stopped bool
}

// NewLoop creates an idle loop. Callbacks posted before Run are kept until Run starts.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Run executes posted callbacks until ctx is cancelled. Callbacks still queued when
// ctx ends are dropped and later posts are ignored.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Post queues fn. It never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After schedules fn once after d.
func (l *Loop) After(d time.Duration, fn func()) Task {
	task := &loopTask{}
	task.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if task.cancelled.Load() {
				return
			}
			task.cancelled.Store(true)
			fn()
		})
	})
	return task
}

// Every schedules fn every d until cancelled.
func (l *Loop) Every(d time.Duration, fn func()) Task {
	task := &loopTask{stop: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-task.stop:
				return
			case <-ticker.C:
				l.Post(func() {
					if task.cancelled.Load() {
						return
					}
					fn()
				})
			}
		}
	}()
	return task
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

type loopTask struct {
	timer     *time.Timer
	stop      chan struct{}
	stopOnce  sync.Once
	cancelled atomic.Bool
}

func (t *loopTask) Cancel() {
	t.cancelled.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.stop != nil {
		t.stopOnce.Do(func() {
			close(t.stop)
		})
	}
}
