package scheduler

import (
	"sync"
	"time"
)

// Manual is a virtual-clock Scheduler. Nothing runs until Advance or Post is called,
// and everything runs on the calling goroutine, which makes timing deterministic in
// tests.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	tasks   []*manualTask
	posted  []func()
	running bool
}

// NewManual creates a scheduler whose clock starts at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After schedules fn once at Now()+d.
func (m *Manual) After(d time.Duration, fn func()) Task {
	return m.schedule(d, 0, fn)
}

// Every schedules fn at Now()+d and every d after that.
func (m *Manual) Every(d time.Duration, fn func()) Task {
	if d <= 0 {
		d = time.Nanosecond
	}
	return m.schedule(d, d, fn)
}

// Post runs fn immediately, or right after the current callback when called from
// inside one.
func (m *Manual) Post(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	if m.running {
		m.posted = append(m.posted, fn)
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.runAndDrain(fn)
}

// Advance moves the clock forward by d, firing every due task in deadline order.
// Tasks due at the same instant fire in scheduling order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		task := m.nextDueLocked(target)
		if task == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = task.deadline
		if task.period > 0 {
			task.deadline += task.period
		} else {
			task.cancelled = true
			m.removeLocked(task)
		}
		m.running = true
		m.mu.Unlock()

		m.runAndDrain(task.fn)
	}
}

// Pending reports how many scheduled tasks are still live.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// NextDeadline returns the earliest live deadline, or false when nothing is scheduled.
func (m *Manual) NextDeadline() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.nextDueLocked(-1)
	if task == nil {
		return 0, false
	}
	return task.deadline, true
}

func (m *Manual) schedule(d, period time.Duration, fn func()) Task {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	task := &manualTask{
		owner:    m,
		seq:      m.seq,
		deadline: m.now + d,
		period:   period,
		fn:       fn,
	}
	m.tasks = append(m.tasks, task)
	return task
}

// nextDueLocked returns the earliest task due at or before limit. A negative limit
// means no bound.
func (m *Manual) nextDueLocked(limit time.Duration) *manualTask {
	var best *manualTask
	for _, task := range m.tasks {
		if limit >= 0 && task.deadline > limit {
			continue
		}
		if best == nil || task.deadline < best.deadline ||
			(task.deadline == best.deadline && task.seq < best.seq) {
			best = task
		}
	}
	return best
}

func (m *Manual) removeLocked(target *manualTask) {
	for i, task := range m.tasks {
		if task == target {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

func (m *Manual) runAndDrain(fn func()) {
	fn()
	for {
		m.mu.Lock()
		if len(m.posted) == 0 {
			m.running = false
			m.mu.Unlock()
			return
		}
		next := m.posted[0]
		m.posted = m.posted[1:]
		m.mu.Unlock()
		next()
	}
}

type manualTask struct {
	owner     *Manual
	seq       uint64
	deadline  time.Duration
	period    time.Duration
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.owner.removeLocked(t)
}
