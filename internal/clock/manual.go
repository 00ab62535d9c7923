package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Clock advanced explicitly by tests. Callbacks scheduled with
// AfterFunc run synchronously inside Advance once their deadline is reached.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

type manualTimer struct {
	clock    *Manual
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

// NewManual returns a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clock: m, deadline: m.now.Add(d), f: f}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward and fires every timer whose deadline falls
// within the window, in deadline order. The clock steps to each fired timer's
// deadline before its callback runs, and callbacks run without the clock lock
// held, so a callback scheduling a follow-up timer relative to that instant
// sees it fire in the same call when it also falls within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// nextDue pops the earliest pending timer due at or before target and steps
// the clock to its deadline.
func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := m.pending[:0]
	var due []*manualTimer
	for _, t := range m.pending {
		switch {
		case t.stopped || t.fired:
			// drop
		case !t.deadline.After(target):
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	if len(due) == 0 {
		m.pending = remaining
		return nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	due[0].fired = true
	if due[0].deadline.After(m.now) {
		m.now = due[0].deadline
	}
	m.pending = append(remaining, due[1:]...)
	return due[0]
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
