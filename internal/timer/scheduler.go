// Package timer provides the cooperative timer service the alarm logic runs on.
//
// Timers live in a deadline-sorted linked list. Start, Restart, Stop and Post
// may be called from any goroutine (GPIO edge callbacks included); handlers
// only ever run from Dispatch, on the main loop, one at a time.
package timer

import (
	"context"
	"sync"
	"time"
)

// Mode selects one-shot or periodic behaviour.
type Mode int

const (
	OneShot Mode = iota
	Periodic
)

// minInterval keeps a periodic timer from re-firing inside the same dispatch forever.
const minInterval = time.Millisecond

// Timer is a scheduled callback. Configure Interval, Mode and Handler before
// handing it to a Scheduler; Interval may be changed while the timer is stopped
// or just before a Restart.
type Timer struct {
	Interval time.Duration
	Mode     Mode
	Handler  func()

	deadline time.Time
	next     *Timer
	active   bool
}

// Scheduler dispatches timers and posted closures.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	head   *Timer
	posted []func()
	wake   chan struct{}

	dispatching bool
	cursor      time.Time
}

// NewScheduler creates a Scheduler reading time from clock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

// Now returns the scheduler's notion of the current time. While a handler is
// running this is the deadline it fired at.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base()
}

// Start schedules t one interval from now. Starting a running timer does nothing.
func (s *Scheduler) Start(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.active {
		return
	}
	s.place(t, s.base().Add(interval(t)))
}

// Restart cancels t if it is pending and schedules it one interval from now.
func (s *Scheduler) Restart(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(t)
	s.place(t, s.base().Add(interval(t)))
}

// Stop cancels t. Stopping a stopped timer is a no-op.
func (s *Scheduler) Stop(t *Timer) {
	s.mu.Lock()
	s.remove(t)
	s.mu.Unlock()
}

// Running reports whether t is pending.
func (s *Scheduler) Running(t *Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.active
}

// Post queues fn to run on the main loop during the next Dispatch.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Call posts fn and waits until the main loop has run it.
func (s *Scheduler) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	s.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wake is signalled whenever Post queues work.
func (s *Scheduler) Wake() <-chan struct{} {
	return s.wake
}

// Next returns the earliest pending deadline.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		return time.Time{}, false
	}
	return s.head.deadline, true
}

// Dispatch runs queued closures, then every timer whose deadline has passed,
// in deadline order. Periodic timers are rescheduled before their handler runs.
// Must only be called from the main loop.
func (s *Scheduler) Dispatch() {
	now := s.clock.Now()

	s.mu.Lock()
	s.dispatching = true
	s.cursor = now
	fns := s.posted
	s.posted = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}

	for {
		s.mu.Lock()
		t := s.head
		if t == nil || t.deadline.After(now) {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		s.head = t.next
		t.next = nil
		t.active = false
		s.cursor = t.deadline
		if t.Mode == Periodic {
			s.place(t, t.deadline.Add(interval(t)))
		}
		s.mu.Unlock()

		if t.Handler != nil {
			t.Handler()
		}
	}
}

// base is the reference point for new deadlines. Caller holds mu.
func (s *Scheduler) base() time.Time {
	if s.dispatching {
		return s.cursor
	}
	return s.clock.Now()
}

// place inserts t sorted by deadline, after any timer with an equal deadline.
// Caller holds mu.
func (s *Scheduler) place(t *Timer, deadline time.Time) {
	t.deadline = deadline
	t.active = true

	if s.head == nil || deadline.Before(s.head.deadline) {
		t.next = s.head
		s.head = t
		return
	}

	cur := s.head
	for cur.next != nil && !deadline.Before(cur.next.deadline) {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

// remove unlinks t if present. Caller holds mu.
func (s *Scheduler) remove(t *Timer) {
	if !t.active {
		return
	}
	t.active = false

	if s.head == t {
		s.head = t.next
		t.next = nil
		return
	}
	for cur := s.head; cur != nil; cur = cur.next {
		if cur.next == t {
			cur.next = t.next
			t.next = nil
			return
		}
	}
}

func interval(t *Timer) time.Duration {
	if t.Mode == Periodic && t.Interval < minInterval {
		return minInterval
	}
	return t.Interval
}
