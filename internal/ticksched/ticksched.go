// Package ticksched is a deterministic one-shot task scheduler driven by
// explicit Advance calls. There are no background goroutines or timers: due
// callbacks fire synchronously inside Advance, on the caller's goroutine.
package ticksched

import (
	"sort"
	"time"
)

// Task is a one-shot callback armed with Schedule.
type Task func()

type entry struct {
	due  time.Duration // absolute position on the scheduler's internal clock
	seq  uint64        // tie-breaker: preserve arming order for equal due times
	task Task
}

// Scheduler accumulates elapsed time and fires armed callbacks once their
// delay has passed. Not safe for concurrent use; the owner must call
// Schedule, Advance and CancelAll from a single goroutine.
type Scheduler struct {
	clock   time.Duration
	seq     uint64
	entries []entry
}

func New() *Scheduler {
	return &Scheduler{}
}

// Schedule arms fn to run no earlier than delay after the current scheduler
// time. A non-positive delay fires on the next Advance call.
func (s *Scheduler) Schedule(delay time.Duration, fn Task) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	s.entries = append(s.entries, entry{due: s.clock + delay, seq: s.seq, task: fn})
}

// Advance moves the scheduler clock forward and synchronously fires every
// callback that has become due, in due order. Callbacks may call Schedule;
// work armed during Advance only fires in this call if its delay was zero
// and the clock has already passed its due point.
func (s *Scheduler) Advance(elapsed time.Duration) {
	if elapsed < 0 {
		return
	}
	s.clock += elapsed

	for {
		idx := s.nextDue()
		if idx < 0 {
			return
		}
		e := s.entries[idx]
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
		e.task()
	}
}

// CancelAll removes every pending callback unconditionally.
func (s *Scheduler) CancelAll() {
	s.entries = s.entries[:0]
}

// Pending returns the number of armed callbacks.
func (s *Scheduler) Pending() int {
	return len(s.entries)
}

// nextDue returns the index of the earliest due entry, or -1 if none is due.
func (s *Scheduler) nextDue() int {
	idx := -1
	for i, e := range s.entries {
		if e.due > s.clock {
			continue
		}
		if idx < 0 || less(e, s.entries[idx]) {
			idx = i
		}
	}
	return idx
}

func less(a, b entry) bool {
	if a.due != b.due {
		return a.due < b.due
	}
	return a.seq < b.seq
}

// sortedPending returns pending due offsets relative to the current clock,
// earliest first. Used by tests and state snapshots.
func (s *Scheduler) sortedPending() []time.Duration {
	out := make([]time.Duration, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.due-s.clock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NextDelay reports the delay until the earliest pending callback, and
// whether one exists.
func (s *Scheduler) NextDelay() (time.Duration, bool) {
	ds := s.sortedPending()
	if len(ds) == 0 {
		return 0, false
	}
	d := ds[0]
	if d < 0 {
		d = 0
	}
	return d, true
}
