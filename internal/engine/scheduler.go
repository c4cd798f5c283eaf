package engine

import (
	"sync"
	"time"
)

// DefaultAutosaveDelay is the quiet window between the last committed edit
// and the autosave.
const DefaultAutosaveDelay = 5 * time.Second

// Scheduler is a single-timer debounce.
//
// Every Arm supersedes the previous one; at most one callback is pending.
// A callback whose generation was superseded by a later Arm or Cancel is
// dropped even if the underlying timer already fired.
//
// Thread-safety: Scheduler is safe for concurrent use via internal mutex.
// fire is always called without the mutex held.
type Scheduler struct {
	mu    sync.Mutex
	clock Clock
	delay time.Duration
	fire  func()

	gen  uint64
	stop func() bool
}

// NewScheduler creates a scheduler that calls fire after delay of quiet.
// A non-positive delay falls back to DefaultAutosaveDelay.
func NewScheduler(clock Clock, delay time.Duration, fire func()) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Scheduler{clock: clock, delay: delay, fire: fire}
}

// Arm cancels any pending callback and schedules a fresh one.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.stop = s.clock.AfterFunc(s.delay, func() { s.fired(gen) })
}

// Cancel drops the pending callback, if any, without re-arming.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
}

// Pending reports whether a callback is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Delay returns the quiet window.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

func (s *Scheduler) fired(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.stop = nil
	s.mu.Unlock()

	if s.fire != nil {
		s.fire()
	}
}

// stopLocked stops the current timer. Must hold s.mu.
func (s *Scheduler) stopLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}
