package connectivity

import (
	"sync"
	"time"
)

// scheduler holds at most one pending retry. Arming an armed scheduler
// restarts it; cancelling an idle one is a no-op.
type scheduler interface {
	Arm()
	Cancel()
	Armed() bool
}

// timerScheduler is a single-shot timer that calls fire once per Arm.
// The callback never re-arms the timer itself.
type timerScheduler struct {
	delay time.Duration
	fire  func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newTimerScheduler(delay time.Duration, fire func()) *timerScheduler {
	return &timerScheduler{delay: delay, fire: fire}
}

func (s *timerScheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		if gen != s.gen {
			// Cancelled or re-armed after this timer was already firing.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		s.fire()
	})
}

func (s *timerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *timerScheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// pollScheduler only remembers that a retry is wanted and when it was
// asked for. The dispatch loop checks Due on every poll tick, so the wait
// always runs from the failure or loss that armed it.
type pollScheduler struct {
	threshold time.Duration
	now       func() time.Time

	mu      sync.Mutex
	armed   bool
	armedAt time.Time
}

func newPollScheduler(threshold time.Duration, now func() time.Time) *pollScheduler {
	return &pollScheduler{threshold: threshold, now: now}
}

func (s *pollScheduler) Arm() {
	s.mu.Lock()
	s.armed = true
	s.armedAt = s.now()
	s.mu.Unlock()
}

func (s *pollScheduler) Cancel() {
	s.mu.Lock()
	s.armed = false
	s.mu.Unlock()
}

func (s *pollScheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Due reports whether an armed retry has waited the threshold since Arm.
func (s *pollScheduler) Due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed && now.Sub(s.armedAt) >= s.threshold
}
