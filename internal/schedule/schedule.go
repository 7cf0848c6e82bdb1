// Package schedule arms a single-shot timer for the next automatic update
// check. There is no recurring schedule here: after every completed check
// (and every preference change) the owner recomputes, so the timer only ever
// represents the next fire.
package schedule

import (
	"log/slog"
	"sync"
	"time"
)

// Delay computes how long to wait before the next check. A zero lastCheck
// means no check was ever recorded and the next one is due immediately.
// Elapsed time since the last check counts against the interval; the result
// never goes below zero.
func Delay(interval time.Duration, lastCheck time.Time, now time.Time) time.Duration {
	if lastCheck.IsZero() {
		return 0
	}
	d := interval - now.Sub(lastCheck)
	if d < 0 {
		return 0
	}
	return d
}

// Scheduler owns the timer. run is invoked in the timer's goroutine; it is
// the owner's job to make that call safe to block.
type Scheduler struct {
	mu     sync.Mutex
	run    func()
	timer  *time.Timer
	next   time.Time
	armed  bool
	gen    uint64
	logger *slog.Logger
}

func New(run func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{run: run, logger: logger}
}

// Recompute replaces any pending fire with one derived from the current
// preferences. Auto-check off disarms entirely.
func (s *Scheduler) Recompute(autoCheck bool, interval time.Duration, lastCheck time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	if !autoCheck {
		s.logger.Debug("check scheduler disarmed")
		return
	}
	d := Delay(interval, lastCheck, time.Now())
	g := s.gen
	s.next = time.Now().Add(d)
	s.armed = true
	s.timer = time.AfterFunc(d, func() { s.fire(g) })
	s.logger.Debug("check scheduler armed", "delay", d)
}

// Disarm cancels any pending fire.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

// Stop is Disarm under the name shutdown paths expect.
func (s *Scheduler) Stop() { s.Disarm() }

// NextFire reports when the armed timer will fire; ok is false when disarmed
// or already fired.
func (s *Scheduler) NextFire() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.armed
}

// fire runs in the timer goroutine. The generation check discards fires from
// timers that Stop could not cancel in time.
func (s *Scheduler) fire(g uint64) {
	s.mu.Lock()
	if g != s.gen || !s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	run := s.run
	s.mu.Unlock()
	if run != nil {
		run()
	}
}

func (s *Scheduler) stopTimerLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
}
