// Package looptest provides a manually advanced loop.Scheduler.
package looptest

import (
	"sync"
	"time"

	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
)

// Scheduler only fires callbacks from Advance, on the caller's goroutine, in
// deadline order (ties in scheduling order).
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*timer
}

var _ loop.Scheduler = (*Scheduler)(nil)

func New(start time.Time) *Scheduler {
	return &Scheduler{now: start}
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) loop.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d < 0 {
		d = 0
	}
	s.seq++
	t := &timer{s: s, at: s.now.Add(d), seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every callback that falls due.
// Callbacks scheduled while advancing fire too if they fall inside d.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	end := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.popDue(end)
		if next == nil {
			s.now = end
			s.mu.Unlock()
			return
		}
		s.now = next.at
		s.mu.Unlock()

		next.f()
	}
}

// Pending reports how many callbacks are still scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) popDue(end time.Time) *timer {
	idx := -1
	for i, t := range s.timers {
		if t.at.After(end) {
			continue
		}
		if idx < 0 || t.at.Before(s.timers[idx].at) || (t.at.Equal(s.timers[idx].at) && t.seq < s.timers[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}

	t := s.timers[idx]
	s.timers = append(s.timers[:idx], s.timers[idx+1:]...)
	return t
}

type timer struct {
	s   *Scheduler
	at  time.Time
	seq uint64
	f   func()
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for i, p := range t.s.timers {
		if p == t {
			t.s.timers = append(t.s.timers[:i], t.s.timers[i+1:]...)
			return true
		}
	}
	return false
}
