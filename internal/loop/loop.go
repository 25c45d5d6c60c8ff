// Package loop runs timer callbacks and external input one at a time, the way
// a single-threaded event loop would.
package loop

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Scheduler fires callbacks after a delay. Callbacks may run on any goroutine.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

// RealScheduler is backed by the time package.
func RealScheduler() Scheduler { return realScheduler{} }

func (realScheduler) Now() time.Time { return time.Now() }

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Loop serializes callbacks so at most one runs at a time. Everything that
// mutates session state must run inside Do, directly or through a timer
// created by After or Every.
type Loop struct {
	mu sync.Mutex
	s  Scheduler
}

func New(s Scheduler) *Loop {
	return &Loop{s: s}
}

// Do runs f on the loop. A panic in f is logged and swallowed. Do must not be
// called from inside another loop callback.
func (l *Loop) Do(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("loop: callback panic",
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	f()
}

func (l *Loop) Now() time.Time {
	return l.s.Now()
}

// After runs f on the loop once, after d.
func (l *Loop) After(d time.Duration, f func()) Timer {
	return l.s.AfterFunc(d, func() { l.Do(f) })
}

// Every runs f on the loop every d until the returned timer is stopped. No
// call of f starts after Stop returns, provided Stop is called on the loop.
func (l *Loop) Every(d time.Duration, f func()) Timer {
	r := &repeater{l: l, d: d, f: f}

	r.mu.Lock()
	r.t = l.s.AfterFunc(d, r.fire)
	r.mu.Unlock()

	return r
}

type repeater struct {
	l *Loop
	d time.Duration
	f func()

	mu      sync.Mutex
	t       Timer
	stopped bool
}

func (r *repeater) fire() {
	r.l.Do(func() {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}
		r.t = r.l.s.AfterFunc(r.d, r.fire)
		r.mu.Unlock()

		r.f()
	})
}

func (r *repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return false
	}
	r.stopped = true
	r.t.Stop()
	return true
}
