// Package scene is a headless render target. It keeps the circles a client
// should draw, including the ones still growing in or shrinking out.
package scene

import (
	"slices"
	"sync"
	"time"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/layout"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
)

const (
	DefaultEnterDuration = 300 * time.Millisecond
	DefaultExitDuration  = 200 * time.Millisecond
)

type Phase string

const (
	PhaseEntering Phase = "entering"
	PhaseSteady   Phase = "steady"
	PhaseExiting  Phase = "exiting"
)

// Circle is what a client draws for one target at a point in time.
type Circle struct {
	ID     uint64       `json:"id"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Radius float64      `json:"r"`
	Kind   domain.Kind  `json:"kind"`
	Color  domain.Color `json:"color"`
	Phase  Phase        `json:"phase"`
}

type Config struct {
	Loop          *loop.Loop
	Radius        float64
	EnterDuration time.Duration
	ExitDuration  time.Duration
}

type circle struct {
	Circle
	since time.Time
	timer loop.Timer
}

// Scene implements layout.Renderer. Mutations happen on the loop; Circles may
// be called from any goroutine.
type Scene struct {
	l      *loop.Loop
	radius float64
	enter  time.Duration
	exit   time.Duration

	mu      sync.RWMutex
	circles map[uint64]*circle
}

var _ layout.Renderer = (*Scene)(nil)

func New(c Config) *Scene {
	s := &Scene{
		l:       c.Loop,
		radius:  c.Radius,
		enter:   c.EnterDuration,
		exit:    c.ExitDuration,
		circles: make(map[uint64]*circle),
	}
	if s.enter <= 0 {
		s.enter = DefaultEnterDuration
	}
	if s.exit <= 0 {
		s.exit = DefaultExitDuration
	}
	return s
}

func (s *Scene) Enter(t domain.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.circles[t.ID]; ok {
		old.timer.Stop()
	}

	c := &circle{
		Circle: Circle{ID: t.ID, X: t.X, Y: t.Y, Kind: t.Kind, Color: t.Color, Phase: PhaseEntering},
		since:  s.l.Now(),
	}
	c.timer = s.l.After(s.enter, func() { s.settle(c) })
	s.circles[t.ID] = c
}

func (s *Scene) Exit(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.circles[id]
	if !ok || c.Phase == PhaseExiting {
		return
	}

	c.timer.Stop()
	c.Phase = PhaseExiting
	c.since = s.l.Now()
	c.timer = s.l.After(s.exit, func() { s.drop(c) })
}

func (s *Scene) Move(id uint64, x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.circles[id]; ok {
		c.X, c.Y = x, y
	}
}

func (s *Scene) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.circles {
		c.timer.Stop()
	}
	s.circles = make(map[uint64]*circle)
}

// Circles returns every visible circle ordered by id, with radii interpolated
// to the current time.
func (s *Scene) Circles() []Circle {
	now := s.l.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Circle, 0, len(s.circles))
	for _, c := range s.circles {
		cc := c.Circle
		cc.Radius = s.radiusAt(c, now)
		out = append(out, cc)
	}
	slices.SortFunc(out, func(a, b Circle) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

func (s *Scene) radiusAt(c *circle, now time.Time) float64 {
	elapsed := now.Sub(c.since)
	switch c.Phase {
	case PhaseEntering:
		return s.radius * progress(elapsed, s.enter)
	case PhaseExiting:
		return s.radius * (1 - progress(elapsed, s.exit))
	default:
		return s.radius
	}
}

func progress(elapsed, total time.Duration) float64 {
	if elapsed >= total {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(elapsed) / float64(total)
}

func (s *Scene) settle(c *circle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.circles[c.ID] == c && c.Phase == PhaseEntering {
		c.Phase = PhaseSteady
	}
}

func (s *Scene) drop(c *circle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.circles[c.ID] == c {
		delete(s.circles, c.ID)
	}
}
