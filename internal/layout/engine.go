// Package layout owns the live targets and nudges them apart so circles do not
// overlap. The force is cosmetic: velocities are heavily damped, bounded and
// discarded once the layout cools down.
package layout

import (
	"math"
	"slices"
	"time"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
)

const (
	alphaMin      = 0.001
	velocityDecay = 0.4
	repelStrength = 0.7
	centerPull    = 0.005
	maxSpeed      = 12.0
	padding       = 4.0
)

// alphaDecay cools the layout from 1 to alphaMin in about 300 frames.
var alphaDecay = 1 - math.Pow(alphaMin, 1.0/300)

// Renderer draws circles keyed by target id. Enter animates the radius from 0
// to full, Exit from full to 0 before dropping the circle.
type Renderer interface {
	Enter(t domain.Target)
	Exit(id uint64)
	Move(id uint64, x, y float64)
	Reset()
}

type Config struct {
	// Loop drives one relaxation step per frame. Without it, call Step.
	Loop          *loop.Loop
	Renderer      Renderer
	Width, Height float64
	Radius        float64
	FrameInterval time.Duration
}

type node struct {
	t      domain.Target
	vx, vy float64
}

// Engine must only be used on the loop.
type Engine struct {
	l      *loop.Loop
	r      Renderer
	width  float64
	height float64
	radius float64
	frame  time.Duration

	nodes    []*node
	index    map[uint64]*node
	rendered map[uint64]struct{}

	alpha  float64
	ticker loop.Timer
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		l:        c.Loop,
		r:        c.Renderer,
		width:    c.Width,
		height:   c.Height,
		radius:   c.Radius,
		frame:    c.FrameInterval,
		index:    make(map[uint64]*node),
		rendered: make(map[uint64]struct{}),
	}
	if e.r == nil {
		e.r = nopRenderer{}
	}
	if e.frame <= 0 {
		e.frame = 16 * time.Millisecond
	}
	return e
}

// AddOrSync adds the targets not yet in the live set and restarts the
// relaxation at full strength so new targets settle quickly.
func (e *Engine) AddOrSync(ts ...domain.Target) {
	for _, t := range ts {
		if _, ok := e.index[t.ID]; ok {
			continue
		}
		t.X = Clamp(t.X, e.radius, e.width-e.radius)
		t.Y = Clamp(t.Y, e.radius, e.height-e.radius)
		n := &node{t: t}
		e.nodes = append(e.nodes, n)
		e.index[t.ID] = n
	}

	e.alpha = 1
	for _, n := range e.nodes {
		n.vx, n.vy = 0, 0
	}
	e.startFrames()
}

// Remove takes a target out of the live set. It reports false if the target
// was already gone, so only the first of several removers wins.
func (e *Engine) Remove(id uint64) (domain.Target, bool) {
	n, ok := e.index[id]
	if !ok {
		return domain.Target{}, false
	}

	delete(e.index, id)
	e.nodes = slices.DeleteFunc(e.nodes, func(m *node) bool { return m == n })
	return n.t, true
}

func (e *Engine) Get(id uint64) (domain.Target, bool) {
	n, ok := e.index[id]
	if !ok {
		return domain.Target{}, false
	}
	return n.t, true
}

func (e *Engine) Contains(id uint64) bool {
	_, ok := e.index[id]
	return ok
}

func (e *Engine) Len() int { return len(e.nodes) }

// Targets returns the live set with current positions, oldest first.
func (e *Engine) Targets() []domain.Target {
	ts := make([]domain.Target, 0, len(e.nodes))
	for _, n := range e.nodes {
		ts = append(ts, n.t)
	}
	return ts
}

// Render reconciles the renderer with the live set by id: new ids enter,
// missing ids exit and the rest are moved without a transition.
func (e *Engine) Render() {
	var exits []uint64
	for id := range e.rendered {
		if _, ok := e.index[id]; !ok {
			exits = append(exits, id)
		}
	}
	slices.Sort(exits)
	for _, id := range exits {
		delete(e.rendered, id)
		e.r.Exit(id)
	}

	for _, n := range e.nodes {
		if _, ok := e.rendered[n.t.ID]; ok {
			e.r.Move(n.t.ID, n.t.X, n.t.Y)
			continue
		}
		e.rendered[n.t.ID] = struct{}{}
		e.r.Enter(n.t)
	}
}

// Clear drops every target and circle without transitions.
func (e *Engine) Clear() {
	e.stopFrames()
	e.nodes = nil
	e.index = make(map[uint64]*node)
	e.rendered = make(map[uint64]struct{})
	e.alpha = 0
	e.r.Reset()
}

// Freeze stops the relaxation frames without cooling the layout, so targets
// hold still until Thaw.
func (e *Engine) Freeze() {
	e.stopFrames()
}

// Thaw restarts the frames a Freeze stopped, if the layout is still warm.
func (e *Engine) Thaw() {
	if e.alpha < alphaMin {
		return
	}
	e.startFrames()
}

// Resize changes the surface and pulls every target back inside it.
func (e *Engine) Resize(width, height float64) {
	e.width, e.height = width, height
	for _, n := range e.nodes {
		n.t.X = Clamp(n.t.X, e.radius, e.width-e.radius)
		n.t.Y = Clamp(n.t.Y, e.radius, e.height-e.radius)
	}
	e.Render()
}

func (e *Engine) Alpha() float64 { return e.alpha }

// Step runs one relaxation frame and reports whether the layout is still warm.
func (e *Engine) Step() bool {
	if e.alpha < alphaMin {
		return false
	}
	e.alpha -= e.alpha * alphaDecay

	e.repel()
	e.pullToCenter()

	for _, n := range e.nodes {
		n.vx *= 1 - velocityDecay
		n.vy *= 1 - velocityDecay
		if s := math.Hypot(n.vx, n.vy); s > maxSpeed {
			n.vx *= maxSpeed / s
			n.vy *= maxSpeed / s
		}

		n.t.X, n.vx = bound(n.t.X+n.vx, n.vx, e.radius, e.width-e.radius)
		n.t.Y, n.vy = bound(n.t.Y+n.vy, n.vy, e.radius, e.height-e.radius)
	}

	return e.alpha >= alphaMin
}

func (e *Engine) repel() {
	minDist := 2*e.radius + padding
	for i, a := range e.nodes {
		for _, b := range e.nodes[i+1:] {
			dx := b.t.X - a.t.X
			dy := b.t.Y - a.t.Y
			d2 := DistanceSquared(a.t.X, a.t.Y, b.t.X, b.t.Y)
			if d2 >= minDist*minDist {
				continue
			}
			if d2 == 0 {
				// Coincident centers: split along x, ordered by id.
				dx = 1e-3
				if b.t.ID < a.t.ID {
					dx = -dx
				}
				d2 = dx * dx
			}

			d := math.Sqrt(d2)
			push := (minDist - d) / d * repelStrength * e.alpha * 0.5
			a.vx -= dx * push
			a.vy -= dy * push
			b.vx += dx * push
			b.vy += dy * push
		}
	}
}

func (e *Engine) pullToCenter() {
	cx, cy := e.width/2, e.height/2
	for _, n := range e.nodes {
		n.vx += (cx - n.t.X) * centerPull * e.alpha
		n.vy += (cy - n.t.Y) * centerPull * e.alpha
	}
}

// bound clamps a coordinate and kills the velocity that pushed it out.
func bound(v, vel, lo, hi float64) (float64, float64) {
	c := Clamp(v, lo, hi)
	if c != v {
		vel = 0
	}
	return c, vel
}

func (e *Engine) startFrames() {
	if e.l == nil || e.ticker != nil {
		return
	}
	e.ticker = e.l.Every(e.frame, func() {
		warm := e.Step()
		e.Render()
		if !warm {
			e.stopFrames()
		}
	})
}

func (e *Engine) stopFrames() {
	if e.ticker == nil {
		return
	}
	e.ticker.Stop()
	e.ticker = nil
}

type nopRenderer struct{}

func (nopRenderer) Enter(domain.Target)           {}
func (nopRenderer) Exit(uint64)                   {}
func (nopRenderer) Move(uint64, float64, float64) {}
func (nopRenderer) Reset()                        {}
