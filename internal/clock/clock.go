package clock

import (
	"context"
	"time"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
)

const (
	countdownInterval = time.Second
	minSpawnInterval  = 10 * time.Millisecond
)

// Clock owns the countdown and spawn timers of a session. They always start
// and stop together. All methods must be called on the loop.
type Clock struct {
	l  *loop.Loop
	eb *event.Bus

	// gen invalidates callbacks from timers that were stopped or replaced.
	gen        uint64
	running    bool
	remaining  int
	spawnEvery time.Duration

	// Next due times while running, and what was left of the current
	// periods when stopped. Resume picks up mid-period.
	countdownDue, spawnDue   time.Time
	countdownLeft, spawnLeft time.Duration

	countdown loop.Timer
	spawn     loop.Timer
}

func New(l *loop.Loop, eb *event.Bus) *Clock {
	return &Clock{l: l, eb: eb}
}

// Start cancels any running timers, then counts down durationSeconds and
// requests a spawn every spawnInterval.
func (c *Clock) Start(ctx context.Context, durationSeconds int, spawnInterval time.Duration) {
	c.Stop()
	if spawnInterval < minSpawnInterval {
		spawnInterval = minSpawnInterval
	}
	c.remaining = durationSeconds
	c.spawnEvery = spawnInterval
	c.countdownLeft = countdownInterval
	c.spawnLeft = spawnInterval
	c.run(ctx)
}

// Resume restarts the timers where Stop left them, so a stop partway through
// a second or a spawn interval does not lose that part. It does nothing if
// the clock is running or has run out.
func (c *Clock) Resume(ctx context.Context) {
	if c.running || c.remaining <= 0 {
		return
	}
	c.run(ctx)
}

func (c *Clock) run(ctx context.Context) {
	c.gen++
	gen := c.gen
	c.running = true

	now := c.l.Now()
	c.countdownDue = now.Add(c.countdownLeft)
	c.spawnDue = now.Add(c.spawnLeft)

	c.countdown = c.every(gen, c.countdownLeft, countdownInterval,
		func(t loop.Timer) { c.countdown = t },
		func() { c.tick(ctx, gen) })
	c.spawn = c.every(gen, c.spawnLeft, c.spawnEvery,
		func(t loop.Timer) { c.spawn = t },
		func() { c.requestSpawn(ctx, gen) })
}

// every runs f after first and then every period. When first is shorter
// than period the one-shot timer hands over to a repeating one via swap.
func (c *Clock) every(gen uint64, first, period time.Duration, swap func(loop.Timer), f func()) loop.Timer {
	if first >= period {
		return c.l.Every(period, f)
	}
	return c.l.After(first, func() {
		if gen != c.gen {
			return
		}
		swap(c.l.Every(period, f))
		f()
	})
}

// Stop cancels both timers. Remaining time, including the unelapsed part of
// the current second and spawn interval, is kept for Resume.
func (c *Clock) Stop() {
	if !c.running {
		return
	}
	c.running = false
	c.gen++
	c.countdown.Stop()
	c.spawn.Stop()

	now := c.l.Now()
	c.countdownLeft = max(c.countdownDue.Sub(now), 0)
	c.spawnLeft = max(c.spawnDue.Sub(now), 0)
}

func (c *Clock) Running() bool  { return c.running }
func (c *Clock) Remaining() int { return c.remaining }

func (c *Clock) tick(ctx context.Context, gen uint64) {
	if gen != c.gen || !c.running {
		return
	}

	c.countdownDue = c.l.Now().Add(countdownInterval)
	c.remaining--
	c.eb.Publish(ctx, domain.EventTimerTicked{Remaining: c.remaining})
	if c.remaining <= 0 {
		c.remaining = 0
		c.Stop()
		c.eb.Publish(ctx, domain.EventTimerEnded{})
	}
}

func (c *Clock) requestSpawn(ctx context.Context, gen uint64) {
	if gen != c.gen || !c.running {
		return
	}
	c.spawnDue = c.l.Now().Add(c.spawnEvery)
	c.eb.Publish(ctx, domain.EventSpawnRequested{})
}
