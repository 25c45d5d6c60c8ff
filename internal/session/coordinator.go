// Package session runs one aim trainer session at a time. It wires the state
// machine, clock, target factory, layout and stats together and is the only
// thing callers outside the engine talk to.
package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeadstarlingX/Aim-Trainer/internal/clock"
	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/layout"
	"github.com/LeadstarlingX/Aim-Trainer/internal/leaderboard"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
	"github.com/LeadstarlingX/Aim-Trainer/internal/scene"
	"github.com/LeadstarlingX/Aim-Trainer/internal/state"
	"github.com/LeadstarlingX/Aim-Trainer/internal/stats"
	"github.com/LeadstarlingX/Aim-Trainer/internal/target"
)

const AnonymousPlayer = "Anonymous"

// Settings are the game constants. PenaltyProbability is used as given, every
// other zero value falls back to DefaultSettings.
type Settings struct {
	Width, Height          float64
	DotRadius              float64
	MaxLiveTargets         int
	PenaltyProbability     float64
	HitBonus               int
	HarmPenalty            int
	FrameInterval          time.Duration
	DefaultDurationSeconds int
	Profiles               domain.Profiles
}

func DefaultSettings() Settings {
	return Settings{
		Width:                  800,
		Height:                 600,
		DotRadius:              20,
		MaxLiveTargets:         7,
		PenaltyProbability:     0.2,
		HitBonus:               stats.DefaultHitBonus,
		HarmPenalty:            stats.DefaultHarmPenalty,
		FrameInterval:          16 * time.Millisecond,
		DefaultDurationSeconds: 30,
		Profiles:               domain.DefaultProfiles(),
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Width <= 0 {
		s.Width = d.Width
	}
	if s.Height <= 0 {
		s.Height = d.Height
	}
	if s.DotRadius <= 0 {
		s.DotRadius = d.DotRadius
	}
	if s.MaxLiveTargets <= 0 {
		s.MaxLiveTargets = d.MaxLiveTargets
	}
	if s.FrameInterval <= 0 {
		s.FrameInterval = d.FrameInterval
	}
	if s.DefaultDurationSeconds <= 0 {
		s.DefaultDurationSeconds = d.DefaultDurationSeconds
	}
	for _, diff := range domain.Difficulties() {
		if s.Profiles[diff].Lifespan <= 0 {
			s.Profiles[diff].Lifespan = d.Profiles[diff].Lifespan
		}
		if s.Profiles[diff].SpawnInterval <= 0 {
			s.Profiles[diff].SpawnInterval = d.Profiles[diff].SpawnInterval
		}
	}
	s.PenaltyProbability = min(max(s.PenaltyProbability, 0), 1)
	return s
}

type Config struct {
	Loop        *loop.Loop
	EventBus    *event.Bus
	Leaderboard *leaderboard.Service
	Settings    Settings
	// Rand drives target placement and kind. Defaults to a randomly seeded source.
	Rand *rand.Rand
}

// deadline is the pending expiration of a live target. token changes whenever
// the expiration is rescheduled so the superseded callback becomes a no-op.
type deadline struct {
	at      time.Time
	spawned time.Time
	token   uint64
}

// Coordinator is safe for concurrent use. Every exported method runs on the
// loop; bus handlers registered by the coordinator run on the loop too because
// every event it reacts to is published from the loop.
type Coordinator struct {
	l        *loop.Loop
	eb       *event.Bus
	lb       *leaderboard.Service
	settings Settings

	machine *state.Machine
	clock   *clock.Clock
	factory *target.Factory
	layout  *layout.Engine
	scene   *scene.Scene
	tracker *stats.Tracker

	// seq identifies the current session so callbacks of an earlier one are
	// ignored even though target ids restart at every session.
	seq       uint64
	token     uint64
	deadlines map[uint64]deadline
	pausedAt  time.Time

	sessionID       string
	player          string
	difficulty      domain.Difficulty
	durationSeconds int
	last            *domain.SessionResult
}

func NewCoordinator(c Config) *Coordinator {
	settings := c.Settings.withDefaults()

	co := &Coordinator{
		l:         c.Loop,
		eb:        c.EventBus,
		lb:        c.Leaderboard,
		settings:  settings,
		machine:   state.New(c.EventBus),
		clock:     clock.New(c.Loop, c.EventBus),
		deadlines: make(map[uint64]deadline),
		tracker: stats.NewTracker(stats.Config{
			HitBonus:    settings.HitBonus,
			HarmPenalty: settings.HarmPenalty,
		}),
		difficulty: domain.DefaultDifficulty,
	}
	if co.lb == nil {
		co.lb = leaderboard.NewService(leaderboard.Config{EventBus: c.EventBus})
	}

	co.factory = target.NewFactory(target.Config{
		Radius: settings.DotRadius,
		Rand:   c.Rand,
		Now:    c.Loop.Now,
	})
	co.scene = scene.New(scene.Config{
		Loop:   c.Loop,
		Radius: settings.DotRadius,
	})
	co.layout = layout.NewEngine(layout.Config{
		Loop:          c.Loop,
		Renderer:      co.scene,
		Width:         settings.Width,
		Height:        settings.Height,
		Radius:        settings.DotRadius,
		FrameInterval: settings.FrameInterval,
	})

	event.On(c.EventBus, co.onStateChanged)
	event.On(c.EventBus, co.onTimerEnded)
	event.On(c.EventBus, co.onSpawnRequested)

	return co
}

type StartRequest struct {
	Player     string
	Difficulty domain.Difficulty
	// DurationSeconds defaults to Settings.DefaultDurationSeconds when not positive.
	DurationSeconds int
}

// Start begins a session. It reports false unless the engine is IDLE.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (ok bool) {
	ctx = context.WithoutCancel(ctx)
	c.l.Do(func() {
		if !c.machine.IsIdle() {
			return
		}

		c.player = strings.TrimSpace(req.Player)
		if c.player == "" {
			c.player = AnonymousPlayer
		}
		c.difficulty = req.Difficulty
		if !c.difficulty.Valid() {
			c.difficulty = domain.DefaultDifficulty
		}
		c.durationSeconds = req.DurationSeconds
		if c.durationSeconds <= 0 {
			c.durationSeconds = c.settings.DefaultDurationSeconds
		}

		ok = c.machine.Set(ctx, domain.StatePlaying)
	})
	return ok
}

// Click handles a pointer hit on target id. It reports false when the click
// had no effect: not PLAYING, or the target already expired or was clicked.
func (c *Coordinator) Click(ctx context.Context, id uint64) (ok bool) {
	ctx = context.WithoutCancel(ctx)
	c.l.Do(func() {
		if !c.machine.IsPlaying() {
			return
		}

		t, removed := c.layout.Remove(id)
		if !removed {
			return
		}
		d := c.deadlines[id]
		delete(c.deadlines, id)

		removedEvent := domain.EventTargetRemoved{Target: t, Reason: domain.RemovalClicked}
		fb := domain.Feedback{X: t.X, Y: t.Y}
		switch t.Kind {
		case domain.KindPenalty:
			c.tracker.RegisterHarm()
			fb.Text, fb.Style = "Harm", domain.FeedbackWarning
		default:
			reaction := c.l.Now().Sub(d.spawned).Milliseconds()
			c.tracker.RegisterHit(reaction)
			removedEvent.ReactionMs = max(reaction, 0)
			fb.Text, fb.Style = "Hit!", domain.FeedbackSuccess
		}

		c.sync()
		c.eb.Publish(ctx, removedEvent)
		c.eb.Publish(ctx, domain.EventFeedbackShown{Feedback: fb})
		c.eb.Publish(ctx, domain.EventStatsUpdated{Stats: c.tracker.Snapshot()})
		ok = true
	})
	return ok
}

// ClickBackground handles a pointer hit on the empty surface at x, y. It
// reports false when not PLAYING.
func (c *Coordinator) ClickBackground(ctx context.Context, x, y float64) (ok bool) {
	ctx = context.WithoutCancel(ctx)
	c.l.Do(func() {
		if !c.machine.IsPlaying() {
			return
		}

		c.tracker.RegisterMiss()
		c.eb.Publish(ctx, domain.EventBackgroundClicked{X: x, Y: y})
		c.eb.Publish(ctx, domain.EventFeedbackShown{Feedback: domain.Feedback{
			Text: "Miss", Style: domain.FeedbackDanger, X: x, Y: y,
		}})
		c.eb.Publish(ctx, domain.EventStatsUpdated{Stats: c.tracker.Snapshot()})
		ok = true
	})
	return ok
}

// Pause freezes a PLAYING session.
func (c *Coordinator) Pause(ctx context.Context) bool {
	return c.set(ctx, domain.StatePaused)
}

// Resume continues a PAUSED session with the time it had left.
func (c *Coordinator) Resume(ctx context.Context) bool {
	return c.set(ctx, domain.StatePlaying, domain.StatePaused)
}

// Acknowledge dismisses the game over summary and returns to IDLE.
func (c *Coordinator) Acknowledge(ctx context.Context) bool {
	return c.set(ctx, domain.StateIdle)
}

// End finishes a PLAYING or PAUSED session early. The result is recorded as
// if the clock had run out.
func (c *Coordinator) End(ctx context.Context) bool {
	return c.set(ctx, domain.StateGameOver)
}

// set moves the machine to s, optionally only from one of the given states.
func (c *Coordinator) set(ctx context.Context, s domain.State, from ...domain.State) (ok bool) {
	ctx = context.WithoutCancel(ctx)
	c.l.Do(func() {
		if len(from) > 0 && !slices.Contains(from, c.machine.Current()) {
			return
		}
		ok = c.machine.Set(ctx, s)
	})
	return ok
}

// Resize changes the play surface. Live targets are pulled back inside it.
func (c *Coordinator) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	c.l.Do(func() {
		c.settings.Width, c.settings.Height = width, height
		c.layout.Resize(width, height)
	})
}

// Snapshot is everything a client needs to draw the engine at one moment.
type Snapshot struct {
	State         domain.State          `json:"state"`
	SessionID     string                `json:"sessionId,omitempty"`
	Player        string                `json:"player,omitempty"`
	Difficulty    domain.Difficulty     `json:"difficulty"`
	Remaining     int                   `json:"remaining"`
	RemainingText string                `json:"remainingText"`
	Stats         domain.Stats          `json:"stats"`
	Width         float64               `json:"width"`
	Height        float64               `json:"height"`
	Targets       []domain.Target       `json:"targets"`
	Circles       []scene.Circle        `json:"circles"`
	Result        *domain.SessionResult `json:"result,omitempty"`
}

func (c *Coordinator) Snapshot() Snapshot {
	var s Snapshot
	c.l.Do(func() {
		s = Snapshot{
			State:         c.machine.Current(),
			SessionID:     c.sessionID,
			Player:        c.player,
			Difficulty:    c.difficulty,
			Remaining:     c.clock.Remaining(),
			RemainingText: domain.FormatRemaining(c.clock.Remaining()),
			Stats:         c.tracker.Snapshot(),
			Width:         c.settings.Width,
			Height:        c.settings.Height,
			Targets:       c.layout.Targets(),
		}
		if c.last != nil {
			r := *c.last
			s.Result = &r
		}
	})
	s.Circles = c.scene.Circles()
	return s
}

// LastResult returns the result of the most recently finished session.
func (c *Coordinator) LastResult() (domain.SessionResult, bool) {
	var (
		r  domain.SessionResult
		ok bool
	)
	c.l.Do(func() {
		if c.last != nil {
			r, ok = *c.last, true
		}
	})
	return r, ok
}

func (c *Coordinator) State() domain.State {
	var s domain.State
	c.l.Do(func() { s = c.machine.Current() })
	return s
}

// Scene exposes the render target for clients drawing in-process.
func (c *Coordinator) Scene() *scene.Scene { return c.scene }

// Leaderboard returns the leaderboard service results are recorded to.
func (c *Coordinator) Leaderboard() *leaderboard.Service { return c.lb }

func (c *Coordinator) onStateChanged(ctx context.Context, e domain.EventStateChanged) error {
	switch {
	case e.To == domain.StatePlaying && e.From == domain.StateIdle:
		c.begin(ctx)
	case e.To == domain.StatePlaying && e.From == domain.StatePaused:
		c.resume(ctx)
	case e.To == domain.StatePaused:
		c.clock.Stop()
		c.layout.Freeze()
		c.pausedAt = c.l.Now()
	case e.To == domain.StateGameOver:
		c.end(ctx)
	case e.To == domain.StateIdle:
		c.eb.Publish(ctx, domain.EventLeaderboardUpdated{
			Leaderboard: *c.lb.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{Difficulty: c.difficulty}),
		})
	}
	return nil
}

func (c *Coordinator) onTimerEnded(ctx context.Context, _ domain.EventTimerEnded) error {
	c.machine.Set(ctx, domain.StateGameOver)
	return nil
}

func (c *Coordinator) onSpawnRequested(ctx context.Context, _ domain.EventSpawnRequested) error {
	c.spawn(ctx)
	return nil
}

func (c *Coordinator) begin(ctx context.Context) {
	c.seq++
	c.tracker.Reset()
	c.factory.Reset()
	c.layout.Clear()
	clear(c.deadlines)
	c.last = nil

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	c.sessionID = id.String()

	profile := c.settings.Profiles.For(c.difficulty)
	slog.InfoContext(ctx, "session: started",
		"session_id", c.sessionID,
		"player", c.player,
		"difficulty", c.difficulty,
		"duration_seconds", c.durationSeconds,
	)

	c.clock.Start(ctx, c.durationSeconds, profile.SpawnInterval)
	c.eb.Publish(ctx, domain.EventStatsUpdated{Stats: c.tracker.Snapshot()})
}

func (c *Coordinator) spawn(ctx context.Context) {
	if !c.machine.IsPlaying() || c.layout.Len() >= c.settings.MaxLiveTargets {
		return
	}

	t := c.factory.Create(c.settings.Width, c.settings.Height, c.settings.PenaltyProbability)
	c.layout.AddOrSync(t)
	t, _ = c.layout.Get(t.ID)

	lifespan := c.settings.Profiles.For(c.difficulty).Lifespan
	c.schedule(ctx, t.ID, deadline{at: t.SpawnedAt.Add(lifespan), spawned: t.SpawnedAt})

	c.layout.Render()
	c.eb.Publish(ctx, domain.EventTargetSpawned{Target: t})
}

func (c *Coordinator) schedule(ctx context.Context, id uint64, d deadline) {
	c.token++
	d.token = c.token
	c.deadlines[id] = d

	seq, token := c.seq, d.token
	c.l.After(d.at.Sub(c.l.Now()), func() { c.expire(ctx, seq, id, token) })
}

// expire removes a target whose lifespan ran out. Whichever of expire and
// Click gets to layout.Remove first wins; the other is a no-op.
func (c *Coordinator) expire(ctx context.Context, seq, id, token uint64) {
	if seq != c.seq || !c.machine.IsPlaying() {
		return
	}
	if d, ok := c.deadlines[id]; !ok || d.token != token {
		return
	}

	t, ok := c.layout.Remove(id)
	if !ok {
		return
	}
	delete(c.deadlines, id)

	c.sync()
	c.eb.Publish(ctx, domain.EventTargetRemoved{Target: t, Reason: domain.RemovalExpired})
}

// resume shifts every pending expiration by the length of the pause and
// picks the layout and clock up where the pause left them.
func (c *Coordinator) resume(ctx context.Context) {
	paused := c.l.Now().Sub(c.pausedAt)

	ids := make([]uint64, 0, len(c.deadlines))
	for id := range c.deadlines {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		d := c.deadlines[id]
		d.at = d.at.Add(paused)
		d.spawned = d.spawned.Add(paused)
		c.schedule(ctx, id, d)
	}

	c.layout.Thaw()
	c.clock.Resume(ctx)
}

func (c *Coordinator) end(ctx context.Context) {
	c.clock.Stop()
	c.layout.Clear()
	clear(c.deadlines)

	st := c.tracker.Snapshot()
	result := domain.SessionResult{
		PlayerName:    c.player,
		Score:         st.Score,
		Accuracy:      st.Accuracy,
		AvgReactionMs: st.AvgReactionMs,
		Difficulty:    c.difficulty,
		Timestamp:     c.l.Now().UTC(),
	}
	c.last = &result

	if err := c.lb.Record(ctx, result); err != nil {
		slog.ErrorContext(ctx, "session: record result failed",
			"session_id", c.sessionID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "session: ended",
		"session_id", c.sessionID,
		"score", result.Score,
		"accuracy", result.Accuracy,
		"avg_reaction_ms", result.AvgReactionMs,
	)
	c.eb.Publish(ctx, domain.EventSessionEnded{SessionID: c.sessionID, Result: result, Stats: st})
}

// sync restarts the layout after the live set changed and renders it.
func (c *Coordinator) sync() {
	c.layout.AddOrSync()
	c.layout.Render()
}
