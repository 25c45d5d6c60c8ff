// Command term plays the aim trainer in a terminal. Targets are drawn on a
// tcell screen and clicked with the mouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/leaderboard"
	"github.com/LeadstarlingX/Aim-Trainer/internal/loop"
	"github.com/LeadstarlingX/Aim-Trainer/internal/session"
)

const (
	frameInterval = 33 * time.Millisecond
	feedbackTTL   = 600 * time.Millisecond
	sampleRate    = beep.SampleRate(44100)
)

type options struct {
	player     string
	difficulty string
	duration   int
	scores     string
	logFile    string
	mute       bool
}

func main() {
	var o options
	flag.StringVar(&o.player, "player", "", "player name shown on the leaderboard")
	flag.StringVar(&o.difficulty, "difficulty", domain.DefaultDifficulty.String(), "beginner, intermediate, advanced or elite")
	flag.IntVar(&o.duration, "duration", 30, "session length in seconds")
	flag.StringVar(&o.scores, "scores", "", "leaderboard file, kept in memory when empty")
	flag.StringVar(&o.logFile, "log", "", "write debug logs to this file")
	flag.BoolVar(&o.mute, "mute", false, "disable sound")
	flag.Parse()

	closeLog, err := setupLog(o.logFile)
	if err != nil {
		log.Fatalf("Open log failed: %v", err)
	}
	defer closeLog()

	g, err := newGame(o)
	if err != nil {
		log.Fatalf("Init game failed: %v", err)
	}

	g.run()
}

func setupLog(file string) (func(), error) {
	if file == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return func() { f.Close() }, nil
}

type feedback struct {
	domain.Feedback
	at time.Time
}

type game struct {
	o      options
	screen tcell.Screen
	co     *session.Coordinator
	radius float64

	surface surface
	buttons tcell.ButtonMask

	audio bool

	mu       sync.Mutex
	feedback *feedback
	// board is the last leaderboard the session published.
	board *domain.Leaderboard
}

func newGame(o options) (*game, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.HideCursor()

	var storage leaderboard.Storage
	if o.scores != "" {
		storage = leaderboard.NewFileStorage(o.scores)
	}

	eb := event.NewBus()
	lb := leaderboard.NewService(leaderboard.Config{EventBus: eb, Storage: storage})

	settings := session.DefaultSettings()
	settings.DefaultDurationSeconds = o.duration

	g := &game{
		o:      o,
		screen: screen,
		radius: settings.DotRadius,
	}

	cols, rows := screen.Size()
	g.surface = newSurface(cols, rows)
	settings.Width, settings.Height = g.surface.size()

	g.co = session.NewCoordinator(session.Config{
		Loop:        loop.New(loop.RealScheduler()),
		EventBus:    eb,
		Leaderboard: lb,
		Settings:    settings,
	})

	if !o.mute {
		if err := g.initAudio(); err != nil {
			// Non-fatal, the game runs without sound.
			slog.Warn("term: audio init failed", "error", err)
		}
	}

	event.On(eb, g.onFeedback)
	event.On(eb, g.onLeaderboard)

	return g, nil
}

func (g *game) initAudio() error {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return err
	}
	g.audio = true
	return nil
}

func (g *game) tone(freq float64, d time.Duration) {
	if !g.audio {
		return
	}
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(d), sine))
}

// onFeedback runs on the engine loop.
func (g *game) onFeedback(_ context.Context, e domain.EventFeedbackShown) error {
	g.mu.Lock()
	g.feedback = &feedback{Feedback: e.Feedback, at: time.Now()}
	g.mu.Unlock()

	switch e.Feedback.Style {
	case domain.FeedbackSuccess:
		g.tone(880, 50*time.Millisecond)
	case domain.FeedbackWarning:
		g.tone(220, 120*time.Millisecond)
	case domain.FeedbackDanger:
		g.tone(140, 60*time.Millisecond)
	}
	return nil
}

// onLeaderboard runs on the engine loop. It keeps the board so drawing does
// not read storage every frame.
func (g *game) onLeaderboard(_ context.Context, e domain.EventLeaderboardUpdated) error {
	g.mu.Lock()
	g.board = &e.Leaderboard
	g.mu.Unlock()
	return nil
}

// topResults returns the cached top results of d, or nil when the last board
// published was for another difficulty.
func (g *game) topResults(d domain.Difficulty) []domain.SessionResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.board == nil || g.board.Difficulty != d {
		return nil
	}
	return g.board.Entries
}

func (g *game) run() {
	defer g.screen.Fini()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go g.screen.ChannelEvents(events, quit)

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	ctx := context.Background()
	g.start(ctx)

	for {
		select {
		case ev := <-events:
			if !g.handle(ctx, ev) {
				close(quit)
				g.co.End(ctx)
				return
			}
		case <-ticker.C:
		}
		g.draw()
	}
}

func (g *game) start(ctx context.Context) {
	g.co.Start(ctx, session.StartRequest{
		Player:          g.o.player,
		Difficulty:      domain.DifficultyOrDefault(g.o.difficulty),
		DurationSeconds: g.o.duration,
	})
}

// handle reports false when the player quits.
func (g *game) handle(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		g.screen.Sync()
		g.surface = newSurface(ev.Size())
		g.co.Resize(g.surface.size())

	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
			return false
		case ev.Rune() == 'p' || ev.Rune() == ' ':
			if !g.co.Pause(ctx) {
				g.co.Resume(ctx)
			}
		case ev.Rune() == 'e':
			g.co.End(ctx)
		case ev.Rune() == 's' || ev.Key() == tcell.KeyEnter:
			if g.co.State() == domain.StateGameOver {
				g.co.Acknowledge(ctx)
			}
			g.start(ctx)
		}

	case *tcell.EventMouse:
		pressed := ev.Buttons()&tcell.Button1 != 0 && g.buttons&tcell.Button1 == 0
		g.buttons = ev.Buttons()
		if !pressed {
			break
		}

		col, row := ev.Position()
		if !g.surface.inside(col, row) {
			break
		}
		if c, ok := g.surface.hit(g.co.Scene().Circles(), g.radius, col, row); ok {
			g.co.Click(ctx, c.ID)
		} else {
			x, y := g.surface.point(col, row)
			g.co.ClickBackground(ctx, x, y)
		}
	}
	return true
}

func (g *game) draw() {
	g.screen.Clear()
	snap := g.co.Snapshot()

	for _, c := range snap.Circles {
		style := tcell.StyleDefault.Foreground(colorOf(c.Color))
		g.surface.cells(c, func(col, row int) {
			g.screen.SetContent(col, row, '█', nil, style)
		})
	}

	g.mu.Lock()
	fb := g.feedback
	g.mu.Unlock()
	if fb != nil && time.Since(fb.at) < feedbackTTL {
		col, row := int(fb.X/cellWidth), int(fb.Y/cellHeight)
		g.text(col, row, feedbackStyle(fb.Style), fb.Text)
	}

	status := g.surface.rows
	g.text(0, status, tcell.StyleDefault.Reverse(true), fmt.Sprintf(
		" %s  %s  %s  %s  score %d  hits %d  misses %d  harms %d ",
		snap.State, snap.Player, snap.Difficulty, snap.RemainingText,
		snap.Stats.Score, snap.Stats.Hits, snap.Stats.Misses, snap.Stats.Harms,
	))

	switch snap.State {
	case domain.StateGameOver:
		g.drawSummary(snap)
		g.text(0, status+1, tcell.StyleDefault, " s: play again   q: quit")
	case domain.StatePaused:
		g.text(0, status+1, tcell.StyleDefault, " paused   p: resume   e: end   q: quit")
	case domain.StateIdle:
		g.text(0, status+1, tcell.StyleDefault, " s: start   q: quit")
	default:
		g.text(0, status+1, tcell.StyleDefault, " click the dots, avoid red   p: pause   e: end   q: quit")
	}

	g.screen.Show()
}

func (g *game) drawSummary(snap session.Snapshot) {
	if snap.Result == nil {
		return
	}
	r := snap.Result
	lines := []string{
		"GAME OVER",
		fmt.Sprintf("score %d   accuracy %.1f%%   reaction %d ms", r.Score, r.Accuracy, r.AvgReactionMs),
		fmt.Sprintf("hits %d   misses %d   harms %d", snap.Stats.Hits, snap.Stats.Misses, snap.Stats.Harms),
		"",
		fmt.Sprintf("top %s", r.Difficulty),
	}
	for i, e := range g.topResults(r.Difficulty) {
		lines = append(lines, fmt.Sprintf("%d. %-12s %5d  %5.1f%%  %4d ms", i+1, e.PlayerName, e.Score, e.Accuracy, e.AvgReactionMs))
	}

	top := max(0, g.surface.rows/2-len(lines)/2)
	for i, l := range lines {
		g.text(max(0, g.surface.cols/2-20), top+i, tcell.StyleDefault.Bold(i == 0), l)
	}
}

func (g *game) text(col, row int, style tcell.Style, s string) {
	for _, r := range s {
		g.screen.SetContent(col, row, r, nil, style)
		col++
	}
}

func feedbackStyle(s domain.FeedbackStyle) tcell.Style {
	switch s {
	case domain.FeedbackSuccess:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	case domain.FeedbackWarning:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	}
}
