package stats

import (
	"github.com/shopspring/decimal"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
)

const (
	DefaultHitBonus    = 10
	DefaultHarmPenalty = 15

	// AccuracyPlaces is the number of decimals accuracy is rounded to.
	AccuracyPlaces = 1
)

type Config struct {
	HitBonus    int
	HarmPenalty int
}

// Tracker accumulates the outcome of one session.
type Tracker struct {
	hitBonus    int
	harmPenalty int

	score     int
	hits      int
	misses    int
	harms     int
	reactions []int64
}

func NewTracker(c Config) *Tracker {
	t := &Tracker{
		hitBonus:    c.HitBonus,
		harmPenalty: c.HarmPenalty,
	}
	if t.hitBonus <= 0 {
		t.hitBonus = DefaultHitBonus
	}
	if t.harmPenalty <= 0 {
		t.harmPenalty = DefaultHarmPenalty
	}
	return t
}

func (t *Tracker) Reset() {
	t.score, t.hits, t.misses, t.harms = 0, 0, 0, 0
	t.reactions = t.reactions[:0]
}

// RegisterHit records a bonus target click and its reaction time.
func (t *Tracker) RegisterHit(reactionMs int64) {
	t.hits++
	t.score += t.hitBonus
	t.reactions = append(t.reactions, max(reactionMs, 0))
}

// RegisterMiss records a click on the background. The score is unchanged.
func (t *Tracker) RegisterMiss() {
	t.misses++
}

// RegisterHarm records a penalty target click. The score never drops below zero.
func (t *Tracker) RegisterHarm() {
	t.harms++
	t.score = max(0, t.score-t.harmPenalty)
}

func (t *Tracker) Score() int  { return t.score }
func (t *Tracker) Hits() int   { return t.hits }
func (t *Tracker) Misses() int { return t.misses }
func (t *Tracker) Harms() int  { return t.harms }

// Accuracy is hits over all interactions as a percentage rounded to
// AccuracyPlaces decimals, 0 when nothing was clicked.
func (t *Tracker) Accuracy() float64 {
	total := t.hits + t.misses + t.harms
	if total == 0 {
		return 0
	}

	return decimal.NewFromInt(int64(t.hits)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(AccuracyPlaces).
		InexactFloat64()
}

// AvgReactionMs is the mean hit reaction time rounded to whole milliseconds,
// 0 when there were no hits.
func (t *Tracker) AvgReactionMs() int64 {
	if len(t.reactions) == 0 {
		return 0
	}

	sum := decimal.Zero
	for _, r := range t.reactions {
		sum = sum.Add(decimal.NewFromInt(r))
	}
	return sum.Div(decimal.NewFromInt(int64(len(t.reactions)))).Round(0).IntPart()
}

func (t *Tracker) Snapshot() domain.Stats {
	return domain.Stats{
		Score:         t.score,
		Hits:          t.hits,
		Misses:        t.misses,
		Harms:         t.harms,
		Accuracy:      t.Accuracy(),
		AvgReactionMs: t.AvgReactionMs(),
	}
}
