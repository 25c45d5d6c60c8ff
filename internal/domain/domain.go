package domain

import (
	"fmt"
	"time"
)

// Kind tells whether clicking a target rewards or penalises the player.
type Kind uint8

const (
	KindBonus Kind = iota
	KindPenalty
)

func (k Kind) String() string {
	switch k {
	case KindBonus:
		return "bonus"
	case KindPenalty:
		return "penalty"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "bonus":
		*k = KindBonus
	case "penalty":
		*k = KindPenalty
	default:
		return fmt.Errorf("domain: unknown kind %q", b)
	}
	return nil
}

// Color is a hex RGB color from the fixed target palette.
type Color string

const (
	ColorBlue  Color = "#58a6ff"
	ColorGreen Color = "#3fb950"
	ColorAmber Color = "#d29922"
	ColorRed   Color = "#f85149"
)

// BonusPalette lists the colors a bonus target may take.
var BonusPalette = [...]Color{ColorBlue, ColorGreen, ColorAmber}

// PenaltyColor is the color every penalty target takes.
const PenaltyColor = ColorRed

// Target is a timed clickable dot on the play surface.
type Target struct {
	ID        uint64    `json:"id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Kind      Kind      `json:"kind"`
	Color     Color     `json:"color"`
	SpawnedAt time.Time `json:"spawnedAt"`
}

// State is the session lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateGameOver:
		return "GAMEOVER"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for v := StateIdle; v <= StateGameOver; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("domain: unknown state %q", b)
}

// Stats is a point-in-time view of a session's counters and derived values.
type Stats struct {
	Score         int     `json:"score"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Harms         int     `json:"harms"`
	Accuracy      float64 `json:"accuracy"`
	AvgReactionMs int64   `json:"avgReactionMs"`
}

// SessionResult is the immutable outcome of one session. The JSON layout is the
// persisted leaderboard record.
type SessionResult struct {
	PlayerName    string     `json:"name"`
	Score         int        `json:"score"`
	Accuracy      float64    `json:"accuracy"`
	AvgReactionMs int64      `json:"reaction"`
	Difficulty    Difficulty `json:"difficulty"`
	Timestamp     time.Time  `json:"date"`
}

// Leaderboard is the ranked top results of one difficulty tier, best first.
type Leaderboard struct {
	Difficulty Difficulty      `json:"difficulty"`
	Entries    []SessionResult `json:"entries"`
}

// Feedback is a short floating label shown where the player clicked.
type Feedback struct {
	Text  string        `json:"text"`
	Style FeedbackStyle `json:"style"`
	X     float64       `json:"x"`
	Y     float64       `json:"y"`
}

type FeedbackStyle string

const (
	FeedbackSuccess FeedbackStyle = "success"
	FeedbackWarning FeedbackStyle = "warning"
	FeedbackDanger  FeedbackStyle = "danger"
)

// FormatRemaining renders a countdown as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
