package domain

import "github.com/LeadstarlingX/Aim-Trainer/internal/event"

const (
	EventNameStateChanged       event.Name = "state.changed"
	EventNameTimerTicked        event.Name = "timer.ticked"
	EventNameTimerEnded         event.Name = "timer.ended"
	EventNameSpawnRequested     event.Name = "spawn.requested"
	EventNameTargetSpawned      event.Name = "target.spawned"
	EventNameTargetRemoved      event.Name = "target.removed"
	EventNameBackgroundClicked  event.Name = "background.clicked"
	EventNameStatsUpdated       event.Name = "stats.updated"
	EventNameFeedbackShown      event.Name = "feedback.shown"
	EventNameSessionEnded       event.Name = "session.ended"
	EventNameLeaderboardUpdated event.Name = "leaderboard.updated"
)

type EventStateChanged struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (EventStateChanged) Name() event.Name { return EventNameStateChanged }

type EventTimerTicked struct {
	Remaining int `json:"remaining"`
}

func (EventTimerTicked) Name() event.Name { return EventNameTimerTicked }

type EventTimerEnded struct{}

func (EventTimerEnded) Name() event.Name { return EventNameTimerEnded }

type EventSpawnRequested struct{}

func (EventSpawnRequested) Name() event.Name { return EventNameSpawnRequested }

type EventTargetSpawned struct {
	Target Target `json:"target"`
}

func (EventTargetSpawned) Name() event.Name { return EventNameTargetSpawned }

// RemovalReason tells which of the racing paths removed a target.
type RemovalReason string

const (
	RemovalClicked RemovalReason = "clicked"
	RemovalExpired RemovalReason = "expired"
)

type EventTargetRemoved struct {
	Target Target        `json:"target"`
	Reason RemovalReason `json:"reason"`

	// ReactionMs is set when a bonus target was clicked.
	ReactionMs int64 `json:"reactionMs,omitempty"`
}

func (EventTargetRemoved) Name() event.Name { return EventNameTargetRemoved }

// EventBackgroundClicked is a click that hit no target.
type EventBackgroundClicked struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (EventBackgroundClicked) Name() event.Name { return EventNameBackgroundClicked }

type EventStatsUpdated struct {
	Stats Stats `json:"stats"`
}

func (EventStatsUpdated) Name() event.Name { return EventNameStatsUpdated }

type EventFeedbackShown struct {
	Feedback Feedback `json:"feedback"`
}

func (EventFeedbackShown) Name() event.Name { return EventNameFeedbackShown }

type EventSessionEnded struct {
	SessionID string        `json:"sessionId"`
	Result    SessionResult `json:"result"`
	Stats     Stats         `json:"stats"`
}

func (EventSessionEnded) Name() event.Name { return EventNameSessionEnded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard `json:"leaderboard"`
}

func (EventLeaderboardUpdated) Name() event.Name { return EventNameLeaderboardUpdated }
