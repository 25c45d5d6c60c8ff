package state

import (
	"context"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
)

var transitions = map[domain.State][]domain.State{
	domain.StateIdle:     {domain.StatePlaying},
	domain.StatePlaying:  {domain.StatePaused, domain.StateGameOver},
	domain.StatePaused:   {domain.StatePlaying, domain.StateGameOver},
	domain.StateGameOver: {domain.StateIdle},
}

// Machine is the single source of truth for the session state. Other
// components query it rather than keeping their own copy.
type Machine struct {
	eb       *event.Bus
	current  domain.State
	previous domain.State
}

func New(eb *event.Bus) *Machine {
	return &Machine{
		eb:       eb,
		current:  domain.StateIdle,
		previous: domain.StateIdle,
	}
}

// Set moves to s and publishes one EventStateChanged. Setting the current
// state, or a state not reachable from it, does nothing and reports false.
func (m *Machine) Set(ctx context.Context, s domain.State) bool {
	if s == m.current || !CanTransition(m.current, s) {
		return false
	}

	m.previous, m.current = m.current, s
	m.eb.Publish(ctx, domain.EventStateChanged{From: m.previous, To: s})
	return true
}

func (m *Machine) Current() domain.State  { return m.current }
func (m *Machine) Previous() domain.State { return m.previous }

func (m *Machine) IsIdle() bool     { return m.current == domain.StateIdle }
func (m *Machine) IsPlaying() bool  { return m.current == domain.StatePlaying }
func (m *Machine) IsPaused() bool   { return m.current == domain.StatePaused }
func (m *Machine) IsGameOver() bool { return m.current == domain.StateGameOver }

// CanTransition reports whether the lifecycle allows moving from one state to another.
func CanTransition(from, to domain.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
