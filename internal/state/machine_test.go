package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/domain"
	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
	"github.com/LeadstarlingX/Aim-Trainer/internal/state"
)

func TestMachine_Set(t *testing.T) {
	type outputs struct {
		changed   []bool
		events    []domain.EventStateChanged
		current   domain.State
		previous  domain.State
		isPlaying bool
	}

	tests := map[string]struct {
		steps  []domain.State
		assert func(t *testing.T, out outputs)
	}{
		"setting playing twice should publish exactly one event": {
			steps: []domain.State{domain.StatePlaying, domain.StatePlaying},
			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []bool{true, false}, out.changed)
				require.Equal(t, []domain.EventStateChanged{
					{From: domain.StateIdle, To: domain.StatePlaying},
				}, out.events)
				require.True(t, out.isPlaying)
			},
		},

		"setting the initial state should be a no-op": {
			steps: []domain.State{domain.StateIdle},
			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []bool{false}, out.changed)
				require.Empty(t, out.events)
				require.Equal(t, domain.StateIdle, out.current)
			},
		},

		"a full session lifecycle should publish every transition": {
			steps: []domain.State{
				domain.StatePlaying,
				domain.StatePaused,
				domain.StatePlaying,
				domain.StateGameOver,
				domain.StateIdle,
			},
			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.events, 5)
				require.Equal(t, domain.EventStateChanged{From: domain.StateGameOver, To: domain.StateIdle}, out.events[4])
				require.Equal(t, domain.StateIdle, out.current)
				require.Equal(t, domain.StateGameOver, out.previous)
			},
		},

		"an invalid transition should be ignored": {
			steps: []domain.State{domain.StateGameOver, domain.StatePaused},
			assert: func(t *testing.T, out outputs) {
				require.Equal(t, []bool{false, false}, out.changed)
				require.Empty(t, out.events)
				require.Equal(t, domain.StateIdle, out.current)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var out outputs
			eb := event.NewBus()
			event.On(eb, func(_ context.Context, e domain.EventStateChanged) error {
				out.events = append(out.events, e)
				return nil
			})

			m := state.New(eb)
			for _, s := range tt.steps {
				out.changed = append(out.changed, m.Set(context.Background(), s))
			}
			out.current = m.Current()
			out.previous = m.Previous()
			out.isPlaying = m.IsPlaying()

			tt.assert(t, out)
		})
	}
}

func TestMachine_ObserversSeeNewState(t *testing.T) {
	eb := event.NewBus()
	m := state.New(eb)

	var seen domain.State
	event.On(eb, func(_ context.Context, e domain.EventStateChanged) error {
		seen = m.Current()
		return nil
	})

	m.Set(context.Background(), domain.StatePlaying)
	require.Equal(t, domain.StatePlaying, seen)
}
