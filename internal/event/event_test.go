package event_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeadstarlingX/Aim-Trainer/internal/event"
)

func TestBus_PublishSubscribe(t *testing.T) {
	type (
		inputs struct {
			published   []event.Event
			subscribers []subscriber
		}

		outputs struct {
			received map[string][]event.Event
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"a single subscriber should receive correct event": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
						eventWithName("e2"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []event.Name{"e1"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, []event.Event{eventWithName("e1")}, out.received["s1"])
			},
		},

		"a single subscriber should receive all dispatched event in publish order": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
						eventWithName("e2"),
						eventWithName("e1"),
					},
					subscribers: []subscriber{
						{
							name:        "s1",
							subscribeTo: []event.Name{"e1", "e2"},
						},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, []event.Event{eventWithName("e1"), eventWithName("e2"), eventWithName("e1")}, out.received["s1"])
			},
		},

		"an event should be dispatched to all subscribers": {
			arrange: func() inputs {
				return inputs{
					published: []event.Event{
						eventWithName("e1"),
					},
					subscribers: []subscriber{
						{name: "s1", subscribeTo: []event.Name{"e1"}},
						{name: "s2", subscribeTo: []event.Name{"e1"}},
						{name: "s3", subscribeTo: []event.Name{"e1"}},
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				assert.Equal(t, []event.Event{eventWithName("e1")}, out.received["s1"])
				assert.Equal(t, []event.Event{eventWithName("e1")}, out.received["s2"])
				assert.Equal(t, []event.Event{eventWithName("e1")}, out.received["s3"])
				assert.Equal(t, []event.Event{eventWithName("s1"), eventWithName("s2"), eventWithName("s3")}, out.received["order"])
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tt.arrange()
			out := outputs{received: make(map[string][]event.Event)}

			b := event.NewBus()
			for _, s := range in.subscribers {
				for _, e := range s.subscribeTo {
					b.Subscribe(e, func(ctx context.Context, e event.Event) error {
						out.received[s.name] = append(out.received[s.name], e)
						out.received["order"] = append(out.received["order"], eventWithName(s.name))
						return nil
					})
				}
			}

			for _, e := range in.published {
				b.Publish(context.Background(), e)
			}

			tt.assert(t, out)
		})
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := event.NewBus()

	var got int
	unsubscribe := b.Subscribe("e1", func(context.Context, event.Event) error {
		got++
		return nil
	})

	b.Publish(context.Background(), eventWithName("e1"))
	unsubscribe()
	unsubscribe()
	b.Publish(context.Background(), eventWithName("e1"))

	require.Equal(t, 1, got)
}

func TestBus_HandlerFailureIsIsolated(t *testing.T) {
	b := event.NewBus()

	var calls []string
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls = append(calls, "panics")
		panic("boom")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls = append(calls, "errors")
		return errors.New("failed")
	})
	b.Subscribe("e1", func(context.Context, event.Event) error {
		calls = append(calls, "ok")
		return nil
	})

	require.NotPanics(t, func() {
		b.Publish(context.Background(), eventWithName("e1"))
	})
	require.Equal(t, []string{"panics", "errors", "ok"}, calls)
}

func TestOn_TypedHandler(t *testing.T) {
	b := event.NewBus()

	var got []typedEvent
	event.On(b, func(_ context.Context, e typedEvent) error {
		got = append(got, e)
		return nil
	})

	b.Publish(context.Background(), typedEvent{N: 1})
	b.Publish(context.Background(), eventWithName("typed"))
	b.Publish(context.Background(), typedEvent{N: 2})

	require.Equal(t, []typedEvent{{N: 1}, {N: 2}}, got)
}

type eventWithName string

func (e eventWithName) Name() event.Name {
	return event.Name(e)
}

type typedEvent struct {
	N int
}

func (typedEvent) Name() event.Name { return "typed" }

type subscriber struct {
	name        string
	subscribeTo []event.Name
}
