package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Name identifies a kind of event.
type Name string

type Event interface {
	Name() Name
}

type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id uint64
	h  Handler
}

// Bus is an in-memory event bus. Publish delivers synchronously, in
// registration order, on the caller's goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Name][]subscription
}

// NewBus create a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Name][]subscription),
	}
}

// Subscribe to an event. The returned func removes the subscription.
func (b *Bus) Subscribe(name Name, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name Name, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			// Copy so that a Publish iterating the old slice is unaffected.
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			b.handlers[name] = append(next, subs[i+1:]...)
			return
		}
	}
}

// On subscribes a handler typed on the concrete event.
func On[E Event](b *Bus, h func(ctx context.Context, e E) error) (unsubscribe func()) {
	var zero E
	return b.Subscribe(zero.Name(), func(ctx context.Context, e Event) error {
		te, ok := e.(E)
		if !ok {
			return fmt.Errorf("event: %s carries %T", e.Name(), e)
		}
		return h(ctx, te)
	})
}

// Publish an event
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := b.handlers[e.Name()]
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(ctx, s.h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "event: handler panic",
				"event", e.Name(),
				"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
			)
		}
	}()

	if err := h(ctx, e); err != nil {
		slog.ErrorContext(ctx, "event: handle event failed",
			"event", e.Name(),
			"error", err,
		)
	}
}
