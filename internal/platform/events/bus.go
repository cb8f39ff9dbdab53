// Package events is a synchronous in-process publish/subscribe bus used to
// decouple workflow side effects (downstream resets, dashboard pushes) from
// the step that triggers them.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Any subscribes a handler to every event.
const Any = "*"

type Event interface {
	EventName() string
}

// DonorEvent is implemented by events that concern one donor.
type DonorEvent interface {
	Event
	EventDonorID() int64
	OccurredAt() time.Time
}

type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers each published event to its subscribers in registration order.
// A failing handler does not stop the others; Publish returns all failures
// joined.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers h under a descriptive handler name for event (or Any).
func (b *Bus) Subscribe(event, name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], subscription{name: name, handler: h})
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs[e.EventName()])+len(b.subs[Any]))
	subs = append(subs, b.subs[e.EventName()]...)
	subs = append(subs, b.subs[Any]...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := b.deliver(ctx, s, e); err != nil {
			b.logger.Error().Err(err).
				Str("event", e.EventName()).
				Str("handler", s.name).
				Msg("event handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) deliver(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx, e)
}

// Subscribers reports how many handlers would receive event.
func (b *Bus) Subscribers(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event]) + len(b.subs[Any])
}
