// Package lifecycle bridges Event Bus traffic into aretw0/lifecycle.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/notecap/pkg/core"
)

// Event is a bus message seen through the lifecycle.Event interface.
type Event struct {
	core.Message
}

// String implements lifecycle.Event.
func (e Event) String() string {
	return fmt.Sprintf("%s from %s", e.Event, e.Source)
}

type busSource struct {
	bus    core.Bus
	events []string
	in     chan core.Message
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the bus messages of the
// given events. Messages arriving faster than they are consumed are dropped,
// as the bus itself is at-most-once.
func NewSource(b core.Bus, events ...string) lifecycle.Source {
	return &busSource{
		bus:    b,
		events: events,
		in:     make(chan core.Message, 64),
		out:    make(chan lifecycle.Event),
	}
}

func (s *busSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start subscribes to the bus and forwards until ctx ends. The listeners
// are removed and Events is closed on exit.
func (s *busSource) Start(ctx context.Context) error {
	unsubs := make([]core.Unsubscribe, 0, len(s.events))
	for _, event := range s.events {
		unsub, err := s.bus.Listen(event, func(m core.Message) {
			select {
			case s.in <- m:
			default:
			}
		})
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return fmt.Errorf("listen %s: %w", event, err)
		}
		unsubs = append(unsubs, unsub)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer func() {
			for _, u := range unsubs {
				u()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case m := <-s.in:
				select {
				case s.out <- Event{Message: m}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
