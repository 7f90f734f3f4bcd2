// Package dispatch serializes gateway events onto a single consumer so the
// attribution engine never runs two refresh cycles at once.
//
// Ordering starts at Submit. discordgo runs each event handler in its own
// goroutine, so a join and an invite event arriving together may reach the
// queue in either order.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/flor3z/invite-role-bot/internal/attribution"
)

// ErrStopped is returned by Submit once the dispatcher has stopped
var ErrStopped = errors.New("dispatcher stopped")

// EventType identifies what an Event carries
type EventType int

const (
	EventReady EventType = iota
	EventJoin
	EventResync
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventJoin:
		return "join"
	case EventResync:
		return "resync"
	default:
		return "unknown"
	}
}

// Event is one unit of work for the consumer
type Event struct {
	Type   EventType
	Join   attribution.JoinEvent
	Reason string // Why a resync was requested
}

// Ready returns the event sent once the gateway session is ready
func Ready() Event {
	return Event{Type: EventReady}
}

// Join returns the event for a member joining
func Join(ev attribution.JoinEvent) Event {
	return Event{Type: EventJoin, Join: ev}
}

// Resync returns an out-of-band refresh event
func Resync(reason string) Event {
	return Event{Type: EventResync, Reason: reason}
}

// Handler processes events; *attribution.Engine implements it
type Handler interface {
	Prime(ctx context.Context) error
	Resync(ctx context.Context) error
	Attribute(ctx context.Context, ev attribution.JoinEvent) attribution.Outcome
}

// Dispatcher is a bounded queue drained by one goroutine
type Dispatcher struct {
	handler Handler
	events  chan Event

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Dispatcher with room for size pending events
func New(handler Handler, size int) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		handler:  handler,
		events:   make(chan Event, size),
		stopChan: make(chan struct{}),
	}
}

// Submit queues an event, blocking while the queue is full
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	select {
	case <-d.stopChan:
		return ErrStopped
	default:
	}

	select {
	case d.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopChan:
		return ErrStopped
	}
}

// Pending returns the number of queued events
func (d *Dispatcher) Pending() int {
	return len(d.events)
}

// Run handles events in the order Submit accepted them until ctx is cancelled
// or Stop is called
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()

	slog.Info("Starting event dispatcher", "queueSize", cap(d.events))

	for {
		select {
		case <-ctx.Done():
			slog.Info("Dispatcher stopped (context cancelled)")
			return
		case <-d.stopChan:
			slog.Info("Dispatcher stopped")
			return
		case ev := <-d.events:
			d.handle(ctx, ev)
		}
	}
}

// Stop signals Run to return and waits for the current event to finish
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	slog.Debug("Handling event", "type", ev.Type, "pending", d.Pending())

	switch ev.Type {
	case EventReady:
		if err := d.handler.Prime(ctx); err != nil {
			slog.Error("Error caching invites", "error", err)
		}
	case EventJoin:
		slog.Info("New member", "member", ev.Join.MemberName, "memberID", ev.Join.MemberID)
		d.handler.Attribute(ctx, ev.Join)
	case EventResync:
		if err := d.handler.Resync(ctx); err != nil {
			slog.Error("Error resyncing invites", "reason", ev.Reason, "error", err)
		}
	default:
		slog.Warn("Unknown event type", "type", ev.Type)
	}
}
