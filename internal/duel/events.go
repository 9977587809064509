package duel

import (
	"sync"
	"time"
)

// EventType indicates the category of a session event.
type EventType string

const (
	EventTurnChanged          EventType = "TURN_CHANGED"
	EventStateRestored        EventType = "STATE_RESTORED"
	EventOpponentDisconnected EventType = "OPPONENT_DISCONNECTED"
	EventOpponentReconnected  EventType = "OPPONENT_RECONNECTED"
	EventOpponentForfeited    EventType = "OPPONENT_FORFEITED"
	EventMatchStarted         EventType = "MATCH_STARTED"
	EventCardPlayed           EventType = "CARD_PLAYED"
)

// Event represents a session state change that observers may react to.
type Event struct {
	Type       EventType
	Seat       Seat // seat the event is about (turn owner, disconnected seat, ...)
	TurnNumber int
	Remaining  int                // remaining grace seconds, disconnect events only
	Snapshot   *GameStateSnapshot // populated for STATE_RESTORED
	Timestamp  time.Time
}

// Listener defines a callback that reacts to incoming events.
// Listeners are invoked synchronously in publish order.
type Listener func(Event)

// Bus provides a synchronous publish/subscribe channel for session events
// with deliver-last semantics for turn changes: a subscriber that joins
// after a TURN_CHANGED fired immediately receives the most recent payload.
//
// Redelivery can hand a now-stale payload to a seat whose connection was
// just rebound, so consumers must discard payloads whose TurnNumber is not
// newer than the authoritative value they already hold; the coordinator
// additionally re-publishes a fresh turn event after any rebind to keep
// that window small.
type Bus struct {
	mu         sync.RWMutex
	listeners  map[int]Listener
	nextHandle int
	lastTurn   *Event
}

// NewBus constructs a fresh event bus instance.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener for all events and returns a handle.
// If a turn change was already published, it is delivered to the new
// listener immediately.
func (b *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	b.mu.Lock()
	handle := b.nextHandle
	b.nextHandle++
	b.listeners[handle] = listener
	last := b.lastTurn
	b.mu.Unlock()

	if last != nil {
		listener(*last)
	}
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (b *Bus) Unsubscribe(handle int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, handle)
}

// Publish delivers the event to all registered listeners synchronously.
// TURN_CHANGED events are retained for late subscribers.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	if event.Type == EventTurnChanged {
		retained := event
		b.lastTurn = &retained
	}
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// RepublishTurn re-delivers the most recent turn change, if any. The
// coordinator calls this immediately after a connection rebind so the
// rejoining seat converges on the authoritative turn without waiting for
// the next natural turn change.
func (b *Bus) RepublishTurn() {
	b.mu.RLock()
	last := b.lastTurn
	b.mu.RUnlock()
	if last != nil {
		b.Publish(*last)
	}
}

// LastTurn returns the retained turn change payload, or nil if no turn
// change was published yet.
func (b *Bus) LastTurn() *Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.lastTurn == nil {
		return nil
	}
	retained := *b.lastTurn
	return &retained
}
