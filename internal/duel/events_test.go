package duel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBusDeliverLast verifies a subscriber joining after a turn change
// immediately receives the most recent payload.
func TestBusDeliverLast(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventTurnChanged, Seat: SeatGuest, TurnNumber: 7})

	var received []Event
	bus.Subscribe(func(e Event) { received = append(received, e) })

	require.Len(t, received, 1)
	assert.Equal(t, EventTurnChanged, received[0].Type)
	assert.Equal(t, SeatGuest, received[0].Seat)
	assert.Equal(t, 7, received[0].TurnNumber)
}

// TestBusNoRetainedEventForFreshBus verifies subscribing to a fresh bus
// delivers nothing.
func TestBusNoRetainedEventForFreshBus(t *testing.T) {
	bus := NewBus()

	called := false
	bus.Subscribe(func(Event) { called = true })
	assert.False(t, called)
	assert.Nil(t, bus.LastTurn())
}

// TestBusOnlyTurnChangesRetained verifies non-turn events are not
// redelivered to late subscribers.
func TestBusOnlyTurnChangesRetained(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventOpponentDisconnected, Seat: SeatHost, Remaining: 30})

	called := false
	bus.Subscribe(func(Event) { called = true })
	assert.False(t, called)
}

// TestBusRepublishTurn verifies a forced re-broadcast delivers the
// retained turn payload to existing subscribers.
func TestBusRepublishTurn(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(func(e Event) {
		if e.Type == EventTurnChanged {
			count++
		}
	})

	bus.Publish(Event{Type: EventTurnChanged, Seat: SeatHost, TurnNumber: 3})
	require.Equal(t, 1, count)

	bus.RepublishTurn()
	assert.Equal(t, 2, count)
}

// TestBusUnsubscribe verifies a removed listener stops receiving events.
func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	handle := bus.Subscribe(func(Event) { count++ })

	bus.Publish(Event{Type: EventTurnChanged, TurnNumber: 1})
	bus.Unsubscribe(handle)
	bus.Publish(Event{Type: EventTurnChanged, TurnNumber: 2})

	assert.Equal(t, 1, count)
}

// TestStaleTurnPayloadDiscard exercises the freshness rule consumers
// apply to redelivered payloads: a payload whose turn number is not
// newer than the cached value is discarded.
func TestStaleTurnPayloadDiscard(t *testing.T) {
	bus := NewBus()

	cachedTurn := 0
	var applied []int
	bus.Subscribe(func(e Event) {
		if e.Type != EventTurnChanged {
			return
		}
		if e.TurnNumber <= cachedTurn {
			return // stale redelivery
		}
		cachedTurn = e.TurnNumber
		applied = append(applied, e.TurnNumber)
	})

	bus.Publish(Event{Type: EventTurnChanged, TurnNumber: 4})
	bus.RepublishTurn() // duplicate of turn 4, must be ignored
	bus.Publish(Event{Type: EventTurnChanged, TurnNumber: 5})

	assert.Equal(t, []int{4, 5}, applied)
}
