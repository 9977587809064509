package duel

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TurnState is the authoritative record of turn ownership for one match.
// While started is true, exactly one seat owns the turn; the turn number
// is monotonically non-decreasing and increments only on a seat switch.
type TurnState struct {
	CurrentSeat Seat
	TurnNumber  int
	Started     bool
	ShuffleSeed int64
}

// TurnCoordinator owns the turn state: turn owner, turn counter and the
// start-of-match shuffle seed. All other components read from it; nothing
// else mutates turn state. The coordinator never runs turn-start side
// effects itself (draw, mana refill); it only exposes the new turn owner
// and the caller executes those effects exactly once.
type TurnCoordinator struct {
	mu     sync.RWMutex
	state  TurnState
	bus    *Bus
	logger *zap.Logger

	// seedSource generates the shuffle seed at match start. Injectable
	// for deterministic tests.
	seedSource func() int64
}

// NewTurnCoordinator creates a coordinator for a not-yet-started match.
func NewTurnCoordinator(bus *Bus, logger *zap.Logger) *TurnCoordinator {
	return &TurnCoordinator{
		bus:        bus,
		logger:     logger,
		seedSource: func() int64 { return rand.New(rand.NewSource(time.Now().UnixNano())).Int63() },
	}
}

// SetSeedSource overrides shuffle seed generation. Test hook.
func (tc *TurnCoordinator) SetSeedSource(source func() int64) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if source != nil {
		tc.seedSource = source
	}
}

// StartMatch starts the match once. The starting seat is the first entry
// of seatOrder (deterministic: normally the first seat that connected).
// Calling it again fails with ErrAlreadyStarted and changes nothing.
func (tc *TurnCoordinator) StartMatch(seatOrder []Seat) (TurnState, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.state.Started {
		return tc.state, ErrAlreadyStarted
	}
	if len(seatOrder) == 0 || !seatOrder[0].Valid() {
		return tc.state, ErrInvalidCommand
	}

	tc.state = TurnState{
		CurrentSeat: seatOrder[0],
		TurnNumber:  1,
		Started:     true,
		ShuffleSeed: tc.seedSource(),
	}

	if tc.logger != nil {
		tc.logger.Info("match started",
			zap.String("starting_seat", tc.state.CurrentSeat.String()),
			zap.Int64("shuffle_seed", tc.state.ShuffleSeed),
		)
	}

	if tc.bus != nil {
		tc.bus.Publish(Event{Type: EventMatchStarted, Seat: tc.state.CurrentSeat, TurnNumber: 1})
		tc.bus.Publish(Event{Type: EventTurnChanged, Seat: tc.state.CurrentSeat, TurnNumber: 1})
	}
	return tc.state, nil
}

// RequestEndTurn hands the turn to the opposing seat. Fails with
// ErrNotYourTurn unless seat currently owns the turn; a rejected call
// leaves the turn state unchanged.
func (tc *TurnCoordinator) RequestEndTurn(seat Seat) (TurnState, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !tc.state.Started {
		return tc.state, ErrNotStarted
	}
	if seat != tc.state.CurrentSeat {
		return tc.state, ErrNotYourTurn
	}

	tc.state.CurrentSeat = seat.Other()
	tc.state.TurnNumber++

	if tc.logger != nil {
		tc.logger.Debug("turn changed",
			zap.String("seat", tc.state.CurrentSeat.String()),
			zap.Int("turn", tc.state.TurnNumber),
		)
	}

	if tc.bus != nil {
		tc.bus.Publish(Event{
			Type:       EventTurnChanged,
			Seat:       tc.state.CurrentSeat,
			TurnNumber: tc.state.TurnNumber,
		})
	}
	return tc.state, nil
}

// CurrentSeat returns the seat that owns the turn. Pure read.
func (tc *TurnCoordinator) CurrentSeat() Seat {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state.CurrentSeat
}

// TurnNumber returns the current turn number (1-based once started).
func (tc *TurnCoordinator) TurnNumber() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state.TurnNumber
}

// ShuffleSeed returns the seed generated at match start.
func (tc *TurnCoordinator) ShuffleSeed() int64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state.ShuffleSeed
}

// Started reports whether StartMatch has run.
func (tc *TurnCoordinator) Started() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state.Started
}

// State returns a copy of the full turn state.
func (tc *TurnCoordinator) State() TurnState {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.state
}

// restoreState overwrites the turn state from a snapshot during
// reconciliation. A restore is distinct from a fresh match start: the
// started flag is set without re-running any start-of-match sequence, so
// re-initialization guards elsewhere must not treat it as a new match.
func (tc *TurnCoordinator) restoreState(state TurnState) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.state = state
	tc.state.Started = true
}
