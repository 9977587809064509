package duel

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openduel/duel-server-go/internal/cards"
)

// MatchConfig carries the tunable rules of one match.
type MatchConfig struct {
	StartingHealth  int
	ManaCap         int
	OpeningHandSize int
	DeckSize        int
	BoardSlots      int
	GracePeriod     time.Duration
	JournalDepth    int
}

// DefaultMatchConfig returns the standard ruleset.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		StartingHealth:  30,
		ManaCap:         10,
		OpeningHandSize: 4,
		DeckSize:        30,
		BoardSlots:      5,
		GracePeriod:     120 * time.Second,
		JournalDepth:    16,
	}
}

// IdentityBinder is the slice of the identity registry the match needs:
// rebinding a seat to a new connection on reconnect and releasing the
// seat on forfeit.
type IdentityBinder interface {
	RebindSeat(seat Seat, connID, token string) (uint64, error)
	ReleaseSeat(seat Seat)
}

// Match is the authoritative session for one two-player duel. It is an
// explicitly constructed service handed by reference to its consumers;
// there is no ambient global instance. A single mutex serializes every
// state mutation, so no two commands race.
type Match struct {
	id       string
	cfg      MatchConfig
	logger   *zap.Logger
	resolver cards.Resolver

	bus         *Bus
	coordinator *TurnCoordinator
	tracker     *ConnectionTracker
	reconciler  *Reconciler
	journal     *Journal

	mu      sync.Mutex
	players map[Seat]*playerState
	ended   bool
	winner  Seat
}

// NewMatch wires a full session: coordinator, tracker, reconciler,
// journal and broadcast bus. binder may be nil in tests that never
// exercise reconnection.
func NewMatch(id string, cfg MatchConfig, resolver cards.Resolver, binder IdentityBinder, logger *zap.Logger) *Match {
	bus := NewBus()
	m := &Match{
		id:       id,
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		bus:      bus,
		journal:  NewJournal(cfg.JournalDepth),
		players: map[Seat]*playerState{
			SeatHost:  newPlayerState(SeatHost, cfg.StartingHealth, cfg.BoardSlots),
			SeatGuest: newPlayerState(SeatGuest, cfg.StartingHealth, cfg.BoardSlots),
		},
	}
	m.coordinator = NewTurnCoordinator(bus, logger)
	m.reconciler = NewReconciler(m, logger)

	hooks := TrackerHooks{
		Started:   m.coordinator.Started,
		Reconcile: m.reconciler.RestoreLatest,
		Forfeit:   m.forfeit,
	}
	if binder != nil {
		hooks.Rebind = binder.RebindSeat
		hooks.Release = binder.ReleaseSeat
	}
	m.tracker = NewConnectionTracker(cfg.GracePeriod, bus, hooks, logger)
	return m
}

// ID returns the match identifier.
func (m *Match) ID() string { return m.id }

// Bus returns the match's broadcast channel.
func (m *Match) Bus() *Bus { return m.bus }

// Coordinator returns the turn coordinator, the single source of truth
// for turn ownership.
func (m *Match) Coordinator() *TurnCoordinator { return m.coordinator }

// Tracker returns the connection tracker.
func (m *Match) Tracker() *ConnectionTracker { return m.tracker }

// Journal returns the in-match snapshot history.
func (m *Match) Journal() *Journal { return m.journal }

// SetDeck assigns a seat's deck list (draw order before shuffling).
// Must be called before Start.
func (m *Match) SetDeck(seat Seat, deck []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.coordinator.Started() {
		return ErrAlreadyStarted
	}
	player, ok := m.players[seat]
	if !ok {
		return ErrInvalidCommand
	}
	player.deck = append([]string(nil), deck...)
	return nil
}

// Start begins the match: the coordinator picks the starting seat and
// generates the shuffle seed, both decks are shuffled deterministically
// from that seed, opening hands are drawn, and the starting seat's first
// turn begins. Calling Start on a running match fails with
// ErrAlreadyStarted and changes nothing; a snapshot restore never comes
// through here.
func (m *Match) Start(seatOrder []Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.coordinator.StartMatch(seatOrder)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(state.ShuffleSeed))
	for _, seat := range []Seat{SeatHost, SeatGuest} {
		deck := m.players[seat].deck
		rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	}

	for _, seat := range []Seat{SeatHost, SeatGuest} {
		for i := 0; i < m.cfg.OpeningHandSize; i++ {
			m.players[seat].draw()
		}
	}

	m.players[state.CurrentSeat].beginTurn(m.cfg.ManaCap)
	m.recordSnapshotLocked()
	return nil
}

// EndTurn hands the turn to the opposing seat and runs the new owner's
// start-of-turn effects exactly once. Rejected commands (wrong seat,
// not started, match over) leave all state unchanged.
func (m *Match) EndTurn(seat Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return ErrSeatForfeited
	}
	state, err := m.coordinator.RequestEndTurn(seat)
	if err != nil {
		return err
	}

	// Turn-start effects run here, on the live turn change only. A
	// snapshot restore writes player state directly and never passes
	// through this path: the restored state already includes them. The
	// new owner's mana refills and grows by one, and they draw a card.
	player := m.players[state.CurrentSeat]
	player.beginTurn(m.cfg.ManaCap)
	player.draw()
	m.recordSnapshotLocked()
	return nil
}

// PlayCard validates and applies a card play: seat owns the turn, the
// hand index resolves to a known card, the seat can pay its cost, and
// the target slot on the seat's own side is free. Card effect resolution
// is external; the session only moves the card and spends the mana.
func (m *Match) PlayCard(seat Seat, cardIndex, slotIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return ErrSeatForfeited
	}
	if !m.coordinator.Started() {
		return ErrNotStarted
	}
	if seat != m.coordinator.CurrentSeat() {
		return ErrNotYourTurn
	}

	player := m.players[seat]
	if cardIndex < 0 || cardIndex >= len(player.hand) {
		return fmt.Errorf("%w: hand index %d out of range", ErrInvalidCommand, cardIndex)
	}
	cardID := player.hand[cardIndex]
	card, err := m.resolver.Resolve(cardID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if player.mana < card.Cost {
		return fmt.Errorf("%w: need %d mana, have %d", ErrInvalidCommand, card.Cost, player.mana)
	}
	if !player.board.InRange(slotIndex) || player.board.Occupant(slotIndex) != nil {
		return fmt.Errorf("%w: slot %d unavailable", ErrInvalidCommand, slotIndex)
	}

	// All validation passed; mutate.
	player.removeFromHand(cardIndex)
	player.mana -= card.Cost
	player.board.Place(slotIndex, &BoardCard{
		CardID:        cardID,
		CurrentHealth: card.Health,
		SummoningSick: true,
	})

	if m.logger != nil {
		m.logger.Debug("card played",
			zap.String("match_id", m.id),
			zap.String("seat", seat.String()),
			zap.String("card_id", cardID),
			zap.Int("slot", slotIndex),
		)
	}

	m.bus.Publish(Event{Type: EventCardPlayed, Seat: seat, TurnNumber: m.coordinator.TurnNumber()})
	m.recordSnapshotLocked()
	return nil
}

// UseAbility validates an ability activation for a board card: the seat
// owns the turn, the slot is occupied, and the card has not acted this
// turn and is past summoning sickness. The ability's effect resolves
// externally; the session records only that the card acted.
func (m *Match) UseAbility(seat Seat, slotIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return ErrSeatForfeited
	}
	if !m.coordinator.Started() {
		return ErrNotStarted
	}
	if seat != m.coordinator.CurrentSeat() {
		return ErrNotYourTurn
	}

	card := m.players[seat].board.Occupant(slotIndex)
	if card == nil {
		return fmt.Errorf("%w: slot %d is empty", ErrInvalidCommand, slotIndex)
	}
	if card.SummoningSick {
		return fmt.Errorf("%w: card has summoning sickness", ErrInvalidCommand)
	}
	if card.HasActed {
		return fmt.Errorf("%w: card already acted this turn", ErrInvalidCommand)
	}

	card.HasActed = true
	m.recordSnapshotLocked()
	return nil
}

// Capture produces a complete snapshot of the match framed from the
// capturing seat's perspective.
func (m *Match) Capture(capturingSeat Seat) GameStateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captureLocked(capturingSeat)
}

func (m *Match) captureLocked(capturingSeat Seat) GameStateSnapshot {
	state := m.coordinator.State()
	return GameStateSnapshot{
		TurnNumber:   state.TurnNumber,
		CurrentSeat:  state.CurrentSeat,
		ShuffleSeed:  state.ShuffleSeed,
		Perspective:  capturingSeat,
		SlotsPerSide: m.cfg.BoardSlots,
		Host:         m.players[SeatHost].snapshot(capturingSeat),
		Guest:        m.players[SeatGuest].snapshot(capturingSeat),
		CapturedAt:   nowMillis(),
	}
}

// recordSnapshotLocked appends the canonical (host-framed) snapshot to
// the journal. Caller holds m.mu.
func (m *Match) recordSnapshotLocked() {
	m.journal.Record(m.captureLocked(SeatHost))
}

// HandleConnectionLost records a fresh snapshot for the eventual
// reconnect handoff, then drives the tracker's disconnect transition.
func (m *Match) HandleConnectionLost(seat Seat) {
	if m.coordinator.Started() {
		m.mu.Lock()
		m.recordSnapshotLocked()
		m.mu.Unlock()
	}
	m.tracker.OnConnectionLost(seat)
}

// HandleReconnect drives the tracker's restore transition for a
// returning connection.
func (m *Match) HandleReconnect(seat Seat, connID, token string) error {
	return m.tracker.OnConnectionRestored(seat, connID, token)
}

// forfeit ends the match with the given seat as the loser. After this,
// no further turn changes are accepted or broadcast.
func (m *Match) forfeit(seat Seat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended {
		return
	}
	m.ended = true
	m.winner = seat.Other()

	if m.logger != nil {
		m.logger.Info("match ended by forfeit",
			zap.String("match_id", m.id),
			zap.String("forfeited_seat", seat.String()),
			zap.String("winner", m.winner.String()),
		)
	}
}

// Ended reports whether the match is over.
func (m *Match) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

// Winner returns the winning seat once the match has ended.
func (m *Match) Winner() Seat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winner
}
