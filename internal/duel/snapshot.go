package duel

import (
	"fmt"
	"time"
)

// Seat-relative slot name prefixes. Slot naming always follows the
// perspective the snapshot was captured from, never an absolute seat.
const (
	slotMine     = "mine"
	slotOpponent = "opponent"
)

func slotName(prefix string, index int) string {
	return fmt.Sprintf("%s-%d", prefix, index)
}

// mirrorIndex maps a slot index between the two seats' views of the same
// board row: index 0 and the last index swap, middle indices hold.
func mirrorIndex(index, slotCount int) int {
	return slotCount - 1 - index
}

// BoardCardSnapshot records one occupied board slot.
type BoardCardSnapshot struct {
	SlotIndex     int
	SlotName      string
	CardID        string
	CurrentHealth int
	HasActed      bool
	SummoningSick bool
}

// PlayerSnapshot records one seat's complete side of the match. Card
// lists are ordered: hand in play order, deck in draw order, graveyard
// in discard order.
type PlayerSnapshot struct {
	Health           int
	MaxHealth        int
	Mana             int
	MaxMana          int
	HandCardIDs      []string
	BoardCards       []BoardCardSnapshot
	DeckCardIDs      []string
	GraveyardCardIDs []string
}

// GameStateSnapshot is the complete serializable match state used to
// resynchronize a reconnecting seat. Instances are transient: produced
// on demand and never persisted beyond the handoff.
//
// Host and Guest are absolute seat assignments; Perspective records
// which seat's local view produced the slot names and indices inside
// them. CapturedAt is unix milliseconds so the wire form is transport
// neutral.
type GameStateSnapshot struct {
	TurnNumber   int
	CurrentSeat  Seat
	ShuffleSeed  int64
	Perspective  Seat
	SlotsPerSide int
	Host         PlayerSnapshot
	Guest        PlayerSnapshot
	CapturedAt   int64
}

// Player returns the player snapshot for the given seat.
func (s *GameStateSnapshot) Player(seat Seat) PlayerSnapshot {
	if seat == SeatGuest {
		return s.Guest
	}
	return s.Host
}

// Clone returns a deep copy of the snapshot.
func (s GameStateSnapshot) Clone() GameStateSnapshot {
	out := s
	out.Host = clonePlayerSnapshot(s.Host)
	out.Guest = clonePlayerSnapshot(s.Guest)
	return out
}

func clonePlayerSnapshot(p PlayerSnapshot) PlayerSnapshot {
	out := p
	out.HandCardIDs = append([]string(nil), p.HandCardIDs...)
	out.DeckCardIDs = append([]string(nil), p.DeckCardIDs...)
	out.GraveyardCardIDs = append([]string(nil), p.GraveyardCardIDs...)
	out.BoardCards = append([]BoardCardSnapshot(nil), p.BoardCards...)
	return out
}

// TranslatePerspective remaps a snapshot into the target seat's view:
// "mine" and "opponent" slot naming swaps and slot indices mirror
// front-to-back, because each side renders the shared board as a mirror
// image of the other. Translating to the perspective the snapshot was
// captured from is the identity; translating twice round-trips exactly.
func TranslatePerspective(s GameStateSnapshot, targetSeat Seat) GameStateSnapshot {
	out := s.Clone()
	if !targetSeat.Valid() || targetSeat == s.Perspective {
		return out
	}

	out.Perspective = targetSeat
	flipBoardView(out.Host.BoardCards, s.SlotsPerSide)
	flipBoardView(out.Guest.BoardCards, s.SlotsPerSide)
	return out
}

// flipBoardView swaps mine/opponent framing and mirrors indices in place.
func flipBoardView(cards []BoardCardSnapshot, slotCount int) {
	for i := range cards {
		mirrored := mirrorIndex(cards[i].SlotIndex, slotCount)
		prefix := slotMine
		if len(cards[i].SlotName) >= len(slotMine) && cards[i].SlotName[:len(slotMine)] == slotMine {
			prefix = slotOpponent
		}
		cards[i].SlotIndex = mirrored
		cards[i].SlotName = slotName(prefix, mirrored)
	}
	sortBoardCards(cards)
}

// nowMillis is the snapshot timestamp source. Overridable in tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }
