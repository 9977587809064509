package server

import (
	"github.com/openduel/duel-server-go/internal/duel"
)

// SnapshotPayload is the wire form of a restored game state, framed for
// the receiving seat: Mine is that seat's own side, Opponent the other.
type SnapshotPayload struct {
	TurnNumber  int              `json:"turn_number"`
	CurrentSeat int              `json:"current_seat"`
	YourTurn    bool             `json:"your_turn"`
	Mine        PlayerPayload    `json:"mine"`
	Opponent    PlayerPayload    `json:"opponent"`
	CapturedAt  int64            `json:"captured_at"`
}

// PlayerPayload is the wire form of one side of the match.
type PlayerPayload struct {
	Health    int                `json:"health"`
	MaxHealth int                `json:"max_health"`
	Mana      int                `json:"mana"`
	MaxMana   int                `json:"max_mana"`
	Hand      []string           `json:"hand"`
	Board     []BoardCardPayload `json:"board"`
	DeckCount int                `json:"deck_count"`
	Graveyard []string           `json:"graveyard"`
}

// BoardCardPayload is the wire form of one occupied board slot.
type BoardCardPayload struct {
	SlotIndex     int    `json:"slot_index"`
	SlotName      string `json:"slot_name"`
	CardID        string `json:"card_id"`
	CurrentHealth int    `json:"current_health"`
	HasActed      bool   `json:"has_acted"`
	SummoningSick bool   `json:"summoning_sick"`
}

// newSnapshotPayload builds the restored-state payload for a seat from a
// snapshot already translated into that seat's perspective. The
// opponent's hand and deck contents stay hidden: only counts cross the
// wire for the other side.
func newSnapshotPayload(seat duel.Seat, snap *duel.GameStateSnapshot) SnapshotPayload {
	return SnapshotPayload{
		TurnNumber:  snap.TurnNumber,
		CurrentSeat: int(snap.CurrentSeat),
		YourTurn:    snap.CurrentSeat == seat,
		Mine:        newPlayerPayload(snap.Player(seat), true),
		Opponent:    newPlayerPayload(snap.Player(seat.Other()), false),
		CapturedAt:  snap.CapturedAt,
	}
}

func newPlayerPayload(p duel.PlayerSnapshot, mine bool) PlayerPayload {
	board := make([]BoardCardPayload, 0, len(p.BoardCards))
	for _, bc := range p.BoardCards {
		board = append(board, BoardCardPayload{
			SlotIndex:     bc.SlotIndex,
			SlotName:      bc.SlotName,
			CardID:        bc.CardID,
			CurrentHealth: bc.CurrentHealth,
			HasActed:      bc.HasActed,
			SummoningSick: bc.SummoningSick,
		})
	}

	out := PlayerPayload{
		Health:    p.Health,
		MaxHealth: p.MaxHealth,
		Mana:      p.Mana,
		MaxMana:   p.MaxMana,
		Board:     board,
		DeckCount: len(p.DeckCardIDs),
		Graveyard: append([]string(nil), p.GraveyardCardIDs...),
	}
	if mine {
		out.Hand = append([]string(nil), p.HandCardIDs...)
	}
	return out
}
