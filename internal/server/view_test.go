package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openduel/duel-server-go/internal/duel"
)

func guestFramedSnapshot() *duel.GameStateSnapshot {
	return &duel.GameStateSnapshot{
		TurnNumber:   4,
		CurrentSeat:  duel.SeatGuest,
		Perspective:  duel.SeatGuest,
		SlotsPerSide: 5,
		Host: duel.PlayerSnapshot{
			Health:      27,
			MaxHealth:   30,
			Mana:        2,
			MaxMana:     4,
			HandCardIDs: []string{"stone-golem", "gale-hawk", "thorn-wolf"},
			DeckCardIDs: []string{"elder-wyrm", "void-reaver"},
			BoardCards: []duel.BoardCardSnapshot{
				{SlotIndex: 3, SlotName: "opponent-3", CardID: "ember-imp", CurrentHealth: 1},
			},
		},
		Guest: duel.PlayerSnapshot{
			Health:      30,
			MaxHealth:   30,
			Mana:        4,
			MaxMana:     4,
			HandCardIDs: []string{"river-sprite"},
			DeckCardIDs: []string{"frost-adept", "dune-strider", "iron-sentinel"},
			BoardCards: []duel.BoardCardSnapshot{
				{SlotIndex: 0, SlotName: "mine-0", CardID: "stone-golem", CurrentHealth: 5, SummoningSick: true},
			},
			GraveyardCardIDs: []string{"ember-imp"},
		},
		CapturedAt: 1700000000000,
	}
}

func TestSnapshotPayloadFramesForSeat(t *testing.T) {
	snap := guestFramedSnapshot()
	payload := newSnapshotPayload(duel.SeatGuest, snap)

	assert.Equal(t, 4, payload.TurnNumber)
	assert.True(t, payload.YourTurn)
	assert.Equal(t, int64(1700000000000), payload.CapturedAt)

	// Mine is the receiving seat's own side with the full hand.
	assert.Equal(t, []string{"river-sprite"}, payload.Mine.Hand)
	assert.Equal(t, 3, payload.Mine.DeckCount)
	assert.Equal(t, []string{"ember-imp"}, payload.Mine.Graveyard)
	require.Len(t, payload.Mine.Board, 1)
	assert.Equal(t, "mine-0", payload.Mine.Board[0].SlotName)
	assert.True(t, payload.Mine.Board[0].SummoningSick)
}

func TestSnapshotPayloadHidesOpponentHand(t *testing.T) {
	snap := guestFramedSnapshot()
	payload := newSnapshotPayload(duel.SeatGuest, snap)

	// Hidden information never crosses the wire: the opposing hand and
	// deck appear only as counts.
	assert.Nil(t, payload.Opponent.Hand)
	assert.Equal(t, 2, payload.Opponent.DeckCount)
	assert.Equal(t, 27, payload.Opponent.Health)
	require.Len(t, payload.Opponent.Board, 1)
	assert.Equal(t, "opponent-3", payload.Opponent.Board[0].SlotName)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stone-golem\",\"gale-hawk")
	assert.NotContains(t, string(data), "elder-wyrm")
}

func TestSnapshotPayloadYourTurnFalseForWaitingSeat(t *testing.T) {
	snap := guestFramedSnapshot()
	snap.CurrentSeat = duel.SeatHost

	payload := newSnapshotPayload(duel.SeatGuest, snap)
	assert.False(t, payload.YourTurn)
}
