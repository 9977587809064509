package duel

import "sort"

func sortBoardCards(cards []BoardCardSnapshot) {
	sort.Slice(cards, func(i, j int) bool { return cards[i].SlotIndex < cards[j].SlotIndex })
}

// playerState holds one seat's side of the match: life, mana, and the
// four card collections. All mutation happens under the owning Match's
// lock; the struct itself is not safe for concurrent use.
type playerState struct {
	seat      Seat
	health    int
	maxHealth int
	mana      int
	maxMana   int
	hand      []string // card IDs, play order
	deck      []string // card IDs, draw order (index 0 drawn next)
	graveyard []string // card IDs, discard order
	board     *Board
}

func newPlayerState(seat Seat, health, slotCount int) *playerState {
	return &playerState{
		seat:      seat,
		health:    health,
		maxHealth: health,
		hand:      make([]string, 0),
		deck:      make([]string, 0),
		graveyard: make([]string, 0),
		board:     NewBoard(slotCount),
	}
}

// draw moves the top card of the deck into the hand. Returns the drawn
// card ID and false when the deck is empty.
func (p *playerState) draw() (string, bool) {
	if len(p.deck) == 0 {
		return "", false
	}
	card := p.deck[0]
	p.deck = p.deck[1:]
	p.hand = append(p.hand, card)
	return card, true
}

// removeFromHand removes and returns the card at the given hand index.
func (p *playerState) removeFromHand(index int) (string, bool) {
	if index < 0 || index >= len(p.hand) {
		return "", false
	}
	card := p.hand[index]
	p.hand = append(p.hand[:index], p.hand[index+1:]...)
	return card, true
}

// beginTurn applies the standard start-of-turn effects for this seat:
// the mana cap grows by one up to manaCap, the pool refills, and board
// cards become able to act again. The caller is responsible for running
// this exactly once per turn and never during a snapshot restore.
func (p *playerState) beginTurn(manaCap int) {
	if p.maxMana < manaCap {
		p.maxMana++
	}
	p.mana = p.maxMana
	p.board.ResetTurnFlags()
}

// snapshot captures this side's state framed for the capturing seat: the
// capturer's own slots read "mine" with native indices, opposing slots
// read "opponent" with mirrored indices, because the two sides render
// the board as mirror images of each other.
func (p *playerState) snapshot(perspective Seat) PlayerSnapshot {
	occupied := p.board.Occupied()
	boardCards := make([]BoardCardSnapshot, 0, len(occupied))
	for _, idx := range occupied {
		card := p.board.Occupant(idx)
		viewIdx := idx
		prefix := slotMine
		if p.seat != perspective {
			viewIdx = mirrorIndex(idx, p.board.SlotCount())
			prefix = slotOpponent
		}
		boardCards = append(boardCards, BoardCardSnapshot{
			SlotIndex:     viewIdx,
			SlotName:      slotName(prefix, viewIdx),
			CardID:        card.CardID,
			CurrentHealth: card.CurrentHealth,
			HasActed:      card.HasActed,
			SummoningSick: card.SummoningSick,
		})
	}

	sortBoardCards(boardCards)

	return PlayerSnapshot{
		Health:           p.health,
		MaxHealth:        p.maxHealth,
		Mana:             p.mana,
		MaxMana:          p.maxMana,
		HandCardIDs:      append([]string(nil), p.hand...),
		BoardCards:       boardCards,
		DeckCardIDs:      append([]string(nil), p.deck...),
		GraveyardCardIDs: append([]string(nil), p.graveyard...),
	}
}

// applySnapshot rebuilds this side from a player snapshot. The snapshot
// must already be translated into this seat's perspective: board slot
// indices are applied as-is. Collections are cleared and rebuilt in one
// step so no partial state is ever observable.
func (p *playerState) applySnapshot(snap PlayerSnapshot) {
	p.health = snap.Health
	p.maxHealth = snap.MaxHealth
	p.mana = snap.Mana
	p.maxMana = snap.MaxMana
	p.hand = append([]string(nil), snap.HandCardIDs...)
	p.deck = append([]string(nil), snap.DeckCardIDs...)
	p.graveyard = append([]string(nil), snap.GraveyardCardIDs...)

	p.board.Clear()
	for _, bc := range snap.BoardCards {
		p.board.Place(bc.SlotIndex, &BoardCard{
			CardID:        bc.CardID,
			CurrentHealth: bc.CurrentHealth,
			HasActed:      bc.HasActed,
			SummoningSick: bc.SummoningSick,
		})
	}
}
