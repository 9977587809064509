package duel

// BoardCard is a creature occupying one board slot.
type BoardCard struct {
	CardID        string
	CurrentHealth int
	HasActed      bool
	SummoningSick bool
}

// Board is the indexed slot registry for one seat's side of the table:
// a fixed array of slots addressed by index, populated at session setup.
// Slot lookups are always by index; there are no name-based searches.
type Board struct {
	slots []*BoardCard
}

// NewBoard creates a board with the given number of empty slots.
func NewBoard(slotCount int) *Board {
	return &Board{slots: make([]*BoardCard, slotCount)}
}

// SlotCount returns the number of slots on this side.
func (b *Board) SlotCount() int {
	return len(b.slots)
}

// InRange reports whether index addresses a valid slot.
func (b *Board) InRange(index int) bool {
	return index >= 0 && index < len(b.slots)
}

// Occupant returns the card in the slot, or nil if the slot is empty or
// out of range.
func (b *Board) Occupant(index int) *BoardCard {
	if !b.InRange(index) {
		return nil
	}
	return b.slots[index]
}

// Place puts a card into an empty slot. Returns false if the slot is out
// of range or occupied; the board is unchanged in that case.
func (b *Board) Place(index int, card *BoardCard) bool {
	if !b.InRange(index) || b.slots[index] != nil || card == nil {
		return false
	}
	b.slots[index] = card
	return true
}

// Remove clears a slot and returns its former occupant, if any.
func (b *Board) Remove(index int) *BoardCard {
	if !b.InRange(index) {
		return nil
	}
	card := b.slots[index]
	b.slots[index] = nil
	return card
}

// Clear empties every slot. Used when rebuilding from a snapshot.
func (b *Board) Clear() {
	for i := range b.slots {
		b.slots[i] = nil
	}
}

// Occupied returns the indices of occupied slots in ascending order.
func (b *Board) Occupied() []int {
	indices := make([]int, 0, len(b.slots))
	for i, card := range b.slots {
		if card != nil {
			indices = append(indices, i)
		}
	}
	return indices
}

// ResetTurnFlags clears the per-turn action flags at the start of the
// owning seat's turn: cards may act again and summoning sickness wears
// off.
func (b *Board) ResetTurnFlags() {
	for _, card := range b.slots {
		if card != nil {
			card.HasActed = false
			card.SummoningSick = false
		}
	}
}
