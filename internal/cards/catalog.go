// Package cards provides the card-definition lookup consumed by the
// session layer. Card effect resolution is not handled here; the session
// core only needs stable IDs and the cost/stat data required to validate
// plays.
package cards

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownCard indicates a card ID with no definition in the catalog.
var ErrUnknownCard = errors.New("unknown card id")

// Card is the displayable definition behind a card ID.
type Card struct {
	ID     string
	Name   string
	Cost   int
	Attack int
	Health int
}

// Resolver is the lookup interface the session layer consumes.
type Resolver interface {
	Resolve(id string) (Card, error)
}

// Catalog is an in-memory card catalog.
type Catalog struct {
	mu    sync.RWMutex
	cards map[string]Card
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{cards: make(map[string]Card)}
}

// NewStarterCatalog creates a catalog preloaded with the starter set.
func NewStarterCatalog() *Catalog {
	c := NewCatalog()
	for _, card := range starterSet {
		c.Register(card)
	}
	return c
}

// Register adds or replaces a card definition.
func (c *Catalog) Register(card Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[card.ID] = card
}

// Resolve returns the definition for a card ID.
func (c *Catalog) Resolve(id string) (Card, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	card, ok := c.cards[id]
	if !ok {
		return Card{}, fmt.Errorf("%w: %s", ErrUnknownCard, id)
	}
	return card, nil
}

// Size returns the number of registered definitions.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

// StarterDeckList returns an ordered deck of card IDs of the requested
// size, cycling through the starter set. The order is fixed; the match
// shuffles it with the match seed.
func StarterDeckList(size int) []string {
	deck := make([]string, 0, size)
	for len(deck) < size {
		for _, card := range starterSet {
			if len(deck) == size {
				break
			}
			deck = append(deck, card.ID)
		}
	}
	return deck
}

// starterSet is the built-in card pool used until deck building exists.
var starterSet = []Card{
	{ID: "ember-imp", Name: "Ember Imp", Cost: 1, Attack: 2, Health: 1},
	{ID: "stone-golem", Name: "Stone Golem", Cost: 3, Attack: 2, Health: 5},
	{ID: "river-sprite", Name: "River Sprite", Cost: 2, Attack: 2, Health: 2},
	{ID: "thorn-wolf", Name: "Thorn Wolf", Cost: 2, Attack: 3, Health: 1},
	{ID: "gale-hawk", Name: "Gale Hawk", Cost: 3, Attack: 3, Health: 2},
	{ID: "iron-sentinel", Name: "Iron Sentinel", Cost: 4, Attack: 3, Health: 6},
	{ID: "frost-adept", Name: "Frost Adept", Cost: 4, Attack: 4, Health: 4},
	{ID: "dune-strider", Name: "Dune Strider", Cost: 5, Attack: 5, Health: 4},
	{ID: "void-reaver", Name: "Void Reaver", Cost: 6, Attack: 6, Health: 5},
	{ID: "elder-wyrm", Name: "Elder Wyrm", Cost: 7, Attack: 7, Health: 7},
}
