package duel

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openduel/duel-server-go/internal/cards"
)

// Manager owns the live matches on this server, keyed by match ID.
type Manager struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	cfg      MatchConfig
	resolver cards.Resolver
	matches  map[string]*Match
}

// NewManager creates a match manager.
func NewManager(cfg MatchConfig, resolver cards.Resolver, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		cfg:      cfg,
		resolver: resolver,
		matches:  make(map[string]*Match),
	}
}

// SetGracePeriod updates the reconnection grace period for matches
// created from now on. Running matches keep the period they started
// with.
func (mgr *Manager) SetGracePeriod(grace time.Duration) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if grace > 0 {
		mgr.cfg.GracePeriod = grace
	}
}

// CreateMatch builds a new match with starter decks for both seats and
// registers it under a fresh ID.
func (mgr *Manager) CreateMatch(binder IdentityBinder) (*Match, error) {
	mgr.mu.Lock()
	cfg := mgr.cfg
	mgr.mu.Unlock()

	id := uuid.NewString()
	match := NewMatch(id, cfg, mgr.resolver, binder, mgr.logger)

	for _, seat := range []Seat{SeatHost, SeatGuest} {
		if err := match.SetDeck(seat, cards.StarterDeckList(cfg.DeckSize)); err != nil {
			return nil, fmt.Errorf("failed to assign deck for %s: %w", seat, err)
		}
	}

	mgr.mu.Lock()
	mgr.matches[id] = match
	mgr.mu.Unlock()

	if mgr.logger != nil {
		mgr.logger.Info("match created", zap.String("match_id", id))
	}
	return match, nil
}

// GetMatch looks up a match by ID.
func (mgr *Manager) GetMatch(id string) (*Match, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	match, ok := mgr.matches[id]
	return match, ok
}

// RemoveMatch drops a finished match. Nothing about a match persists
// past this point.
func (mgr *Manager) RemoveMatch(id string) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	delete(mgr.matches, id)

	if mgr.logger != nil {
		mgr.logger.Info("match removed", zap.String("match_id", id))
	}
}

// MatchCount returns the number of live matches.
func (mgr *Manager) MatchCount() int {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return len(mgr.matches)
}
