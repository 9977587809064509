// Package session maps transport connections to stable logical seats.
// The binding survives reconnection: the seat stays fixed while the
// connection handle underneath it is replaced, and a generation counter
// lets the rest of the system reject messages from a superseded
// connection.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openduel/duel-server-go/internal/duel"
)

var (
	// ErrSeatBound rejects a first-time bind for a seat that already has
	// a live binding. Use Rebind for reconnection.
	ErrSeatBound = errors.New("seat already bound")

	// ErrUnknownSeat indicates no binding exists for the seat.
	ErrUnknownSeat = errors.New("no binding for seat")

	// ErrTokenMismatch rejects a reconnection whose identity token does
	// not match the one issued at first bind.
	ErrTokenMismatch = errors.New("identity token mismatch")
)

// Binding ties a seat to its current connection handle. Generation
// increments on every rebind and never decreases.
type Binding struct {
	Seat       duel.Seat
	ConnID     string
	Generation uint64
}

type entry struct {
	connID     string
	generation uint64
	tokenHash  []byte
}

// Registry is the identity registry for one match: at most one binding
// per seat. Entries are released only when a seat forfeits, never on a
// plain disconnect.
type Registry struct {
	mu       sync.Mutex
	logger   *zap.Logger
	bindings map[duel.Seat]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		bindings: make(map[duel.Seat]*entry),
	}
}

// Bind creates the initial binding for a seat and issues the identity
// token the player must present to reconnect. Only a hash of the token
// is retained.
func (r *Registry) Bind(seat duel.Seat, connID string) (Binding, string, error) {
	if !seat.Valid() {
		return Binding{}, "", fmt.Errorf("bind: invalid seat %s", seat)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bindings[seat]; exists {
		return Binding{}, "", ErrSeatBound
	}

	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return Binding{}, "", fmt.Errorf("failed to hash identity token: %w", err)
	}

	r.bindings[seat] = &entry{connID: connID, generation: 1, tokenHash: hash}

	if r.logger != nil {
		r.logger.Info("seat bound",
			zap.String("seat", seat.String()),
			zap.String("conn_id", connID),
		)
	}
	return Binding{Seat: seat, ConnID: connID, Generation: 1}, token, nil
}

// Rebind replaces the connection handle for a seat after verifying the
// identity token, incrementing the generation so messages referencing
// the old connection are rejected rather than applied. The token stays
// valid across rebinds: it identifies the player, not the connection.
func (r *Registry) Rebind(seat duel.Seat, newConnID, token string) (Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.bindings[seat]
	if !exists {
		return Binding{}, ErrUnknownSeat
	}
	if err := bcrypt.CompareHashAndPassword(e.tokenHash, []byte(token)); err != nil {
		return Binding{}, ErrTokenMismatch
	}

	e.connID = newConnID
	e.generation++

	if r.logger != nil {
		r.logger.Info("seat rebound",
			zap.String("seat", seat.String()),
			zap.String("conn_id", newConnID),
			zap.Uint64("generation", e.generation),
		)
	}
	return Binding{Seat: seat, ConnID: newConnID, Generation: e.generation}, nil
}

// Validate checks that a message's connection handle and generation match
// the current binding. A superseded generation or a foreign connection
// yields duel.ErrStaleConnection; callers drop the message silently.
func (r *Registry) Validate(seat duel.Seat, connID string, generation uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.bindings[seat]
	if !exists {
		return ErrUnknownSeat
	}
	if e.connID != connID || e.generation != generation {
		return duel.ErrStaleConnection
	}
	return nil
}

// Binding returns the current binding for a seat.
func (r *Registry) Binding(seat duel.Seat) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.bindings[seat]
	if !exists {
		return Binding{}, false
	}
	return Binding{Seat: seat, ConnID: e.connID, Generation: e.generation}, true
}

// RebindSeat adapts Rebind to the duel.IdentityBinder interface,
// returning only the new generation.
func (r *Registry) RebindSeat(seat duel.Seat, connID, token string) (uint64, error) {
	binding, err := r.Rebind(seat, connID, token)
	if err != nil {
		return 0, err
	}
	return binding.Generation, nil
}

// ReleaseSeat adapts Release to the duel.IdentityBinder interface.
func (r *Registry) ReleaseSeat(seat duel.Seat) {
	r.Release(seat)
}

// Release removes a seat's binding. Called only when the seat forfeits;
// a disconnected seat keeps its binding for the whole grace period.
func (r *Registry) Release(seat duel.Seat) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.bindings, seat)

	if r.logger != nil {
		r.logger.Info("seat released", zap.String("seat", seat.String()))
	}
}
