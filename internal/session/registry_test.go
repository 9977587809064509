package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openduel/duel-server-go/internal/duel"
)

func TestBindIssuesTokenAndFirstGeneration(t *testing.T) {
	r := NewRegistry(nil)

	binding, token, err := r.Bind(duel.SeatHost, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, duel.SeatHost, binding.Seat)
	assert.Equal(t, "conn-1", binding.ConnID)
	assert.Equal(t, uint64(1), binding.Generation)
	assert.NotEmpty(t, token)

	// The raw token is never stored.
	got, ok := r.Binding(duel.SeatHost)
	require.True(t, ok)
	assert.Equal(t, binding, got)
}

func TestBindRejectsBoundSeat(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.Bind(duel.SeatHost, "conn-1")
	require.NoError(t, err)

	_, _, err = r.Bind(duel.SeatHost, "conn-2")
	assert.ErrorIs(t, err, ErrSeatBound)
}

func TestBindRejectsInvalidSeat(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.Bind(duel.SeatNone, "conn-1")
	assert.Error(t, err)
}

func TestRebindIncrementsGeneration(t *testing.T) {
	r := NewRegistry(nil)
	_, token, err := r.Bind(duel.SeatGuest, "conn-1")
	require.NoError(t, err)

	// Generation strictly increases across successive rebinds and the
	// token issued at first bind stays valid for each of them.
	prev := uint64(1)
	for _, connID := range []string{"conn-2", "conn-3", "conn-4"} {
		binding, err := r.Rebind(duel.SeatGuest, connID, token)
		require.NoError(t, err)
		assert.Equal(t, connID, binding.ConnID)
		assert.Greater(t, binding.Generation, prev)
		prev = binding.Generation
	}
}

func TestRebindRejectsWrongToken(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.Bind(duel.SeatHost, "conn-1")
	require.NoError(t, err)

	_, err = r.Rebind(duel.SeatHost, "conn-2", "not-the-token")
	assert.ErrorIs(t, err, ErrTokenMismatch)

	// A failed rebind leaves the original binding untouched.
	binding, ok := r.Binding(duel.SeatHost)
	require.True(t, ok)
	assert.Equal(t, "conn-1", binding.ConnID)
	assert.Equal(t, uint64(1), binding.Generation)
}

func TestRebindUnknownSeat(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Rebind(duel.SeatGuest, "conn-1", "token")
	assert.ErrorIs(t, err, ErrUnknownSeat)
}

func TestValidateRejectsStaleGeneration(t *testing.T) {
	r := NewRegistry(nil)
	_, token, err := r.Bind(duel.SeatHost, "conn-1")
	require.NoError(t, err)
	require.NoError(t, r.Validate(duel.SeatHost, "conn-1", 1))

	binding, err := r.Rebind(duel.SeatHost, "conn-2", token)
	require.NoError(t, err)

	// Messages stamped with the superseded connection or generation are
	// stale, not errors to surface to the player.
	assert.ErrorIs(t, r.Validate(duel.SeatHost, "conn-1", 1), duel.ErrStaleConnection)
	assert.ErrorIs(t, r.Validate(duel.SeatHost, "conn-2", 1), duel.ErrStaleConnection)
	assert.ErrorIs(t, r.Validate(duel.SeatHost, "conn-1", binding.Generation), duel.ErrStaleConnection)
	assert.NoError(t, r.Validate(duel.SeatHost, "conn-2", binding.Generation))
}

func TestValidateUnknownSeat(t *testing.T) {
	r := NewRegistry(nil)
	assert.ErrorIs(t, r.Validate(duel.SeatHost, "conn-1", 1), ErrUnknownSeat)
}

func TestReleaseFreesSeat(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.Bind(duel.SeatGuest, "conn-1")
	require.NoError(t, err)

	r.Release(duel.SeatGuest)

	_, ok := r.Binding(duel.SeatGuest)
	assert.False(t, ok)

	// The seat can be bound fresh after release; generation restarts.
	binding, _, err := r.Bind(duel.SeatGuest, "conn-9")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), binding.Generation)
}

func TestIdentityBinderAdapters(t *testing.T) {
	r := NewRegistry(nil)
	var binder duel.IdentityBinder = r

	_, token, err := r.Bind(duel.SeatHost, "conn-1")
	require.NoError(t, err)

	gen, err := binder.RebindSeat(duel.SeatHost, "conn-2", token)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)

	binder.ReleaseSeat(duel.SeatHost)
	_, ok := r.Binding(duel.SeatHost)
	assert.False(t, ok)
}
