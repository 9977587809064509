package duel

import "errors"

// Session-level error taxonomy. None of these are fatal to the process:
// the worst outcome of any failure here is a forfeited seat, which ends
// the match in a defined way.
var (
	// ErrNotYourTurn rejects a command from the seat that does not own
	// the current turn. No state changes.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrAlreadyStarted rejects a second StartMatch on a running match.
	ErrAlreadyStarted = errors.New("match already started")

	// ErrNotStarted rejects turn commands before StartMatch.
	ErrNotStarted = errors.New("match not started")

	// ErrSnapshotCorrupt indicates snapshot bytes that failed to decode
	// or failed checksum verification. The reconnection attempt is
	// aborted; the grace timer keeps running so another attempt can be
	// made.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrStaleConnection rejects a message carrying a connection
	// generation that has since been superseded by a rebind.
	ErrStaleConnection = errors.New("stale connection generation")

	// ErrGracePeriodExpired indicates the reconnection window elapsed
	// and the seat has been forfeited. Terminal for that seat.
	ErrGracePeriodExpired = errors.New("grace period expired")

	// ErrSeatForfeited rejects commands for a seat that already
	// forfeited the match.
	ErrSeatForfeited = errors.New("seat forfeited")

	// ErrNotDisconnected rejects a reconnection request for a seat that
	// is not currently in the disconnected state.
	ErrNotDisconnected = errors.New("seat is not disconnected")

	// ErrInvalidCommand rejects a structurally invalid command (bad
	// seat, index out of range, occupied slot, insufficient mana).
	ErrInvalidCommand = errors.New("invalid command")
)
