package duel

import "fmt"

// Seat identifies one of the two logical participants of a match.
// A seat is stable for the lifetime of the match: a reconnecting player
// keeps the same seat even though the underlying connection changes.
type Seat int

const (
	SeatNone Seat = iota
	SeatHost
	SeatGuest
)

var seatNames = map[Seat]string{
	SeatNone:  "NONE",
	SeatHost:  "HOST",
	SeatGuest: "GUEST",
}

func (s Seat) String() string {
	if name, ok := seatNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SEAT_%d", int(s))
}

// Other returns the opposing seat. SeatNone maps to itself.
func (s Seat) Other() Seat {
	switch s {
	case SeatHost:
		return SeatGuest
	case SeatGuest:
		return SeatHost
	default:
		return SeatNone
	}
}

// Valid reports whether the seat refers to an actual participant.
func (s Seat) Valid() bool {
	return s == SeatHost || s == SeatGuest
}
