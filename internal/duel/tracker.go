package duel

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnStatus is the per-seat connection lifecycle state.
type ConnStatus int

const (
	StatusConnected ConnStatus = iota
	StatusDisconnected
	StatusForfeited
)

func (s ConnStatus) String() string {
	switch s {
	case StatusConnected:
		return "CONNECTED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusForfeited:
		return "FORFEITED"
	default:
		return "UNKNOWN"
	}
}

// TrackerHooks are the collaborators the tracker drives during the
// connection lifecycle. Accepting funcs rather than concrete types keeps
// the tracker decoupled from the identity registry and the match.
type TrackerHooks struct {
	// Started reports whether the match has begun. Connection loss
	// before match start carries no grace period and is ignored.
	Started func() bool

	// Rebind replaces the seat's connection handle after verifying the
	// identity token, returning the new binding generation.
	Rebind func(seat Seat, connID, token string) (uint64, error)

	// Reconcile replays the last known snapshot into the rejoining
	// seat's session. An error aborts the reconnection attempt and
	// leaves the seat disconnected with the grace timer running.
	Reconcile func(seat Seat) error

	// Release frees the seat's identity binding. Called only on forfeit.
	Release func(seat Seat)

	// Forfeit marks the seat as having lost the match.
	Forfeit func(seat Seat)
}

type seatConn struct {
	status ConnStatus
	since  time.Time
	epoch  int // increments per disconnect; guards against stale timer fires
	timer  *time.Timer
	ticks  chan struct{} // closed to stop the countdown reporter
}

// ConnectionTracker owns the per-seat connection state machine:
// Connected -> Disconnected -> {Connected, Forfeited}. Forfeited is
// terminal for the match. The grace timer and a reconnection for the
// same seat are mutually exclusive: whichever claims the seat first
// under the lock wins, and the loser observes the state change and backs
// off.
type ConnectionTracker struct {
	mu     sync.Mutex
	grace  time.Duration
	seats  map[Seat]*seatConn
	bus    *Bus
	hooks  TrackerHooks
	logger *zap.Logger
	clock  func() time.Time
}

// NewConnectionTracker creates a tracker with both seats connected.
func NewConnectionTracker(grace time.Duration, bus *Bus, hooks TrackerHooks, logger *zap.Logger) *ConnectionTracker {
	return &ConnectionTracker{
		grace: grace,
		seats: map[Seat]*seatConn{
			SeatHost:  {status: StatusConnected},
			SeatGuest: {status: StatusConnected},
		},
		bus:    bus,
		hooks:  hooks,
		logger: logger,
		clock:  time.Now,
	}
}

// SetGracePeriod updates the grace period. Applies to future
// disconnects; a running timer is not rescheduled.
func (ct *ConnectionTracker) SetGracePeriod(grace time.Duration) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if grace > 0 {
		ct.grace = grace
	}
}

// GracePeriod returns the configured grace period.
func (ct *ConnectionTracker) GracePeriod() time.Duration {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.grace
}

// Status returns the seat's connection status and, when disconnected,
// the time the disconnect was recorded.
func (ct *ConnectionTracker) Status(seat Seat) (ConnStatus, time.Time) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	sc, ok := ct.seats[seat]
	if !ok {
		return StatusConnected, time.Time{}
	}
	return sc.status, sc.since
}

// OnConnectionLost records a detected connection loss for a seat and
// starts the grace period. Losses before match start are ignored: there
// is nothing to resume yet. Losses for a seat that is not currently
// connected are ignored as duplicates.
func (ct *ConnectionTracker) OnConnectionLost(seat Seat) {
	if ct.hooks.Started != nil && !ct.hooks.Started() {
		return
	}

	ct.mu.Lock()
	sc, ok := ct.seats[seat]
	if !ok || sc.status != StatusConnected {
		ct.mu.Unlock()
		return
	}

	sc.status = StatusDisconnected
	sc.since = ct.clock()
	sc.epoch++
	epoch := sc.epoch
	sc.ticks = make(chan struct{})
	sc.timer = time.AfterFunc(ct.grace, func() { ct.graceExpired(seat, epoch) })
	remaining := int(ct.grace / time.Second)
	ticks := sc.ticks
	ct.mu.Unlock()

	if ct.logger != nil {
		ct.logger.Warn("connection lost, grace period started",
			zap.String("seat", seat.String()),
			zap.Duration("grace", ct.grace),
		)
	}

	ct.publish(Event{Type: EventOpponentDisconnected, Seat: seat, Remaining: remaining})
	go ct.reportCountdown(seat, ticks)
}

// reportCountdown republishes the remaining grace time once per second
// until the disconnect resolves one way or the other.
func (ct *ConnectionTracker) reportCountdown(seat Seat, done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ct.mu.Lock()
			sc := ct.seats[seat]
			if sc == nil || sc.status != StatusDisconnected {
				ct.mu.Unlock()
				return
			}
			remaining := ct.grace - ct.clock().Sub(sc.since)
			ct.mu.Unlock()

			if remaining <= 0 {
				return
			}
			ct.publish(Event{
				Type:      EventOpponentDisconnected,
				Seat:      seat,
				Remaining: int((remaining + time.Second - 1) / time.Second),
			})
		}
	}
}

// graceExpired fires when the grace timer elapses. A fire from a timer
// that was superseded by a reconnect (epoch mismatch) is ignored.
func (ct *ConnectionTracker) graceExpired(seat Seat, epoch int) {
	ct.mu.Lock()
	sc, ok := ct.seats[seat]
	if !ok || sc.status != StatusDisconnected || sc.epoch != epoch {
		ct.mu.Unlock()
		return
	}
	sc.status = StatusForfeited
	ct.stopCountdownLocked(sc)
	ct.mu.Unlock()

	if ct.logger != nil {
		ct.logger.Warn("grace period expired, seat forfeited",
			zap.String("seat", seat.String()),
		)
	}

	// Identity is released only here, never on plain disconnect.
	if ct.hooks.Release != nil {
		ct.hooks.Release(seat)
	}
	if ct.hooks.Forfeit != nil {
		ct.hooks.Forfeit(seat)
	}
	ct.publish(Event{Type: EventOpponentForfeited, Seat: seat})
}

// OnConnectionRestored handles a reconnection request for a seat. Valid
// only while the seat is disconnected. The new connection is rebound
// first (generation increments, so stale messages die), then the last
// snapshot is replayed; only when both succeed is the seat declared
// connected and the grace timer cancelled. Failures leave the seat
// disconnected with the timer still running so another attempt can be
// made before the grace period elapses.
func (ct *ConnectionTracker) OnConnectionRestored(seat Seat, connID, token string) error {
	ct.mu.Lock()
	sc, ok := ct.seats[seat]
	if !ok {
		ct.mu.Unlock()
		return ErrInvalidCommand
	}
	switch sc.status {
	case StatusForfeited:
		ct.mu.Unlock()
		return ErrGracePeriodExpired
	case StatusConnected:
		ct.mu.Unlock()
		return ErrNotDisconnected
	}
	epoch := sc.epoch
	ct.mu.Unlock()

	if ct.hooks.Rebind != nil {
		if _, err := ct.hooks.Rebind(seat, connID, token); err != nil {
			return err
		}
	}
	if ct.hooks.Reconcile != nil {
		if err := ct.hooks.Reconcile(seat); err != nil {
			return err
		}
	}

	ct.mu.Lock()
	// The seat may have moved on while the snapshot was being applied:
	// a competing reconnect that finished first leaves it Connected, a
	// timer expiry leaves it Forfeited. Either way this attempt loses.
	switch {
	case sc.status == StatusConnected:
		ct.mu.Unlock()
		return ErrNotDisconnected
	case sc.status != StatusDisconnected || sc.epoch != epoch:
		ct.mu.Unlock()
		return ErrGracePeriodExpired
	}
	if sc.timer != nil {
		sc.timer.Stop()
		sc.timer = nil
	}
	ct.stopCountdownLocked(sc)
	sc.status = StatusConnected
	sc.since = time.Time{}
	ct.mu.Unlock()

	if ct.logger != nil {
		ct.logger.Info("seat reconnected within grace period",
			zap.String("seat", seat.String()),
			zap.String("conn_id", connID),
		)
	}

	ct.publish(Event{Type: EventOpponentReconnected, Seat: seat})
	// Force a fresh turn broadcast so the rebound seat converges on the
	// authoritative turn even if the retained payload predates it.
	if ct.bus != nil {
		ct.bus.RepublishTurn()
	}
	return nil
}

func (ct *ConnectionTracker) stopCountdownLocked(sc *seatConn) {
	if sc.ticks != nil {
		close(sc.ticks)
		sc.ticks = nil
	}
}

func (ct *ConnectionTracker) publish(event Event) {
	if ct.bus != nil {
		ct.bus.Publish(event)
	}
}
