package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openduel/duel-server-go/internal/cards"
	"github.com/openduel/duel-server-go/internal/config"
	"github.com/openduel/duel-server-go/internal/duel"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.ServerConfig{
		Address:      ":0",
		WSPath:       "/ws",
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	matchCfg := duel.MatchConfig{
		StartingHealth:  30,
		ManaCap:         10,
		OpeningHandSize: 4,
		DeckSize:        30,
		BoardSlots:      5,
		GracePeriod:     time.Minute,
		JournalDepth:    8,
	}
	mgr := duel.NewManager(matchCfg, cards.NewStarterCatalog(), zap.NewNop())
	return New(cfg, mgr, zap.NewNop())
}

// newTestClient builds a client whose pumps never run: outbound frames
// accumulate in the send queue for inspection.
func newTestClient(s *Server, id string) *Client {
	return &Client{
		ID:     id,
		send:   make(chan []byte, sendQueueSize),
		server: s,
		logger: s.logger,
	}
}

func popEnvelope(t *testing.T, c *Client) *Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return &env
	default:
		return nil
	}
}

func drainEnvelopes(t *testing.T, c *Client) []*Envelope {
	t.Helper()
	var out []*Envelope
	for {
		env := popEnvelope(t, c)
		if env == nil {
			return out
		}
		out = append(out, env)
	}
}

func envelopeOfType(envelopes []*Envelope, msgType string) *Envelope {
	for _, env := range envelopes {
		if env.Type == msgType {
			return env
		}
	}
	return nil
}

func rawPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func joinSeat(t *testing.T, s *Server, connID string) (*Client, JoinedPayload) {
	t.Helper()
	c := newTestClient(s, connID)
	s.handleJoin(c)

	env := popEnvelope(t, c)
	require.NotNil(t, env, "join must produce a response")
	require.Equal(t, MsgJoined, env.Type)

	var payload JoinedPayload
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	return c, payload
}

// newStartedSession joins both seats and starts the match.
func newStartedSession(t *testing.T, s *Server) (*matchSession, *Client, JoinedPayload, *Client, JoinedPayload) {
	t.Helper()
	host, hostJoin := joinSeat(t, s, "conn-host")
	guest, guestJoin := joinSeat(t, s, "conn-guest")
	require.Equal(t, hostJoin.MatchID, guestJoin.MatchID)

	s.mu.Lock()
	sess := s.sessions[hostJoin.MatchID]
	s.mu.Unlock()
	require.NotNil(t, sess)

	require.NoError(t, sess.match.Start([]duel.Seat{duel.SeatHost, duel.SeatGuest}))
	drainEnvelopes(t, host)
	drainEnvelopes(t, guest)
	return sess, host, hostJoin, guest, guestJoin
}

func TestJoinAssignsSeatsInOrder(t *testing.T) {
	s := newTestServer(t)

	_, hostJoin := joinSeat(t, s, "conn-1")
	assert.Equal(t, int(duel.SeatHost), hostJoin.Seat)
	assert.NotEmpty(t, hostJoin.Token)
	assert.Equal(t, uint64(1), hostJoin.Generation)

	_, guestJoin := joinSeat(t, s, "conn-2")
	assert.Equal(t, int(duel.SeatGuest), guestJoin.Seat)
	assert.Equal(t, hostJoin.MatchID, guestJoin.MatchID)

	// A third connection opens the next match.
	_, thirdJoin := joinSeat(t, s, "conn-3")
	assert.Equal(t, int(duel.SeatHost), thirdJoin.Seat)
	assert.NotEqual(t, hostJoin.MatchID, thirdJoin.MatchID)
}

// TestBogusReconnectKeepsCurrentClient covers the hostile case: a
// reconnect for a seat that is still connected must be rejected without
// evicting the seat's live client, so a later real disconnect is still
// detected and the grace period starts.
func TestBogusReconnectKeepsCurrentClient(t *testing.T) {
	s := newTestServer(t)
	sess, host, hostJoin, guest, _ := newStartedSession(t, s)

	intruder := newTestClient(s, "conn-intruder")
	s.handleReconnect(intruder, &Envelope{
		Type: MsgReconnect,
		Data: rawPayload(t, ReconnectPayload{
			MatchID: hostJoin.MatchID,
			Seat:    int(duel.SeatHost),
			Token:   "forged-token",
		}),
	})

	// The intruder got an error and the host seat still maps to the
	// real client.
	intruderEnvs := drainEnvelopes(t, intruder)
	require.NotNil(t, envelopeOfType(intruderEnvs, MsgError))
	sess.mu.Lock()
	assert.Same(t, host, sess.clients[duel.SeatHost])
	sess.mu.Unlock()

	// The host's real connection dropping is still observed.
	s.handleConnectionLost(host)

	status, _ := sess.match.Tracker().Status(duel.SeatHost)
	assert.Equal(t, duel.StatusDisconnected, status)

	guestEnvs := drainEnvelopes(t, guest)
	assert.NotNil(t, envelopeOfType(guestEnvs, MsgOpponentDisconnected))
}

// TestReconnectFlow exercises the full handoff: disconnect, reconnect
// with the issued token, restored state delivered to the new connection
// only.
func TestReconnectFlow(t *testing.T) {
	s := newTestServer(t)
	sess, host, hostJoin, guest, _ := newStartedSession(t, s)

	s.handleConnectionLost(host)
	status, _ := sess.match.Tracker().Status(duel.SeatHost)
	require.Equal(t, duel.StatusDisconnected, status)

	rejoined := newTestClient(s, "conn-host-2")
	s.handleReconnect(rejoined, &Envelope{
		Type: MsgReconnect,
		Data: rawPayload(t, ReconnectPayload{
			MatchID: hostJoin.MatchID,
			Seat:    int(duel.SeatHost),
			Token:   hostJoin.Token,
		}),
	})

	status, _ = sess.match.Tracker().Status(duel.SeatHost)
	assert.Equal(t, duel.StatusConnected, status)
	sess.mu.Lock()
	assert.Same(t, rejoined, sess.clients[duel.SeatHost])
	sess.mu.Unlock()

	envs := drainEnvelopes(t, rejoined)

	restored := envelopeOfType(envs, MsgStateRestored)
	require.NotNil(t, restored, "restored state must reach the new connection")
	var snap SnapshotPayload
	require.NoError(t, json.Unmarshal(restored.Data, &snap))
	assert.True(t, snap.YourTurn)
	assert.Len(t, snap.Mine.Hand, 4)
	assert.Nil(t, snap.Opponent.Hand)

	joined := envelopeOfType(envs, MsgJoined)
	require.NotNil(t, joined)
	var payload JoinedPayload
	require.NoError(t, json.Unmarshal(joined.Data, &payload))
	assert.Equal(t, uint64(2), payload.Generation)

	// The restored state goes only to the rejoining seat.
	guestEnvs := drainEnvelopes(t, guest)
	assert.Nil(t, envelopeOfType(guestEnvs, MsgStateRestored))
	assert.NotNil(t, envelopeOfType(guestEnvs, MsgOpponentReconnected))
}

// TestStaleGenerationCommandDropped verifies a command stamped with a
// superseded generation is discarded silently: no state change and no
// error frame.
func TestStaleGenerationCommandDropped(t *testing.T) {
	s := newTestServer(t)
	sess, host, hostJoin, _, _ := newStartedSession(t, s)

	s.dispatch(host, &Envelope{
		Type:       MsgEndTurn,
		Seat:       int(duel.SeatHost),
		Generation: hostJoin.Generation + 1,
	})

	assert.Equal(t, 1, sess.match.Coordinator().TurnNumber())
	assert.Empty(t, drainEnvelopes(t, host), "stale commands are dropped, not answered")

	// The current generation still works.
	s.dispatch(host, &Envelope{
		Type:       MsgEndTurn,
		Seat:       int(duel.SeatHost),
		Generation: hostJoin.Generation,
	})
	assert.Equal(t, 2, sess.match.Coordinator().TurnNumber())
}

// TestSupersededConnectionLossIgnored verifies the old connection dying
// after a successful rebind does not disconnect the seat again.
func TestSupersededConnectionLossIgnored(t *testing.T) {
	s := newTestServer(t)
	sess, host, hostJoin, _, _ := newStartedSession(t, s)

	s.handleConnectionLost(host)
	rejoined := newTestClient(s, "conn-host-2")
	s.handleReconnect(rejoined, &Envelope{
		Type: MsgReconnect,
		Data: rawPayload(t, ReconnectPayload{
			MatchID: hostJoin.MatchID,
			Seat:    int(duel.SeatHost),
			Token:   hostJoin.Token,
		}),
	})

	// The replaced connection's read pump finally exits.
	s.handleConnectionLost(host)

	status, _ := sess.match.Tracker().Status(duel.SeatHost)
	assert.Equal(t, duel.StatusConnected, status)
}
