// Package server exposes the duel session layer over WebSocket: inbound
// commands are validated against the seat's connection binding before
// they reach the match, outbound session events are fanned out to the
// two seats' connections.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openduel/duel-server-go/internal/config"
	"github.com/openduel/duel-server-go/internal/duel"
	"github.com/openduel/duel-server-go/internal/session"
)

// Server accepts WebSocket connections and routes them to match
// sessions. The first two joining connections fill the host and guest
// seats of a match; later connections start the next match.
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	manager  *duel.Manager
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.Mutex
	sessions map[string]*matchSession // match ID -> session
	pending  *matchSession            // waiting for its second player
	conns    map[string]*matchSession // conn ID -> session
}

// matchSession ties one match to its identity registry and the live
// client connection per seat.
type matchSession struct {
	match    *duel.Match
	registry *session.Registry

	mu      sync.Mutex
	clients map[duel.Seat]*Client
}

// New creates a server for the given match manager.
func New(cfg config.ServerConfig, manager *duel.Manager, logger *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*matchSession),
		conns:    make(map[string]*matchSession),
	}
}

// Start begins serving WebSocket connections. Blocks until the listener
// fails or Shutdown runs.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.handleWS)

	s.httpSrv = &http.Server{Addr: s.cfg.Address, Handler: mux}
	s.logger.Info("websocket server listening",
		zap.String("address", s.cfg.Address),
		zap.String("path", s.cfg.WSPath),
	)

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		server: s,
		logger: s.logger,
	}

	s.logger.Info("websocket client connected", zap.String("conn_id", client.ID))

	go client.writePump()
	go client.readPump()
}

// dispatch routes one inbound envelope. Join and reconnect establish the
// client's session; every other command must carry the seat and current
// connection generation, and a command from a superseded connection is
// dropped silently.
func (s *Server) dispatch(c *Client, envelope *Envelope) {
	switch envelope.Type {
	case MsgJoin:
		s.handleJoin(c)
	case MsgReconnect:
		s.handleReconnect(c, envelope)
	case MsgStartMatch, MsgEndTurn, MsgPlayCard, MsgUseAbility:
		s.handleCommand(c, envelope)
	default:
		c.sendError("unknown message type")
	}
}

func (s *Server) handleJoin(c *Client) {
	s.mu.Lock()
	var (
		sess *matchSession
		seat duel.Seat
		err  error
	)
	if s.pending == nil {
		registry := session.NewRegistry(s.logger)
		var match *duel.Match
		match, err = s.manager.CreateMatch(registry)
		if err == nil {
			sess = &matchSession{
				match:    match,
				registry: registry,
				clients:  make(map[duel.Seat]*Client),
			}
			s.sessions[match.ID()] = sess
			s.pending = sess
			seat = duel.SeatHost
			s.subscribeSession(sess)
		}
	} else {
		sess = s.pending
		s.pending = nil
		seat = duel.SeatGuest
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to create match", zap.Error(err))
		c.sendError("failed to create match")
		return
	}
	s.conns[c.ID] = sess
	s.mu.Unlock()

	binding, token, err := sess.registry.Bind(seat, c.ID)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	c.Seat = seat
	c.sess = sess
	sess.setClient(seat, c)

	c.sendMessage(MsgJoined, JoinedPayload{
		MatchID:    sess.match.ID(),
		Seat:       int(seat),
		Token:      token,
		Generation: binding.Generation,
	})
}

func (s *Server) handleReconnect(c *Client, envelope *Envelope) {
	var payload ReconnectPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.sendError("malformed reconnect payload")
		return
	}
	seat := duel.Seat(payload.Seat)
	if !seat.Valid() {
		c.sendError("invalid seat")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[payload.MatchID]
	if ok {
		s.conns[c.ID] = sess
	}
	s.mu.Unlock()
	if !ok {
		c.sendError("unknown match")
		return
	}

	// Attach before the restore so the state_restored event reaches this
	// connection. A rejected attempt puts the seat's previous client
	// back; a bogus reconnect for a live seat must not evict it.
	c.Seat = seat
	c.sess = sess
	prev := sess.swapClient(seat, c)

	if err := sess.match.HandleReconnect(seat, c.ID, payload.Token); err != nil {
		sess.restoreClient(seat, c, prev)
		s.logger.Warn("reconnection rejected",
			zap.String("match_id", payload.MatchID),
			zap.String("seat", seat.String()),
			zap.Error(err),
		)
		c.sendError(err.Error())
		return
	}

	binding, _ := sess.registry.Binding(seat)
	c.sendMessage(MsgJoined, JoinedPayload{
		MatchID:    sess.match.ID(),
		Seat:       int(seat),
		Generation: binding.Generation,
	})
}

func (s *Server) handleCommand(c *Client, envelope *Envelope) {
	sess := c.sess
	if sess == nil {
		c.sendError("not joined")
		return
	}
	seat := duel.Seat(envelope.Seat)
	if !seat.Valid() || seat != c.Seat {
		c.sendError("invalid seat")
		return
	}

	// Generation check: a message from a connection that has since been
	// replaced is dropped, not applied.
	if err := sess.registry.Validate(seat, c.ID, envelope.Generation); err != nil {
		s.logger.Debug("dropping command from stale connection",
			zap.String("conn_id", c.ID),
			zap.String("seat", seat.String()),
			zap.Uint64("generation", envelope.Generation),
		)
		return
	}

	var err error
	switch envelope.Type {
	case MsgStartMatch:
		err = sess.match.Start([]duel.Seat{duel.SeatHost, duel.SeatGuest})
	case MsgEndTurn:
		err = sess.match.EndTurn(seat)
	case MsgPlayCard:
		var payload PlayCardPayload
		if jsonErr := json.Unmarshal(envelope.Data, &payload); jsonErr != nil {
			c.sendError("malformed play_card payload")
			return
		}
		err = sess.match.PlayCard(seat, payload.CardIndex, payload.SlotIndex)
	case MsgUseAbility:
		var payload UseAbilityPayload
		if jsonErr := json.Unmarshal(envelope.Data, &payload); jsonErr != nil {
			c.sendError("malformed use_ability payload")
			return
		}
		err = sess.match.UseAbility(seat, payload.SlotIndex)
	}
	if err != nil {
		c.sendError(err.Error())
	}
}

// handleConnectionLost runs when a client's read pump exits. Only the
// seat's current connection triggers a disconnect transition; an old
// connection finally dying after a rebind changes nothing.
func (s *Server) handleConnectionLost(c *Client) {
	s.mu.Lock()
	delete(s.conns, c.ID)
	s.mu.Unlock()

	sess := c.sess
	if sess == nil || !c.Seat.Valid() {
		return
	}
	if !sess.removeClient(c.Seat, c) {
		return
	}

	s.logger.Info("client connection lost",
		zap.String("conn_id", c.ID),
		zap.String("seat", c.Seat.String()),
	)
	sess.match.HandleConnectionLost(c.Seat)
}

// subscribeSession forwards match events to the session's connected
// clients. Caller holds s.mu.
func (s *Server) subscribeSession(sess *matchSession) {
	sess.match.Bus().Subscribe(func(event duel.Event) {
		switch event.Type {
		case duel.EventMatchStarted:
			sess.broadcast(MsgMatchStarted, TurnChangedPayload{
				Seat:       int(event.Seat),
				TurnNumber: event.TurnNumber,
			})
		case duel.EventTurnChanged:
			sess.broadcast(MsgTurnChanged, TurnChangedPayload{
				Seat:       int(event.Seat),
				TurnNumber: event.TurnNumber,
			})
		case duel.EventCardPlayed:
			sess.broadcast(MsgCardPlayed, TurnChangedPayload{
				Seat:       int(event.Seat),
				TurnNumber: event.TurnNumber,
			})
		case duel.EventStateRestored:
			if event.Snapshot != nil {
				sess.sendTo(event.Seat, MsgStateRestored, newSnapshotPayload(event.Seat, event.Snapshot))
			}
		case duel.EventOpponentDisconnected:
			sess.sendTo(event.Seat.Other(), MsgOpponentDisconnected, DisconnectedPayload{
				RemainingSeconds: event.Remaining,
			})
		case duel.EventOpponentReconnected:
			sess.sendTo(event.Seat.Other(), MsgOpponentReconnected, struct{}{})
		case duel.EventOpponentForfeited:
			sess.sendTo(event.Seat.Other(), MsgOpponentForfeited, struct{}{})
		}
	})
}

func (ms *matchSession) setClient(seat duel.Seat, c *Client) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.clients[seat] = c
}

// swapClient installs c as the seat's connection and returns the client
// it displaced, if any.
func (ms *matchSession) swapClient(seat duel.Seat, c *Client) *Client {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	prev := ms.clients[seat]
	ms.clients[seat] = c
	return prev
}

// restoreClient undoes a swap after a rejected reconnection. The seat's
// mapping goes back to prev only while c still holds it.
func (ms *matchSession) restoreClient(seat duel.Seat, c, prev *Client) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.clients[seat] != c {
		return
	}
	if prev != nil {
		ms.clients[seat] = prev
		return
	}
	delete(ms.clients, seat)
}

// removeClient detaches a client if it is still the seat's current
// connection. Returns false when the seat has already moved on to a
// newer connection.
func (ms *matchSession) removeClient(seat duel.Seat, c *Client) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.clients[seat] != c {
		return false
	}
	delete(ms.clients, seat)
	return true
}

func (ms *matchSession) sendTo(seat duel.Seat, msgType string, data interface{}) {
	ms.mu.Lock()
	c := ms.clients[seat]
	ms.mu.Unlock()
	if c != nil {
		c.sendMessage(msgType, data)
	}
}

func (ms *matchSession) broadcast(msgType string, data interface{}) {
	ms.mu.Lock()
	clients := make([]*Client, 0, len(ms.clients))
	for _, c := range ms.clients {
		clients = append(clients, c)
	}
	ms.mu.Unlock()
	for _, c := range clients {
		c.sendMessage(msgType, data)
	}
}
