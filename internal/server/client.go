package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openduel/duel-server-go/internal/duel"
)

const (
	maxMessageSize = 8192
	sendQueueSize  = 64
)

// Client is one WebSocket connection. Clients are never reused: when the
// player reconnects, a new Client with a new ID replaces this one while
// the seat stays fixed.
type Client struct {
	ID     string
	Seat   duel.Seat
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	sess   *matchSession
	logger *zap.Logger
}

// readPump consumes inbound frames until the connection drops, then
// reports the loss. Runs as its own goroutine per connection.
func (c *Client) readPump() {
	defer func() {
		c.server.handleConnectionLost(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	pongWait := c.server.cfg.PingInterval * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("conn_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			c.sendError("malformed message")
			continue
		}
		c.server.dispatch(c, &envelope)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings. Runs as its own goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues an outbound frame, dropping the connection if the
// client stopped draining its queue.
func (c *Client) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn("client send queue full, closing",
			zap.String("conn_id", c.ID),
		)
		c.conn.Close()
	}
}

// sendMessage marshals and queues a typed payload.
func (c *Client) sendMessage(msgType string, data interface{}) {
	envelope, err := newEnvelope(msgType, data)
	if err != nil {
		c.logger.Error("failed to encode message",
			zap.String("type", msgType),
			zap.Error(err),
		)
		return
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	c.enqueue(raw)
}

func (c *Client) sendError(message string) {
	c.sendMessage(MsgError, ErrorPayload{Message: message})
}
