package server

import (
	"encoding/json"
	"time"
)

// Inbound message types (client -> server).
const (
	MsgJoin       = "join"
	MsgReconnect  = "reconnect"
	MsgStartMatch = "start_match"
	MsgEndTurn    = "end_turn"
	MsgPlayCard   = "play_card"
	MsgUseAbility = "use_ability"
)

// Outbound message types (server -> client).
const (
	MsgJoined               = "joined"
	MsgMatchStarted         = "match_started"
	MsgTurnChanged          = "turn_changed"
	MsgStateRestored        = "state_restored"
	MsgOpponentDisconnected = "opponent_disconnected"
	MsgOpponentReconnected  = "opponent_reconnected"
	MsgOpponentForfeited    = "opponent_forfeited"
	MsgCardPlayed           = "card_played"
	MsgError                = "error"
)

// Envelope is the wire frame for every message in both directions.
// Seat and Generation authenticate inbound commands against the current
// connection binding; a command carrying a superseded generation is
// dropped.
type Envelope struct {
	Type       string          `json:"type"`
	Seat       int             `json:"seat,omitempty"`
	Generation uint64          `json:"generation,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

// ReconnectPayload carries a reconnection request.
type ReconnectPayload struct {
	MatchID string `json:"match_id"`
	Seat    int    `json:"seat"`
	Token   string `json:"token"`
}

// PlayCardPayload carries a card play command. SlotIndex addresses the
// playing seat's own side in its own view.
type PlayCardPayload struct {
	CardIndex int `json:"card_index"`
	SlotIndex int `json:"slot_index"`
}

// UseAbilityPayload carries an ability activation command.
type UseAbilityPayload struct {
	SlotIndex int `json:"slot_index"`
}

// JoinedPayload acknowledges a join or reconnect: the seat assignment,
// the identity token to present on reconnection, and the connection
// generation to stamp on subsequent commands.
type JoinedPayload struct {
	MatchID    string `json:"match_id"`
	Seat       int    `json:"seat"`
	Token      string `json:"token,omitempty"`
	Generation uint64 `json:"generation"`
}

// TurnChangedPayload announces the new turn owner. Consumers must treat
// payloads whose TurnNumber is not newer than their cached value as
// stale and discard them.
type TurnChangedPayload struct {
	Seat       int `json:"seat"`
	TurnNumber int `json:"turn_number"`
}

// DisconnectedPayload reports the opponent's remaining grace time.
type DisconnectedPayload struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

// ErrorPayload reports a rejected command.
type ErrorPayload struct {
	Message string `json:"message"`
}

func newEnvelope(msgType string, data interface{}) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}
