package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

// Actions a client sends.
const (
	actionFollow   = "account:follow"
	actionUnfollow = "account:unfollow"
)

// Actions the server sends.
const (
	actionState   = "account:state"
	actionChanged = "account:changed"
	actionError   = "error"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type followPayload struct {
	Key entity.Key `json:"key"`
}

type errorPayload struct {
	Action string  `json:"action"`
	Error  string  `json:"error"`
	Code   *uint32 `json:"code,omitempty"`
}
