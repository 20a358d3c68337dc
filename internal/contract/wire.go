package contract

import "encoding/json"

// Message is the envelope exchanged with the host over the websocket.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Message types
const (
	MsgInvoke      = "invoke"
	MsgResult      = "result"
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgSubscribed  = "subscribed"
	MsgEvent       = "event"
	MsgEmit        = "emit"
	MsgHello       = "hello"
	MsgPing        = "ping"
	MsgPong        = "pong"
	MsgError       = "error"
)

// Hello is sent by a client right after connecting so the host can describe
// it in presence payloads.
type Hello struct {
	PeerKey    string         `json:"peer_key"`
	DeviceName string         `json:"device_name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
