// Package protocol defines the wire format of the realtime channel: a flat
// JSON envelope of an event name and an arbitrary JSON payload. The control
// events are a closed set; every other event name is an opaque application
// event relayed verbatim to subscribers.
package protocol

import (
	stdjson "encoding/json"

	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
)

// Client-to-server control events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventHeartbeat   = "heartbeat"
)

// Server-to-client control events.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventHeartbeatAck = "heartbeat_ack"
)

// Local events emitted by the SDK connection manager. They never travel over
// the socket.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventError        = "error"
)

// Envelope is the unit exchanged over the socket in both directions. It
// carries no identifiers and no sequence numbers; delivery is best-effort.
type Envelope struct {
	Event string             `json:"event"`
	Data  stdjson.RawMessage `json:"data"`
}

// ChannelPayload is the payload of subscribe/unsubscribe and their acks.
type ChannelPayload struct {
	Channel string `json:"channel"`
}

// HeartbeatAckPayload is the payload of a heartbeat_ack.
type HeartbeatAckPayload struct {
	Timestamp string `json:"timestamp"`
}

// ErrorPayload is the payload of the SDK-local "error" event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Encode serializes an envelope carrying data under the given event name.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a raw frame into an envelope.
func Decode(raw []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, err
	}
	return env, nil
}
