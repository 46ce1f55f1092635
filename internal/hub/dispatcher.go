package hub

import (
	"time"

	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
	"github.com/Gahroot/AgentHQ-sub000/pkg/protocol"
)

// Dispatcher decodes inbound frames and routes the control events. Malformed
// frames and unknown events are protocol noise: they are dropped locally and
// never produce a response or an error on the wire.
type Dispatcher struct {
	subs *SubscriptionIndex
	log  *zap.Logger
}

// NewDispatcher creates a dispatcher that keeps the given subscription index
// in step with the per-connection subscription sets.
func NewDispatcher(subs *SubscriptionIndex, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		subs: subs,
		log:  log.With(zap.String("module", "dispatcher")),
	}
}

// HandleFrame processes one raw inbound frame from the connection.
func (d *Dispatcher) HandleFrame(c *Conn, raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		d.log.Debug("dropping malformed frame",
			zap.String("client_id", c.Identity().ID), zap.Error(err))
		return
	}

	switch env.Event {
	case protocol.EventSubscribe:
		d.handleSubscribe(c, env)
	case protocol.EventUnsubscribe:
		d.handleUnsubscribe(c, env)
	case protocol.EventHeartbeat:
		d.handleHeartbeat(c)
	default:
		d.log.Warn("unknown websocket event",
			zap.String("event", env.Event),
			zap.String("client_id", c.Identity().ID))
	}
}

func (d *Dispatcher) handleSubscribe(c *Conn, env *protocol.Envelope) {
	channel, ok := channelArg(env)
	if !ok {
		return
	}
	c.Subscribe(channel)
	d.subs.Subscribe(channel, c.Identity().ID)
	d.reply(c, protocol.EventSubscribed, protocol.ChannelPayload{Channel: channel})
	d.log.Debug("client subscribed",
		zap.String("client_id", c.Identity().ID), zap.String("channel", channel))
}

func (d *Dispatcher) handleUnsubscribe(c *Conn, env *protocol.Envelope) {
	channel, ok := channelArg(env)
	if !ok {
		return
	}
	c.Unsubscribe(channel)
	d.subs.Unsubscribe(channel, c.Identity().ID)
	d.reply(c, protocol.EventUnsubscribed, protocol.ChannelPayload{Channel: channel})
	d.log.Debug("client unsubscribed",
		zap.String("client_id", c.Identity().ID), zap.String("channel", channel))
}

// handleHeartbeat acks the application-level keepalive. It touches no
// registry or liveness state; the ack is a latency probe, not a failure
// detector.
func (d *Dispatcher) handleHeartbeat(c *Conn) {
	d.reply(c, protocol.EventHeartbeatAck, protocol.HeartbeatAckPayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (d *Dispatcher) reply(c *Conn, event string, payload interface{}) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		d.log.Error("encode control reply", zap.String("event", event), zap.Error(err))
		return
	}
	c.Send(frame)
}

// channelArg extracts a non-empty channel id from a subscribe/unsubscribe
// payload. A missing or empty channel makes the whole frame a silent no-op.
func channelArg(env *protocol.Envelope) (string, bool) {
	if len(env.Data) == 0 {
		return "", false
	}
	var p protocol.ChannelPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Channel == "" {
		return "", false
	}
	return p.Channel, true
}
