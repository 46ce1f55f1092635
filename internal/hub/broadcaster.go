package hub

import (
	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
	"github.com/Gahroot/AgentHQ-sub000/pkg/protocol"
)

// Broadcaster is the only interface producers (post, task and notification
// services) use to push realtime updates. It serializes an envelope once and
// fans it out to every matching open connection; delivery is best-effort and
// at-most-once per currently-connected recipient.
type Broadcaster struct {
	registry *Registry
	relay    *Relay
	log      *zap.Logger
}

// NewBroadcaster creates a broadcaster over the registry. relay may be nil;
// when set, every broadcast is also published to peer hub nodes.
func NewBroadcaster(registry *Registry, relay *Relay, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		relay:    relay,
		log:      log.With(zap.String("module", "broadcaster")),
	}
}

// BroadcastToOrg pushes an event to every open connection in the org.
func (b *Broadcaster) BroadcastToOrg(orgID, event string, data interface{}) {
	b.broadcast(relayMessage{OrgID: orgID, Event: event}, data, true)
}

// BroadcastToChannel pushes an event to every open connection in the org
// that is currently subscribed to the channel. An empty channelID is dropped;
// it would otherwise widen into an org-wide broadcast.
func (b *Broadcaster) BroadcastToChannel(orgID, channelID, event string, data interface{}) {
	if channelID == "" {
		b.log.Warn("dropping channel broadcast without channel id",
			zap.String("org_id", orgID), zap.String("event", event))
		return
	}
	b.broadcast(relayMessage{OrgID: orgID, ChannelID: channelID, Event: event}, data, true)
}

func (b *Broadcaster) broadcast(msg relayMessage, data interface{}, publish bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		b.log.Error("encode broadcast payload",
			zap.String("event", msg.Event), zap.Error(err))
		return
	}
	msg.Data = raw
	frame, err := json.Marshal(protocol.Envelope{Event: msg.Event, Data: raw})
	if err != nil {
		b.log.Error("encode broadcast envelope",
			zap.String("event", msg.Event), zap.Error(err))
		return
	}
	b.deliverLocal(msg, frame)
	if publish && b.relay != nil {
		b.relay.Publish(msg)
	}
}

// deliverLocal fans the serialized frame out to this node's registry.
func (b *Broadcaster) deliverLocal(msg relayMessage, frame []byte) {
	scope := "org"
	send := func(c *Conn) { c.Send(frame) }
	if msg.ChannelID == "" {
		b.registry.ForEachInOrg(msg.OrgID, send)
	} else {
		scope = "channel"
		b.registry.ForEachInChannel(msg.OrgID, msg.ChannelID, send)
	}
	broadcastsTotal.WithLabelValues(scope).Inc()
}

// deliverFromRelay re-delivers a peer node's broadcast locally. It never
// republishes, so relayed events cannot loop between nodes.
func (b *Broadcaster) deliverFromRelay(msg relayMessage) {
	frame, err := protocol.Encode(msg.Event, msg.Data)
	if err != nil {
		b.log.Error("encode relayed envelope", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	b.deliverLocal(msg, frame)
}
