package hub

import (
	"context"
	stdjson "encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
)

// relayChannelName is the Redis pub/sub channel shared by all hub nodes.
const relayChannelName = "hub:events"

const relayPublishTimeout = 5 * time.Second

// relayMessage is what one hub node publishes so its peers can fan a
// broadcast out to their own registries. Node identifies the publisher so a
// node can skip its own messages.
type relayMessage struct {
	Node      string             `json:"node"`
	OrgID     string             `json:"org_id"`
	ChannelID string             `json:"channel_id,omitempty"`
	Event     string             `json:"event"`
	Data      stdjson.RawMessage `json:"data"`
}

// Relay spreads broadcasts across hub nodes over Redis pub/sub. A single hub
// process works without one; the relay only matters when several nodes serve
// the same orgs.
type Relay struct {
	rdb  *redis.Client
	node string
	log  *zap.Logger
}

// NewRelay creates a relay with a fresh node identity.
func NewRelay(rdb *redis.Client, log *zap.Logger) *Relay {
	return &Relay{
		rdb:  rdb,
		node: uuid.NewString(),
		log:  log.With(zap.String("module", "relay")),
	}
}

// Publish sends a broadcast to peer nodes. Failures are logged and dropped;
// relay delivery inherits the channel's best-effort semantics.
func (r *Relay) Publish(msg relayMessage) {
	msg.Node = r.node
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("encode relay message", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, relayChannelName, payload).Err(); err != nil {
		r.log.Warn("publish relay message", zap.Error(err))
	}
}

// Run subscribes to the relay channel and hands every peer message to
// deliver until ctx is done. Messages published by this node are skipped.
func (r *Relay) Run(ctx context.Context, deliver func(relayMessage)) error {
	sub := r.rdb.Subscribe(ctx, relayChannelName)
	defer func() {
		if err := sub.Close(); err != nil {
			r.log.Warn("close relay subscription", zap.Error(err))
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch([]byte(m.Payload), deliver)
		}
	}
}

// dispatch decodes one raw relay payload and hands it to deliver. Malformed
// payloads and messages this node published itself are dropped.
func (r *Relay) dispatch(payload []byte, deliver func(relayMessage)) {
	var msg relayMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.log.Warn("drop malformed relay message", zap.Error(err))
		return
	}
	if msg.Node == r.node {
		return
	}
	deliver(msg)
}
