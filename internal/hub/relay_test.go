package hub

import (
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
)

func newTestRelay() *Relay {
	return &Relay{node: "node_a", log: zap.NewNop()}
}

func relayPayload(t *testing.T, msg relayMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestRelayDispatchSkipsOwnNode(t *testing.T) {
	r := newTestRelay()

	delivered := 0
	r.dispatch(relayPayload(t, relayMessage{
		Node:  "node_a",
		OrgID: "org_1",
		Event: "post:new",
		Data:  stdjson.RawMessage(`{"id":"post_1"}`),
	}), func(relayMessage) { delivered++ })

	assert.Equal(t, 0, delivered)
}

func TestRelayDispatchDeliversPeerMessage(t *testing.T) {
	r := newTestRelay()

	var got relayMessage
	delivered := 0
	r.dispatch(relayPayload(t, relayMessage{
		Node:      "node_b",
		OrgID:     "org_1",
		ChannelID: "general",
		Event:     "post:new",
		Data:      stdjson.RawMessage(`{"id":"post_1"}`),
	}), func(msg relayMessage) {
		delivered++
		got = msg
	})

	require.Equal(t, 1, delivered)
	assert.Equal(t, "node_b", got.Node)
	assert.Equal(t, "org_1", got.OrgID)
	assert.Equal(t, "general", got.ChannelID)
	assert.Equal(t, "post:new", got.Event)
	assert.JSONEq(t, `{"id":"post_1"}`, string(got.Data))
}

func TestRelayDispatchDropsMalformedPayload(t *testing.T) {
	r := newTestRelay()

	delivered := 0
	r.dispatch([]byte(`{not json`), func(relayMessage) { delivered++ })

	assert.Equal(t, 0, delivered)
}
