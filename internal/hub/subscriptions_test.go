package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionIndex(t *testing.T) {
	idx := NewSubscriptionIndex()

	idx.Subscribe("general", "user_a")
	idx.Subscribe("general", "user_b")
	idx.Subscribe("random", "user_a")

	assert.ElementsMatch(t, []string{"user_a", "user_b"}, idx.Subscribers("general"))
	assert.Equal(t, 2, idx.ChannelCount())

	idx.Unsubscribe("general", "user_b")
	assert.Equal(t, []string{"user_a"}, idx.Subscribers("general"))

	// Pruning: unsubscribing the last member removes the channel.
	idx.Unsubscribe("random", "user_a")
	assert.Equal(t, 1, idx.ChannelCount())

	idx.Unsubscribe("nonexistent", "user_a")
	assert.Equal(t, 1, idx.ChannelCount())
}

func TestSubscriptionIndexUnsubscribeAll(t *testing.T) {
	idx := NewSubscriptionIndex()
	idx.Subscribe("general", "user_a")
	idx.Subscribe("general", "user_b")
	idx.Subscribe("random", "user_a")

	idx.UnsubscribeAll("user_a")

	assert.Equal(t, []string{"user_b"}, idx.Subscribers("general"))
	assert.Empty(t, idx.Subscribers("random"))
	assert.Equal(t, 1, idx.ChannelCount())
}
