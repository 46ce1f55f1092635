package hub

import "sync"

// SubscriptionIndex is the reverse index from channel id to subscriber
// identity ids. The authoritative subscription state lives on each Conn; this
// index exists for observability (channel counts on the health endpoint) and
// is kept in step by the dispatcher and the server's disconnect path.
type SubscriptionIndex struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{}
}

// NewSubscriptionIndex creates an empty index.
func NewSubscriptionIndex() *SubscriptionIndex {
	return &SubscriptionIndex{channels: make(map[string]map[string]struct{})}
}

// Subscribe records clientID as a subscriber of channelID.
func (s *SubscriptionIndex) Subscribe(channelID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.channels[channelID]
	if subs == nil {
		subs = make(map[string]struct{})
		s.channels[channelID] = subs
	}
	subs[clientID] = struct{}{}
}

// Unsubscribe removes clientID from channelID. Empty channels are pruned.
func (s *SubscriptionIndex) Unsubscribe(channelID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs, ok := s.channels[channelID]; ok {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(s.channels, channelID)
		}
	}
}

// UnsubscribeAll removes clientID from every channel, pruning as it goes.
func (s *SubscriptionIndex) UnsubscribeAll(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for channelID, subs := range s.channels {
		delete(subs, clientID)
		if len(subs) == 0 {
			delete(s.channels, channelID)
		}
	}
}

// Subscribers returns the subscriber ids of a channel.
func (s *SubscriptionIndex) Subscribers(channelID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := s.channels[channelID]
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// ChannelCount reports how many channels have at least one subscriber.
func (s *SubscriptionIndex) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels)
}
