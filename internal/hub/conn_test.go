package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gahroot/AgentHQ-sub000/pkg/protocol"
)

// fakeSocket is an in-memory Socket capturing everything written to it.
type fakeSocket struct {
	mu         sync.Mutex
	frames     [][]byte
	control    [][]byte
	closed     bool
	failWrites bool
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("write on closed transport")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSocket) WriteControl(_ int, data []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.control = append(s.control, cp)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSocket) sentEnvelopes(t *testing.T) []*protocol.Envelope {
	t.Helper()
	frames := s.sentFrames()
	out := make([]*protocol.Envelope, 0, len(frames))
	for _, f := range frames {
		env, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

func (s *fakeSocket) closeCode(t *testing.T) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.control, "no close frame written")
	msg := s.control[len(s.control)-1]
	require.GreaterOrEqual(t, len(msg), 2)
	return int(msg[0])<<8 | int(msg[1])
}

func userIdentity(id, orgID string) Identity {
	return Identity{Kind: IdentityUser, ID: id, OrgID: orgID, Role: "member"}
}

func TestConnSendDropsWhenClosed(t *testing.T) {
	sock := &fakeSocket{}
	c := newConn(userIdentity("user_1", "org_1"), sock)

	c.Send([]byte(`{"event":"a","data":{}}`))
	c.markClosed()
	c.Send([]byte(`{"event":"b","data":{}}`))

	frames := sock.sentFrames()
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), `"a"`)
}

func TestConnSendMarksClosedOnWriteError(t *testing.T) {
	sock := &fakeSocket{failWrites: true}
	c := newConn(userIdentity("user_1", "org_1"), sock)

	c.Send([]byte(`{}`))

	assert.False(t, c.Open())
}

func TestConnSubscriptionSet(t *testing.T) {
	c := newConn(userIdentity("user_1", "org_1"), &fakeSocket{})

	c.Subscribe("general")
	c.Subscribe("general")
	c.Subscribe("random")
	assert.True(t, c.IsSubscribed("general"))
	assert.True(t, c.IsSubscribed("random"))
	assert.Equal(t, 2, c.SubscriptionCount())

	c.Unsubscribe("general")
	c.Unsubscribe("never-subscribed")
	assert.False(t, c.IsSubscribed("general"))
	assert.Equal(t, 1, c.SubscriptionCount())
}

func TestConnCloseWithCodeWritesOnce(t *testing.T) {
	sock := &fakeSocket{}
	c := newConn(userIdentity("user_1", "org_1"), sock)

	c.closeWithCode(CloseSuperseded, "superseded by a newer connection")
	c.closeWithCode(CloseSuperseded, "superseded by a newer connection")

	assert.False(t, c.Open())
	assert.True(t, sock.closed)
	require.Len(t, sock.control, 1)
	assert.Equal(t, CloseSuperseded, sock.closeCode(t))
}

func TestConnDistinctIDs(t *testing.T) {
	a := newConn(userIdentity("user_1", "org_1"), &fakeSocket{})
	b := newConn(userIdentity("user_1", "org_1"), &fakeSocket{})
	assert.NotEqual(t, a.ID(), b.ID())
}
