package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Socket is the transport surface the hub needs from a websocket connection.
// *websocket.Conn satisfies it; tests substitute an in-memory fake.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Conn is one live, authenticated connection. It is created only after the
// auth gate has resolved an identity and is owned by the registry until the
// transport closes.
type Conn struct {
	id       string
	identity Identity
	sock     Socket

	writeMu sync.Mutex
	open    atomic.Bool

	subMu sync.RWMutex
	subs  map[string]struct{}
}

func newConn(identity Identity, sock Socket) *Conn {
	c := &Conn{
		id:       uuid.NewString(),
		identity: identity,
		sock:     sock,
		subs:     make(map[string]struct{}),
	}
	c.open.Store(true)
	return c
}

// ID is the connection's unique id, used for logging only. Registry lookup is
// keyed by identity id, not by connection id.
func (c *Conn) ID() string { return c.id }

// Identity returns the principal this connection authenticated as.
func (c *Conn) Identity() Identity { return c.identity }

// Open reports whether the transport is still writable.
func (c *Conn) Open() bool { return c.open.Load() }

// Subscribe adds a channel to the connection's subscription set.
func (c *Conn) Subscribe(channel string) {
	c.subMu.Lock()
	c.subs[channel] = struct{}{}
	c.subMu.Unlock()
}

// Unsubscribe removes a channel from the subscription set. Removing a channel
// that was never subscribed is a no-op.
func (c *Conn) Unsubscribe(channel string) {
	c.subMu.Lock()
	delete(c.subs, channel)
	c.subMu.Unlock()
}

// IsSubscribed reports whether the connection subscribed to the channel.
func (c *Conn) IsSubscribed(channel string) bool {
	c.subMu.RLock()
	_, ok := c.subs[channel]
	c.subMu.RUnlock()
	return ok
}

// SubscriptionCount reports the size of the subscription set.
func (c *Conn) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs)
}

// Send writes one serialized frame to the socket. Sends to a connection that
// is no longer open are dropped silently; that is the defined outcome of
// best-effort delivery, not an error. A write failure marks the connection
// closed so later sends drop immediately.
func (c *Conn) Send(payload []byte) {
	if !c.open.Load() {
		framesDropped.Inc()
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.open.Store(false)
		framesDropped.Inc()
		return
	}
	framesDelivered.Inc()
}

// markClosed flags the connection as no longer writable without touching the
// underlying socket. The read loop calls it when the transport reports EOF.
func (c *Conn) markClosed() {
	c.open.Store(false)
}

// closeWithCode sends a close frame with the given code and tears down the
// socket. Safe to call more than once; only the first call writes.
func (c *Conn) closeWithCode(code int, reason string) {
	if !c.open.CompareAndSwap(true, false) {
		return
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.sock.Close()
}
