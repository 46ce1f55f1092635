// Package hubclient is the SDK-side connection manager for the realtime
// channel. It owns one outbound websocket, an application-level heartbeat
// and a fixed-delay reconnect loop, and re-emits every inbound frame onto a
// local event bus so application code subscribes to control and business
// events identically.
package hubclient

import (
	stdjson "encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/events"
	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
	"github.com/Gahroot/AgentHQ-sub000/pkg/protocol"
)

const (
	// DefaultHeartbeatInterval is how often the client sends a heartbeat
	// frame while connected.
	DefaultHeartbeatInterval = 60 * time.Second
	// DefaultReconnectInterval is the fixed delay before a reconnect
	// attempt after the transport closes. Deliberately not exponential:
	// the hub's reference behavior reconnects at a constant rate.
	DefaultReconnectInterval = 5 * time.Second
)

// ErrNoHubURL is returned by New when the hub URL is missing.
var ErrNoHubURL = errors.New("hubclient: HubURL is required")

// Conn is the transport surface the client needs. *websocket.Conn satisfies
// it; tests substitute an in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens the transport. The default dials with gorilla/websocket.
type Dialer func(wsURL string) (Conn, error)

func defaultDialer(wsURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Config configures a Client. Exactly one of APIKey and SessionToken is used
// as the connection credential; APIKey wins when both are set.
type Config struct {
	HubURL            string
	APIKey            string
	SessionToken      string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration

	// Logger is optional; a no-op logger is used when nil.
	Logger *zap.Logger
	// Dialer is optional and exists for tests.
	Dialer Dialer
}

// Client maintains the realtime connection. The connected flag is the
// authoritative gate for outbound sends: it is set only once the transport
// dial succeeds and cleared the moment the transport closes, independent of
// any state the raw socket keeps.
type Client struct {
	cfg  Config
	log  *zap.Logger
	bus  *events.Bus
	dial Dialer

	mu             sync.Mutex
	conn           Conn
	connected      bool
	dialing        bool
	closed         bool
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer

	writeMu sync.Mutex
}

// New creates a client. It does not touch the network; call Connect.
func New(cfg Config) (*Client, error) {
	if cfg.HubURL == "" {
		return nil, ErrNoHubURL
	}
	if _, err := url.Parse(cfg.HubURL); err != nil {
		return nil, err
	}
	cfg.HubURL = strings.TrimSuffix(cfg.HubURL, "/")
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = defaultDialer
	}
	return &Client{
		cfg:  cfg,
		log:  cfg.Logger.With(zap.String("module", "hubclient")),
		bus:  events.NewBus(),
		dial: cfg.Dialer,
	}, nil
}

// WSURL is the connection URL: the hub URL with its scheme swapped to
// websocket, the /ws path appended and the credential as the token query
// parameter.
func (c *Client) WSURL() (string, error) {
	u, err := url.Parse(c.cfg.HubURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = "token=" + url.QueryEscape(c.credential())
	return u.String(), nil
}

func (c *Client) credential() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	return c.cfg.SessionToken
}

// Connect opens the transport asynchronously. Calling it while a connection
// or dial is already in flight is a no-op; calling it after Disconnect
// re-arms the client. Re-arming clears the closed flag even when a previous
// dial is still in flight, so that dial's completion carries the connection
// forward instead of discarding it.
func (c *Client) Connect() {
	c.mu.Lock()
	c.closed = false
	if c.connected || c.dialing {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	c.mu.Unlock()

	go c.dialAndServe()
}

func (c *Client) dialAndServe() {
	wsURL, err := c.WSURL()
	if err != nil {
		c.failDial(err)
		return
	}

	conn, err := c.dial(wsURL)
	if err != nil {
		c.failDial(err)
		return
	}

	c.mu.Lock()
	c.dialing = false
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.connected = true
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	c.bus.Emit(protocol.EventConnected, stdjson.RawMessage(`{}`))
	go c.heartbeatLoop(stop)
	c.readLoop(conn)
}

// failDial mirrors the transport's error-then-close event order: an "error"
// emission for observability, then the close path that drives reconnection.
func (c *Client) failDial(err error) {
	c.mu.Lock()
	c.dialing = false
	c.mu.Unlock()
	c.log.Warn("hub dial failed", zap.Error(err))
	c.emitError(err)
	c.handleClose()
}

func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.bus.Emit(env.Event, env.Data)
	}
	c.handleClose()
}

// handleClose runs exactly once per transport teardown: it clears the
// connected flag, stops the heartbeat, emits "disconnected" and schedules a
// single reconnect unless Disconnect suppressed auto-transitions.
func (c *Client) handleClose() {
	c.mu.Lock()
	c.connected = false
	c.conn = nil
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	suppressed := c.closed
	c.mu.Unlock()

	c.bus.Emit(protocol.EventDisconnected, stdjson.RawMessage(`{}`))
	if !suppressed {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the reconnect timer if none is pending. A second
// close while one is pending must not create a second timer.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectInterval, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		suppressed := c.closed
		c.mu.Unlock()
		if !suppressed {
			c.Connect()
		}
	})
}

// Disconnect forces the idle state: it stops the heartbeat, cancels any
// pending reconnect, closes the transport and clears the connected flag.
// Safe to call at any time, including before the first Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// IsConnected reports whether the transport is open for sends.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe asks the hub to add the channel to this connection's
// subscription set. A silent no-op while not connected; nothing is queued.
func (c *Client) Subscribe(channel string) {
	c.send(protocol.EventSubscribe, protocol.ChannelPayload{Channel: channel})
}

// Unsubscribe is the inverse of Subscribe, with the same gating.
func (c *Client) Unsubscribe(channel string) {
	c.send(protocol.EventUnsubscribe, protocol.ChannelPayload{Channel: channel})
}

// On registers a handler for a local event: control acks, lifecycle events
// ("connected", "disconnected", "error") and any application event relayed
// by the hub.
func (c *Client) On(event string, fn events.Handler) events.Subscription {
	return c.bus.On(event, fn)
}

// Off removes a handler registered with On.
func (c *Client) Off(sub events.Subscription) {
	c.bus.Off(sub)
}

func (c *Client) send(event string, data interface{}) {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return
	}

	frame, err := protocol.Encode(event, data)
	if err != nil {
		c.log.Error("encode outbound frame", zap.String("event", event), zap.Error(err))
		return
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn("write failed", zap.String("event", event), zap.Error(err))
	}
}

func (c *Client) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.send(protocol.EventHeartbeat, struct{}{})
		}
	}
}

func (c *Client) emitError(err error) {
	payload, merr := json.Marshal(protocol.ErrorPayload{Error: err.Error()})
	if merr != nil {
		return
	}
	c.bus.Emit(protocol.EventError, payload)
}
