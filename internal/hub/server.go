package hub

import (
	"context"
	stdjson "encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gahroot/AgentHQ-sub000/pkg/events"
	"github.com/Gahroot/AgentHQ-sub000/pkg/json"
)

// Lifecycle events the server emits on its local bus. The metrics hooks
// subscribe to them in NewServer; operators can attach more listeners via
// Bus().
const (
	EventClientConnected    = "client_connected"
	EventClientDisconnected = "client_disconnected"
)

// Server owns the websocket endpoint: it authenticates upgrades, admits
// connections into the registry and runs each connection's read loop.
type Server struct {
	log        *zap.Logger
	gate       *AuthGate
	registry   *Registry
	subs       *SubscriptionIndex
	dispatcher *Dispatcher
	caster     *Broadcaster
	relay      *Relay
	bus        *events.Bus
	upgrader   websocket.Upgrader
}

// Stats is the server's snapshot for the health endpoint.
type Stats struct {
	Connections int `json:"connections"`
	Channels    int `json:"channels"`
}

// NewServer assembles the hub server. relay may be nil for single-node
// deployments.
func NewServer(gate *AuthGate, relay *Relay, log *zap.Logger) *Server {
	registry := NewRegistry(log)
	subs := NewSubscriptionIndex()
	bus := events.NewBus()

	s := &Server{
		log:        log.With(zap.String("module", "hub")),
		gate:       gate,
		registry:   registry,
		subs:       subs,
		dispatcher: NewDispatcher(subs, log),
		caster:     NewBroadcaster(registry, relay, log),
		relay:      relay,
		bus:        bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	bus.On(EventClientConnected, func(stdjson.RawMessage) { connectionsGauge.Inc() })
	bus.On(EventClientDisconnected, func(stdjson.RawMessage) { connectionsGauge.Dec() })

	return s
}

// Broadcaster is the producer-facing surface of the server. Business
// services must go through it and never reach into the registry.
func (s *Server) Broadcaster() *Broadcaster { return s.caster }

// Bus exposes the server's local lifecycle event bus.
func (s *Server) Bus() *events.Bus { return s.bus }

// Stats reports current connection and channel counts.
func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.registry.Len(),
		Channels:    s.subs.ChannelCount(),
	}
}

// RunRelay consumes peer-node broadcasts until ctx is done. With no relay
// configured it just waits for cancellation.
func (s *Server) RunRelay(ctx context.Context) error {
	if s.relay == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.relay.Run(ctx, s.caster.deliverFromRelay)
}

// HandleWS upgrades the request and services the connection until the
// transport closes. The credential travels as the "token" query parameter;
// nothing is registered and no dispatcher is attached until the auth gate
// has accepted it.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	identity, err := s.gate.Authenticate(r.Context(), token)
	if err != nil {
		handshakeRejects.WithLabelValues(rejectReason(err)).Inc()
		s.log.Info("websocket handshake rejected",
			zap.Int("close_code", CloseCodeFor(err)), zap.Error(err))
		closeRaw(ws, CloseCodeFor(err), err.Error())
		return
	}

	conn := newConn(identity, ws)
	if prev := s.registry.Register(conn); prev != nil {
		prev.closeWithCode(CloseSuperseded, "superseded by a newer connection")
		s.subs.UnsubscribeAll(identity.ID)
	}

	s.emitLifecycle(EventClientConnected, identity)
	s.log.Info("websocket client connected",
		zap.String("client_id", identity.ID),
		zap.String("kind", string(identity.Kind)),
		zap.String("org_id", identity.OrgID),
		zap.String("conn_id", conn.ID()))

	s.readLoop(conn, ws)

	conn.markClosed()
	if s.registry.Unregister(conn) {
		s.subs.UnsubscribeAll(identity.ID)
	}
	_ = ws.Close()
	s.emitLifecycle(EventClientDisconnected, identity)
	s.log.Info("websocket client disconnected",
		zap.String("client_id", identity.ID),
		zap.String("conn_id", conn.ID()))
}

func (s *Server) readLoop(conn *Conn, ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				s.log.Warn("websocket read error",
					zap.String("client_id", conn.Identity().ID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.dispatcher.HandleFrame(conn, data)
	}
}

func (s *Server) emitLifecycle(event string, identity Identity) {
	payload, err := json.Marshal(identity)
	if err != nil {
		s.log.Error("encode lifecycle payload", zap.Error(err))
		return
	}
	s.bus.Emit(event, payload)
}

// closeRaw rejects a freshly upgraded socket with the given close code. Used
// only during the handshake, before a Conn exists.
func closeRaw(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = ws.Close()
}
