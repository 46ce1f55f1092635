package hub

import "github.com/prometheus/client_golang/prometheus"

var (
	connectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hub_ws_connections",
		Help: "Number of live websocket connections",
	})

	handshakeRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_ws_handshake_rejects_total",
		Help: "Websocket handshakes rejected by the auth gate",
	}, []string{"reason"})

	broadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_broadcast_events_total",
		Help: "Broadcast fan-outs performed",
	}, []string{"scope"})

	framesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_frames_delivered_total",
		Help: "Frames written to websocket clients",
	})

	framesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hub_frames_dropped_total",
		Help: "Frames dropped because the target socket was not open",
	})
)

func init() {
	prometheus.MustRegister(
		connectionsGauge,
		handshakeRejects,
		broadcastsTotal,
		framesDelivered,
		framesDropped,
	)
}

func rejectReason(err error) string {
	switch CloseCodeFor(err) {
	case CloseMissingCredential:
		return "missing_credential"
	case CloseInvalidCredential:
		return "invalid_credential"
	default:
		return "internal"
	}
}
