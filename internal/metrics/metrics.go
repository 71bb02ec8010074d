package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webrtc_ingest_active_websocket_connections",
		Help: "Number of active client WebSocket connections",
	})

	WebSocketConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_websocket_connections_total",
		Help: "Total number of client WebSocket connections",
	})

	WebSocketDisconnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_websocket_disconnections_total",
		Help: "Total number of client WebSocket disconnections",
	})

	ReplacedConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_replaced_connections_total",
		Help: "Client channels closed because the same client id reconnected",
	})

	SignallingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_signalling_messages_total",
		Help: "Total signalling envelopes",
	}, []string{"type", "direction"}) // direction: "in" | "out"

	SignallingErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_signalling_errors_total",
		Help: "Error envelopes sent to clients",
	}, []string{"code"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webrtc_ingest_active_sessions",
		Help: "Number of live sessions in the registry",
	})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_sessions_created_total",
		Help: "Total number of sessions created",
	})

	SessionTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_session_transitions_total",
		Help: "Session state transitions",
	}, []string{"state"})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webrtc_ingest_session_duration_seconds",
		Help:    "Lifetime of sessions from creation to close",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
	})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_upstream_requests_total",
		Help: "Requests sent to the processing node",
	}, []string{"endpoint", "result"}) // result: "ok" | "error"

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webrtc_ingest_upstream_request_seconds",
		Help:    "Latency of requests sent to the processing node",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	}, []string{"endpoint"})

	ActivePeerConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webrtc_ingest_active_peer_connections",
		Help: "Number of peer connections held by the processing node",
	})

	PeerConnectionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_peer_connection_failures_total",
		Help: "Negotiations that failed on the processing node",
	}, []string{"reason"})

	PeerConnectionStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_peer_connection_state_changes_total",
		Help: "Peer connection observer events",
	}, []string{"kind", "state"}) // kind: "ice_gathering" | "ice_connection" | "connection"

	ICEGatheringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webrtc_ingest_ice_gathering_seconds",
		Help:    "Time spent gathering local ICE candidates for an answer",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	})

	ICECandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_ice_candidates_total",
		Help: "ICE candidates handled",
	}, []string{"type"})

	CandidateParseFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_candidate_parse_failures_total",
		Help: "Candidate lines rejected by the parser",
	}, []string{"field"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webrtc_ingest_active_tracks",
		Help: "Number of inbound media tracks being received",
	}, []string{"type"})

	TrackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_track_errors_total",
		Help: "Receive loops that ended with an error",
	}, []string{"type"})

	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webrtc_ingest_frames_total",
		Help: "Frames handed to the frame sink",
	}, []string{"result"}) // "ok" | "error"

	FrameBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_frame_bytes_total",
		Help: "Encoded frame bytes handed to the frame sink",
	})

	PLIRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_pli_requests_total",
		Help: "Keyframe requests sent when a video track starts",
	})

	ConfigReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webrtc_ingest_config_reloads_total",
		Help: "Number of configuration reloads",
	})

	StartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webrtc_ingest_start_time_seconds",
		Help: "Server start time in Unix seconds",
	})
)
