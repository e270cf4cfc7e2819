package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mockmaster_client_active_sessions",
		Help: "Number of live interview sessions currently running",
	})
	PlaybackQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mockmaster_client_playback_queue_depth",
		Help: "Audio chunks waiting to be played",
	})
)

// Counters
var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_sessions_total",
		Help: "Sessions by final state",
	}, []string{"final_state"})
	InboundMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_inbound_messages_total",
		Help: "Inbound socket messages by type",
	}, []string{"type"})
	OutboundFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_outbound_frames_total",
		Help: "Outbound socket frames by kind",
	}, []string{"kind"})
	SendDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mockmaster_client_send_drops_total",
		Help: "Outbound frames dropped because the send buffer was full",
	})
	ParseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mockmaster_client_parse_errors_total",
		Help: "Inbound frames that could not be parsed",
	})
	MicFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_mic_frames_total",
		Help: "Microphone frames by outcome",
	}, []string{"outcome"})
	PlaybackChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_playback_chunks_total",
		Help: "Playback chunks by outcome",
	}, []string{"outcome"})
	CameraFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockmaster_client_camera_frames_total",
		Help: "Camera samples by outcome",
	}, []string{"outcome"})
)

// Histograms
var (
	BackendRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mockmaster_client_backend_request_duration_ms",
		Help:    "Backend REST request duration in milliseconds by operation",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 30000},
	}, []string{"operation"})
)
