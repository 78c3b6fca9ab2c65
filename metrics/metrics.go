package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus instruments of a learning session
type Metrics struct {
	// Session lifecycle
	SessionsStarted prometheus.Counter
	SessionErrors   *prometheus.CounterVec
	SessionState    prometheus.Gauge
	ConnectDuration prometheus.Histogram

	// Capture
	FramesSent    prometheus.Counter
	FramesDropped prometheus.Counter

	// Playback
	ChunksScheduled prometheus.Counter
	DecodeErrors    prometheus.Counter
	Interruptions   prometheus.Counter

	// Transcript
	TranscriptEntries *prometheus.CounterVec
}

// New creates the instruments and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_sessions_started_total",
			Help: "Total number of learning sessions started",
		}),
		SessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingolive_session_errors_total",
			Help: "Total number of learning sessions ended by an error",
		}, []string{"kind"}),
		SessionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lingolive_session_state",
			Help: "Current session state (0 idle, 1 connecting, 2 open, 3 closing, 4 errored)",
		}),
		ConnectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lingolive_connect_duration_seconds",
			Help:    "Time from start request to an open session",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),

		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_frames_sent_total",
			Help: "Total number of microphone frames sent",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_frames_dropped_total",
			Help: "Total number of microphone frames dropped after the session closed",
		}),

		ChunksScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_chunks_scheduled_total",
			Help: "Total number of response audio chunks scheduled for playback",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_decode_errors_total",
			Help: "Total number of response audio payloads that failed to decode",
		}),
		Interruptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "lingolive_interruptions_total",
			Help: "Total number of playback interruptions",
		}),

		TranscriptEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingolive_transcript_entries_total",
			Help: "Total number of transcript entries by speaker",
		}, []string{"speaker"}),
	}
}
