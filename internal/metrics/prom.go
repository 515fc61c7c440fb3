package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "agentrelay_build_info",
			Help:        "Build information for the agentrelay server",
			ConstLabels: prometheus.Labels{"component": "server"},
		},
		[]string{"date", "sha", "version"},
	)

	streamsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentrelay_streams_inflight",
			Help: "Number of agent streams currently being relayed",
		},
	)

	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrelay_streams_total",
			Help: "Agent streams relayed, by outcome",
		},
		[]string{"outcome"},
	)

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrelay_frames_total",
			Help: "Frames sent to clients, by frame type",
		},
		[]string{"type"},
	)

	streamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentrelay_stream_duration_seconds",
			Help:    "Wall time of relayed agent streams",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	decodeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "agentrelay_chunk_decode_failures_total",
			Help: "Upstream chunk payloads skipped because they failed to decode",
		},
	)
)

// Stream outcomes recorded by StreamEnded.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Register registers all metrics with the provided registerer.
func Register(r prometheus.Registerer) {
	r.MustRegister(buildInfo, streamsInflight, streamsTotal, framesTotal, streamDuration, decodeFailures)
}

// SetServerBuildInfo sets the build info metric for the server.
func SetServerBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// StreamStarted increments the in-flight stream gauge.
func StreamStarted() { streamsInflight.Inc() }

// StreamEnded decrements in-flight and records the outcome and duration.
func StreamEnded(outcome string, d time.Duration) {
	streamsInflight.Dec()
	streamsTotal.WithLabelValues(outcome).Inc()
	streamDuration.Observe(d.Seconds())
}

// RecordFrame counts one frame sent to a client.
func RecordFrame(frameType string) {
	framesTotal.WithLabelValues(frameType).Inc()
}

// RecordDecodeFailure counts one skipped upstream payload.
func RecordDecodeFailure() { decodeFailures.Inc() }
