package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BridgeMetrics holds Prometheus metrics for the broadcast fan-out.
type BridgeMetrics struct {
	FramesBroadcast   prometheus.Counter
	FramesDiscarded   prometheus.Counter
	DeliveryFailures  *prometheus.CounterVec
	ConnectedViewers  prometheus.Gauge
	FanOutDuration    prometheus.Histogram
	SinkPublishErrors prometheus.Counter
}

// NewBridgeMetrics creates and registers bridge metrics on the given registry.
func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		FramesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frames_broadcast_total",
			Help:      "Frames handed to at least one viewer.",
		}),
		FramesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frames_discarded_total",
			Help:      "Frames dropped because no viewer was connected.",
		}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "delivery_failures_total",
			Help:      "Per-viewer delivery failures, by reason.",
		}, []string{"reason"}),
		ConnectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "connected_viewers",
			Help:      "Number of registered viewers.",
		}),
		FanOutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "fan_out_duration_seconds",
			Help:      "Time spent handing one frame to all viewers.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		SinkPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "sink_publish_errors_total",
			Help:      "Errors returned by frame sinks.",
		}),
	}

	reg.MustRegister(m.FramesBroadcast, m.FramesDiscarded, m.DeliveryFailures, m.ConnectedViewers, m.FanOutDuration, m.SinkPublishErrors)
	return m
}

// FrameBroadcast counts a frame that reached at least one viewer.
func (m *BridgeMetrics) FrameBroadcast(fanOut time.Duration) {
	m.FramesBroadcast.Inc()
	m.FanOutDuration.Observe(fanOut.Seconds())
}

// FrameDiscarded counts a frame encoded while no viewer was connected.
func (m *BridgeMetrics) FrameDiscarded() {
	m.FramesDiscarded.Inc()
}

// DeliveryFailed counts a per-viewer failure under the given reason label.
func (m *BridgeMetrics) DeliveryFailed(reason string) {
	m.DeliveryFailures.WithLabelValues(reason).Inc()
}

// SinkPublishFailed counts an error returned by a frame sink.
func (m *BridgeMetrics) SinkPublishFailed() {
	m.SinkPublishErrors.Inc()
}
