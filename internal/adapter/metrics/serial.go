package metrics

import "github.com/prometheus/client_golang/prometheus"

// SerialMetrics holds Prometheus metrics for the hardware serial link.
type SerialMetrics struct {
	LinkConnected   prometheus.Gauge
	OpenFailures    prometheus.Counter
	Reconnects      prometheus.Counter
	LinesRead       *prometheus.CounterVec
	ReadingsQueued  prometheus.Counter
	ReadingsDropped prometheus.Counter
}

// NewSerialMetrics creates and registers serial link metrics on the given registry.
func NewSerialMetrics(reg prometheus.Registerer) *SerialMetrics {
	m := &SerialMetrics{
		LinkConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "link_connected",
			Help:      "1 while the serial port is open, 0 otherwise.",
		}),
		OpenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "open_failures_total",
			Help:      "Failed attempts to open the serial port.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "reconnects_total",
			Help:      "Successful opens after the link was lost.",
		}),
		LinesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "lines_total",
			Help:      "Lines read from the device, by classification.",
		}, []string{"kind"}),
		ReadingsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "readings_queued_total",
			Help:      "Decoded readings handed to the bridge.",
		}),
		ReadingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "readings_dropped_total",
			Help:      "Decoded readings dropped because the bridge was behind.",
		}),
	}

	reg.MustRegister(m.LinkConnected, m.OpenFailures, m.Reconnects, m.LinesRead, m.ReadingsQueued, m.ReadingsDropped)
	return m
}
