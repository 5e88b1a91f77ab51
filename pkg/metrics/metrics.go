// Package metrics exposes Prometheus collectors for the frame pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/framecast/pkg/ring"
)

const namespace = "framecast"

// Metrics holds the collectors of one server. Every Record method is safe on
// a nil *Metrics, which disables recording.
type Metrics struct {
	registry *prometheus.Registry

	framesSent     *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	viewers        *prometheus.GaugeVec
	sourceRunning  prometheus.Gauge
	sourceRestarts prometheus.Counter
}

// New creates the collectors on a private registry. Ring counters are read
// from buf at scrape time.
func New(buf *ring.Buffer) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_sent_total",
				Help:      "Frames delivered to clients.",
			},
			[]string{"route"},
		),
		framesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Frames overwritten before a client could read them.",
			},
			[]string{"route"},
		),
		viewers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "viewers",
				Help:      "Connected streaming clients.",
			},
			[]string{"route"},
		),
		sourceRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "running",
			Help:      "1 while the frame source is producing data.",
		}),
		sourceRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "restarts_total",
			Help:      "Times the frame source was restarted after stopping.",
		}),
	}

	m.registry.MustRegister(
		m.framesSent,
		m.framesDropped,
		m.viewers,
		m.sourceRunning,
		m.sourceRestarts,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "frames_written_total",
			Help:      "Frames completed by the ring buffer.",
		}, func() float64 { return float64(buf.Stats().Frames) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "bytes_written_total",
			Help:      "Bytes accepted by the ring buffer.",
		}, func() float64 { return float64(buf.Stats().Bytes) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ring",
			Name:      "capacity",
			Help:      "Number of frame slots.",
		}, func() float64 { return float64(buf.Capacity()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordFrameSent counts one frame delivered on route.
func (m *Metrics) RecordFrameSent(route string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(route).Inc()
}

// RecordFramesDropped counts n frames a client on route missed.
func (m *Metrics) RecordFramesDropped(route string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.framesDropped.WithLabelValues(route).Add(float64(n))
}

// ViewerConnected increments the viewer gauge for route.
func (m *Metrics) ViewerConnected(route string) {
	if m == nil {
		return
	}
	m.viewers.WithLabelValues(route).Inc()
}

// ViewerDisconnected decrements the viewer gauge for route.
func (m *Metrics) ViewerDisconnected(route string) {
	if m == nil {
		return
	}
	m.viewers.WithLabelValues(route).Dec()
}

// SetSourceRunning records whether the source is producing data.
func (m *Metrics) SetSourceRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.sourceRunning.Set(1)
	} else {
		m.sourceRunning.Set(0)
	}
}

// RecordSourceRestart counts one source restart.
func (m *Metrics) RecordSourceRestart() {
	if m == nil {
		return
	}
	m.sourceRestarts.Inc()
}
