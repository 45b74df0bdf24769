package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesTotal   *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	trackedSignals  prometheus.Gauge
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalwatch_messages_total",
				Help: "Total number of stream messages received, by stream and type",
			},
			[]string{"stream", "type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		reconnectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalwatch_reconnects_total",
				Help: "Total number of reconnect attempts, by stream",
			},
			[]string{"stream"},
		),
		trackedSignals: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalwatch_tracked_signals",
				Help: "Number of signals currently tracked in the view state",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessage records a decoded stream message.
func (r *Recorder) RecordMessage(stream, msgType string) {
	r.messagesTotal.WithLabelValues(stream, msgType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordReconnect records a reconnect attempt on a stream.
func (r *Recorder) RecordReconnect(stream string) {
	r.reconnectsTotal.WithLabelValues(stream).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetTrackedSignals records the current tracked-signal count.
func (r *Recorder) SetTrackedSignals(count int) {
	r.trackedSignals.Set(float64(count))
}
