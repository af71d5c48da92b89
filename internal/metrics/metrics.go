// Package metrics exposes Prometheus instrumentation for the session
// controller and its realtime channel. All helper methods are nil-safe so
// components can run uninstrumented in tests.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the live session client.
type Metrics struct {
	FramesTotal        *prometheus.CounterVec // labels: type
	FramesDropped      prometheus.Counter
	Reconnects         prometheus.Counter
	HeartbeatsSent     prometheus.Counter
	ChannelState       prometheus.Gauge // 0=disconnected, 1=connecting, 2=open, 3=closing
	SessionTransitions *prometheus.CounterVec // labels: to
	BarsUpserted       prometheus.Counter
	BarsRejected       prometheus.Counter
	APIRequestDur      *prometheus.HistogramVec // labels: op
	APIFailures        *prometheus.CounterVec   // labels: op
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveclient_frames_total",
			Help: "Inbound realtime frames by type",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveclient_frames_dropped_total",
			Help: "Frames dropped (malformed or event queue full)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveclient_reconnects_total",
			Help: "Total realtime channel reconnection attempts",
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveclient_heartbeats_sent_total",
			Help: "Ping frames sent on the realtime channel",
		}),
		ChannelState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liveclient_channel_state",
			Help: "Realtime channel state (0=disconnected, 1=connecting, 2=open, 3=closing)",
		}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveclient_session_transitions_total",
			Help: "Session lifecycle transitions by target state",
		}, []string{"to"}),
		BarsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveclient_bars_upserted_total",
			Help: "Bars applied to the bar store",
		}),
		BarsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveclient_bars_rejected_total",
			Help: "Bars rejected by validation",
		}),
		APIRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "liveclient_api_request_duration_seconds",
			Help:    "Session API request latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		APIFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveclient_api_failures_total",
			Help: "Session API request failures by operation",
		}, []string{"op"}),
	}

	prometheus.MustRegister(
		m.FramesTotal,
		m.FramesDropped,
		m.Reconnects,
		m.HeartbeatsSent,
		m.ChannelState,
		m.SessionTransitions,
		m.BarsUpserted,
		m.BarsRejected,
		m.APIRequestDur,
		m.APIFailures,
	)
	return m
}

// IncFrame counts one inbound frame of the given type.
func (m *Metrics) IncFrame(frameType string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(frameType).Inc()
}

// IncDropped counts one dropped frame.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}

// IncReconnect counts one reconnection attempt.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// IncHeartbeat counts one ping frame sent.
func (m *Metrics) IncHeartbeat() {
	if m == nil {
		return
	}
	m.HeartbeatsSent.Inc()
}

// SetChannelState records the current channel state value.
func (m *Metrics) SetChannelState(v float64) {
	if m == nil {
		return
	}
	m.ChannelState.Set(v)
}

// IncTransition counts one session transition into the given state.
func (m *Metrics) IncTransition(to string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(to).Inc()
}

// ObserveBarUpsert records the outcome of one bar store upsert.
func (m *Metrics) ObserveBarUpsert(applied bool) {
	if m == nil {
		return
	}
	if applied {
		m.BarsUpserted.Inc()
	} else {
		m.BarsRejected.Inc()
	}
}

// ObserveAPIRequest records the latency and outcome of one API call.
func (m *Metrics) ObserveAPIRequest(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.APIRequestDur.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.APIFailures.WithLabelValues(op).Inc()
	}
}

// Serve exposes /metrics on the given address. Blocks; run in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "err", err)
	}
}
