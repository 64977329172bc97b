package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	openSessions prometheus.Gauge
	sessionTotal prometheus.Counter

	askTotal    *prometheus.CounterVec
	askDuration *prometheus.HistogramVec
	askErrors   *prometheus.CounterVec

	historyLoadDuration prometheus.Histogram
	historySaveDuration prometheus.Histogram
	storedTranscripts   prometheus.Gauge

	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			openSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "open_sessions",
					Help: "Current open session count.",
				},
			),
			sessionTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total sessions created.",
				},
			),
			askTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ask_total",
					Help: "Total ask calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			askDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "ask_duration_seconds",
					Help:    "Ask call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			askErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ask_errors_total",
					Help: "Total ask errors by provider.",
				},
				[]string{"provider"},
			),
			historyLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "history_load_duration_seconds",
					Help:    "Transcript load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			historySaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "history_save_duration_seconds",
					Help:    "Transcript append duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			storedTranscripts: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "stored_transcripts",
					Help: "Current persisted transcript count.",
				},
			),
			storeOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "store_ops_total",
					Help: "Total memory store operations by op and status.",
				},
				[]string{"op", "status"},
			),
			storeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "store_op_duration_seconds",
					Help:    "Memory store operation duration in seconds by op.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
		}

		prometheus.MustRegister(
			m.openSessions,
			m.sessionTotal,
			m.askTotal,
			m.askDuration,
			m.askErrors,
			m.historyLoadDuration,
			m.historySaveDuration,
			m.storedTranscripts,
			m.storeOpsTotal,
			m.storeOpDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSessionOpened() {
	m := getMetrics()
	m.sessionTotal.Inc()
	m.openSessions.Inc()
}

func RecordSessionClosed() {
	m := getMetrics()
	m.openSessions.Dec()
}

func RecordAsk(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.askTotal.WithLabelValues(provider, status).Inc()
	m.askDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if !success {
		m.askErrors.WithLabelValues(provider).Inc()
	}
}

func RecordHistoryLoad(duration time.Duration) {
	m := getMetrics()
	m.historyLoadDuration.Observe(duration.Seconds())
}

func RecordHistorySave(duration time.Duration) {
	m := getMetrics()
	m.historySaveDuration.Observe(duration.Seconds())
}

func SetStoredTranscripts(count int) {
	m := getMetrics()
	m.storedTranscripts.Set(float64(count))
}

func RecordStoreOp(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.storeOpsTotal.WithLabelValues(op, status).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}
