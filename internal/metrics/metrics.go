// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting restnotify runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Response dispositions, also used as the "disposition" label value.
const (
	DispositionSuccess     = "success"
	DispositionClientError = "client_error"
	DispositionServerError = "server_error"
	DispositionOther       = "other"
)

var (
	sent             int64
	clientErrors     int64
	serverErrors     int64
	otherResponses   int64
	transportErrors  int64
	coercionFailures int64
	unsupportedTypes int64
	reloads          int64
	lastSend         int64
)

var (
	promNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restnotify_notifications_total",
			Help: "Notifications that received an HTTP response, by response class",
		},
		[]string{"service", "disposition"},
	)
	promTransportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restnotify_transport_errors_total",
			Help: "Notifications that failed before an HTTP response was received",
		},
		[]string{"service"},
	)
	promCoercionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restnotify_coercion_failures_total",
			Help: "Data fields that could not be converted to their declared type",
		},
	)
	promUnsupportedTypes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restnotify_unsupported_types_total",
			Help: "Data fields whose declared type is not supported",
		},
	)
	promReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restnotify_config_reloads_total",
			Help: "Successful configuration reloads",
		},
	)
	promSendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restnotify_send_duration_seconds",
			Help:    "Duration of notification HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"service"},
	)
	promLastSend = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "restnotify_last_send_timestamp_seconds",
			Help: "Unix timestamp of the last notification attempt",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promNotifications,
		promTransportErrors,
		promCoercionFailures,
		promUnsupportedTypes,
		promReloads,
		promSendDuration,
		promLastSend,
	)
}

// IncResponse records a received response for service under its disposition.
func IncResponse(service, disposition string) {
	switch disposition {
	case DispositionSuccess:
		atomic.AddInt64(&sent, 1)
	case DispositionClientError:
		atomic.AddInt64(&clientErrors, 1)
	case DispositionServerError:
		atomic.AddInt64(&serverErrors, 1)
	default:
		disposition = DispositionOther
		atomic.AddInt64(&otherResponses, 1)
	}
	promNotifications.WithLabelValues(service, disposition).Inc()
}

// IncTransportError records a send that never got a response.
func IncTransportError(service string) {
	atomic.AddInt64(&transportErrors, 1)
	promTransportErrors.WithLabelValues(service).Inc()
}

// IncCoercionFailure records a field degraded to null by data_types.
func IncCoercionFailure() {
	atomic.AddInt64(&coercionFailures, 1)
	promCoercionFailures.Inc()
}

// IncUnsupportedType records a field whose data type tag was ignored.
func IncUnsupportedType() {
	atomic.AddInt64(&unsupportedTypes, 1)
	promUnsupportedTypes.Inc()
}

// IncReload records a configuration reload.
func IncReload() {
	atomic.AddInt64(&reloads, 1)
	promReloads.Inc()
}

// ObserveSendDuration records how long a request to service took.
func ObserveSendDuration(service string, d time.Duration) {
	promSendDuration.WithLabelValues(service).Observe(d.Seconds())
}

// SetLastSend stores t as the time of the last notification attempt.
func SetLastSend(t time.Time) {
	atomic.StoreInt64(&lastSend, t.Unix())
	promLastSend.Set(float64(t.Unix()))
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	Sent             int64  `json:"sent"`
	ClientErrors     int64  `json:"client_errors"`
	ServerErrors     int64  `json:"server_errors"`
	OtherResponses   int64  `json:"other_responses"`
	TransportErrors  int64  `json:"transport_errors"`
	CoercionFailures int64  `json:"coercion_failures"`
	UnsupportedTypes int64  `json:"unsupported_types"`
	Reloads          int64  `json:"reloads"`
	LastSend         int64  `json:"last_send_timestamp"`
	LastSendHuman    string `json:"last_send_human"`
}

// GetSnapshot returns the current values of all counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastSend)
	human := ""
	if ts > 0 {
		human = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return StatsSnapshot{
		Sent:             atomic.LoadInt64(&sent),
		ClientErrors:     atomic.LoadInt64(&clientErrors),
		ServerErrors:     atomic.LoadInt64(&serverErrors),
		OtherResponses:   atomic.LoadInt64(&otherResponses),
		TransportErrors:  atomic.LoadInt64(&transportErrors),
		CoercionFailures: atomic.LoadInt64(&coercionFailures),
		UnsupportedTypes: atomic.LoadInt64(&unsupportedTypes),
		Reloads:          atomic.LoadInt64(&reloads),
		LastSend:         ts,
		LastSendHuman:    human,
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
