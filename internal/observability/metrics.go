package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Anomaly kinds recorded by the launcher.
const (
	AnomalyUnknownToken   = "unknown_token"
	AnomalyDisplacedToken = "displaced_token"
	AnomalyChecksum       = "checksum"
	AnomalyMalformed      = "malformed_frame"
	AnomalyWriteFailed    = "write_failed"
	AnomalyDeviceError    = "device_error"
	AnomalyNak            = "nak"
	AnomalyUnrecognized   = "unrecognized"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trklaunch",
			Subsystem: "protocol",
			Name:      "frames_sent_total",
			Help:      "Frames written to the device, by operation code.",
		},
		[]string{"code", "bypass"},
	)
	repliesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trklaunch",
			Subsystem: "protocol",
			Name:      "replies_received_total",
			Help:      "Decoded inbound messages, by reply class.",
		},
		[]string{"class"},
	)
	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trklaunch",
			Subsystem: "protocol",
			Name:      "anomalies_total",
			Help:      "Logged protocol diagnostics that did not stop the workflow.",
		},
		[]string{"kind"},
	)
	fileBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trklaunch",
			Subsystem: "transfer",
			Name:      "bytes_queued_total",
			Help:      "File bytes queued as write requests.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trklaunch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status server requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trklaunch",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesSent, repliesReceived, anomalies, fileBytes, httpRequests, httpDuration)
	})
}

func RecordFrameSent(code string, bypass bool) {
	RegisterMetrics()
	framesSent.WithLabelValues(code, strconv.FormatBool(bypass)).Inc()
}

func RecordReply(class string) {
	RegisterMetrics()
	repliesReceived.WithLabelValues(class).Inc()
}

func RecordAnomaly(kind string) {
	RegisterMetrics()
	anomalies.WithLabelValues(kind).Inc()
}

func RecordFileBytes(n int) {
	RegisterMetrics()
	fileBytes.Add(float64(n))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
