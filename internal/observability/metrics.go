package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imodctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imodctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	viewerCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imodctl",
			Subsystem: "viewer",
			Name:      "commands_total",
			Help:      "Commands sent to the viewer process.",
		},
		[]string{"type", "outcome"},
	)
	viewerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imodctl",
			Subsystem: "viewer",
			Name:      "command_duration_seconds",
			Help:      "Viewer request/response round trip in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type", "outcome"},
	)
	gridIO = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imodctl",
			Subsystem: "grid",
			Name:      "io_total",
			Help:      "IDF grid reads and writes.",
		},
		[]string{"op", "precision", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, viewerCommands, viewerDuration, gridIO)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand records one viewer round trip. outcome is "ok" or an error
// class such as "timeout" or "connection".
func RecordCommand(commandType, outcome string, duration time.Duration) {
	RegisterMetrics()
	viewerCommands.WithLabelValues(commandType, outcome).Inc()
	viewerDuration.WithLabelValues(commandType, outcome).Observe(duration.Seconds())
}

func RecordGridIO(op, precision string, success bool) {
	RegisterMetrics()
	gridIO.WithLabelValues(op, precision, strconv.FormatBool(success)).Inc()
}

// WriteTextfile dumps the default registry in the text exposition format,
// for short-lived CLIs scraped through a node exporter textfile collector.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
