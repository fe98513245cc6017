package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heritage_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"page", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "heritage_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"page", "method"},
	)

	sectionSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heritage_section_selections_total",
			Help: "Section selections by section slug.",
		},
		[]string{"section"},
	)

	playbackCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heritage_playback_commands_total",
			Help: "Audio commands issued to the browser, plus ended events received.",
		},
		[]string{"command"},
	)

	qrEncodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heritage_qr_encodes_total",
			Help: "QR encode attempts by result (ok, error, cached).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(sectionSelectionsTotal)
	prometheus.MustRegister(playbackCommandsTotal)
	prometheus.MustRegister(qrEncodesTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordSectionSelection(section string) {
	sectionSelectionsTotal.WithLabelValues(section).Inc()
}

func RecordPlaybackCommand(command string) {
	playbackCommandsTotal.WithLabelValues(command).Inc()
}

func RecordQREncode(result string) {
	qrEncodesTotal.WithLabelValues(result).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration labelled by page name
// rather than raw path, keeping label cardinality bounded.
func Middleware(page string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		httpRequestsTotal.WithLabelValues(page, r.Method, strconv.Itoa(sw.code)).Inc()
		httpDurationSeconds.WithLabelValues(page, r.Method).Observe(time.Since(start).Seconds())
	})
}
