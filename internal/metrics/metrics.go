// Package metrics exposes Prometheus counters for HTTP traffic and the
// resolved settings snapshot.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lms-platform/lms-backend/internal/config"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	configWarnings prometheus.Gauge
	debugMode      prometheus.Gauge
	settingSources *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests by route, method and status."},
			[]string{"route", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request latency in seconds.", Buckets: prometheus.DefBuckets},
			[]string{"route", "method"},
		),
		configWarnings: prometheus.NewGauge(prometheus.GaugeOpts{Name: "lms_config_warnings", Help: "Settings problems recovered at startup."}),
		debugMode:      prometheus.NewGauge(prometheus.GaugeOpts{Name: "lms_debug_mode", Help: "1 when the service runs with debug enabled."}),
		settingSources: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "lms_setting_source", Help: "Always 1; labels record where each setting came from."},
			[]string{"name", "source"},
		),
	}
	m.registry.MustRegister(m.requests, m.latency, m.configWarnings, m.debugMode, m.settingSources)
	return m
}

// ObserveConfig records the settings snapshot. Values are never exported,
// only their sources.
func (m *Metrics) ObserveConfig(cfg config.Config) {
	m.configWarnings.Set(float64(len(cfg.Warnings)))
	if cfg.Debug {
		m.debugMode.Set(1)
	} else {
		m.debugMode.Set(0)
	}
	m.settingSources.Reset()
	for _, attr := range cfg.Attributes() {
		m.settingSources.WithLabelValues(attr.Name, attr.Source).Set(1)
	}
}

// Middleware counts requests and observes their latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// routeLabel keeps label cardinality bounded: file trees collapse to their
// prefix and unknown paths share one label.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, config.StaticURL):
		return config.StaticURL
	case strings.HasPrefix(path, config.MediaURL):
		return config.MediaURL
	case path == "/api/health", path == "/api/settings", path == "/metrics":
		return path
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
