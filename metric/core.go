package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/vocabulary"
)

// Metrics contains the core MMIF metrics. It implements mmif.Observer.
type Metrics struct {
	// Codec metrics
	CodecOperations *prometheus.CounterVec
	SchemaFindings  prometheus.Counter

	// Vocabulary and location metrics
	VersionMismatches *prometheus.CounterVec
	LocationResolves  *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new, unregistered Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		CodecOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mmif",
				Subsystem: "codec",
				Name:      "operations_total",
				Help:      "Total number of encode and decode operations",
			},
			[]string{"entity", "op", "status"},
		),

		SchemaFindings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mmif",
				Subsystem: "schema",
				Name:      "findings_total",
				Help:      "Total number of schema findings reported by validation",
			},
		),

		VersionMismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mmif",
				Subsystem: "vocabulary",
				Name:      "version_mismatch_total",
				Help:      "Total number of type comparisons that matched across versions",
			},
			[]string{"type"},
		),

		LocationResolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mmif",
				Subsystem: "docloc",
				Name:      "resolve_total",
				Help:      "Total number of document location resolutions",
			},
			[]string{"scheme", "status"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mmif",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "code"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mmif",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.CodecOperations,
		c.SchemaFindings,
		c.VersionMismatches,
		c.LocationResolves,
		c.HTTPRequests,
		c.HTTPRequestDuration,
	}
}

// status labels a result: "ok", or the error's class.
func status(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.Classify(err).String()
}

// ObserveCodec counts one encode or decode of entity.
func (c *Metrics) ObserveCodec(entity, op string, err error) {
	c.CodecOperations.WithLabelValues(entity, op, status(err)).Inc()
}

// ObserveSchemaFindings adds the findings of one validation run.
func (c *Metrics) ObserveSchemaFindings(n int) {
	if n > 0 {
		c.SchemaFindings.Add(float64(n))
	}
}

// RecordVersionMismatch counts a fuzzy type match across versions.
func (c *Metrics) RecordVersionMismatch(m vocabulary.VersionMismatch) {
	c.VersionMismatches.WithLabelValues(m.Checked.Name).Inc()
}

// RecordResolve counts one location resolution.
func (c *Metrics) RecordResolve(scheme string, err error) {
	c.LocationResolves.WithLabelValues(scheme, status(err)).Inc()
}

// RecordRequest records one served HTTP request.
func (c *Metrics) RecordRequest(route string, code int, duration time.Duration) {
	if code == 0 {
		code = http.StatusOK
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
