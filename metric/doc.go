// Package metric provides the Prometheus metrics of the MMIF toolkit.
//
// A MetricsRegistry owns a private Prometheus registry holding the core
// Metrics (codec operations, schema findings, vocabulary version
// mismatches, location resolutions and HTTP requests) plus the Go runtime
// collectors. Additional collectors are registered through the
// MetricsRegistrar interface.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	stop := metric.Instrument(registry.CoreMetrics(), docloc.Default)
//	defer stop()
//
//	m, err := mmif.FromJSON(data, mmif.WithObserver(registry.CoreMetrics()))
//
//	http.Handle("/metrics", registry.Handler())
//
// # Metric Names
//
//	mmif_codec_operations_total{entity,op,status}
//	mmif_schema_findings_total
//	mmif_vocabulary_version_mismatch_total{type}
//	mmif_docloc_resolve_total{scheme,status}
//	mmif_http_requests_total{route,code}
//	mmif_http_request_duration_seconds{route}
//
// The status label is "ok" or the class of the error (invalid, fatal,
// transient).
package metric
