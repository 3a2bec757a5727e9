// Package health tracks the readiness of the parts behind the mmif server.
//
// A Monitor holds one Status per named component (the schema validator,
// the vocabulary registry, each document location scheme) and folds them
// into a single Status for the /health endpoint.
//
// # Health States
//
//   - Healthy: working normally
//   - Degraded: working, but recent transient failures were seen
//   - Unhealthy: not usable
//
// An aggregate is unhealthy when any component is unhealthy, degraded when
// any is degraded, and healthy otherwise.
//
// # Document Locations
//
// Monitor.ObserveResolve has the signature of a docloc observer:
//
//	monitor := health.NewMonitor()
//	resolvers.Observe(monitor.ObserveResolve)
//
// A transient failure degrades the scheme until the next successful
// resolution. Other failures are problems of the location being resolved,
// not of the resolver, and change nothing.
//
// Messages built from errors are sanitized: URLs, paths, addresses, ports
// and credentials are masked before they reach a status.
package health
