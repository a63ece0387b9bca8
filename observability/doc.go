// Package observability provides an OpenTelemetry-based metrics extension
// for Cascade. The MetricsExtension implements lifecycle hooks to record
// chain-level counters: starts, handoffs, ends, retries, aborts, deferrals,
// dead letters, and trigger fires.
//
// Per-attempt execution timing is recorded on the platform side; see
// middleware.Tracing() and middleware.Metrics().
package observability
