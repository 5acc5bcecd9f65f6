// Package reporters provides ready-made client.Reporter implementations.
//
//   - LoggingReporter writes one line before and one after every request
//     through a Logger capability.
//   - HistoryReporter keeps a bounded, filterable history of outcomes and
//     streams new entries to subscribers.
//   - MetricsReporter counts requests, errors and latencies in a
//     metrics.Registry.
//   - TracingReporter records a client span per request in a tracing.Tracer.
//
// Register them by pointer so they can be removed and held weakly:
//
//	history := reporters.NewHistoryReporter(500)
//	c.AddReporter(history, registry.Strong)
package reporters
