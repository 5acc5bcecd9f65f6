// Package metrics records request counters, gauges and latency histograms and
// renders them in the Prometheus text exposition format
// (text/plain; version=0.0.4).
//
// Metrics are created through a Registry and are safe for concurrent use.
// Label values are bound with WithLabels; metrics declared without labels can
// be updated directly.
//
//	reg := metrics.NewRegistry()
//	sent := reg.NewCounter("netclient_requests_total", "Requests sent.", "method", "source")
//	sent.MustWithLabels("GET", "network").Inc()
//
//	_ = reg.WriteText(os.Stdout)
//	http.Handle("/metrics", reg.Handler())
package metrics
