package reporters

import (
	"errors"
	"strconv"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/metrics"
	"github.com/getmockd/netclient/pkg/stub"
)

// Metric names registered by MetricsReporter.
const (
	MetricRequestsTotal   = "netclient_requests_total"
	MetricErrorsTotal     = "netclient_request_errors_total"
	MetricInflight        = "netclient_requests_inflight"
	MetricRequestDuration = "netclient_request_duration_seconds"
)

// Error kinds used as the "kind" label of MetricErrorsTotal.
const (
	KindInvalidRequest = "invalid_request"
	KindEncoding       = "encoding"
	KindValidation     = "validation"
	KindStub           = "stub"
	KindNoResponse     = "no_response"
	KindTransport      = "transport"
)

// MetricsReporter records request counts, errors, in-flight requests and
// latency in a metrics.Registry.
type MetricsReporter struct {
	registry *metrics.Registry
	requests *metrics.Counter
	errors   *metrics.Counter
	inflight *metrics.Gauge
	duration *metrics.Histogram
}

// NewMetricsReporter registers its metrics in reg, or in a fresh registry
// when reg is nil. It panics if reg already holds metrics with the same
// names.
func NewMetricsReporter(reg *metrics.Registry) *MetricsReporter {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	return &MetricsReporter{
		registry: reg,
		requests: reg.NewCounter(MetricRequestsTotal, "Requests completed, by method, source and status.", "method", "source", "status"),
		errors:   reg.NewCounter(MetricErrorsTotal, "Requests that completed with an error, by kind.", "method", "kind"),
		inflight: reg.NewGauge(MetricInflight, "Requests between BeforeSend and AfterReceive."),
		duration: reg.NewHistogram(MetricRequestDuration, "Time to resolve a request.", metrics.DefaultBuckets, "method", "source"),
	}
}

// Registry returns the registry the reporter writes to.
func (m *MetricsReporter) Registry() *metrics.Registry {
	return m.registry
}

// BeforeSend implements client.Reporter.
func (m *MetricsReporter) BeforeSend(*client.Request) {
	_ = m.inflight.Inc()
}

// AfterReceive implements client.Reporter.
func (m *MetricsReporter) AfterReceive(req *client.Request, rc *client.Context) {
	_ = m.inflight.Dec()

	method := "unknown"
	if req != nil && req.Method != "" {
		method = string(req.Method)
	}
	source := "network"
	if rc.Stubbed {
		source = "stub"
	}
	status := "none"
	if rc.Response != nil {
		status = strconv.Itoa(rc.Response.StatusCode)
	}

	_ = m.requests.MustWithLabels(method, source, status).Inc()
	m.duration.MustWithLabels(method, source).Observe(rc.Duration.Seconds())
	if rc.Err != nil {
		_ = m.errors.MustWithLabels(method, ErrorKind(rc.Err)).Inc()
	}
}

// ErrorKind classifies a Send outcome error.
func ErrorKind(err error) string {
	var (
		encErr  *client.ParametersEncodingError
		valErr  *client.ResponseValidationError
		stubErr *stub.Error
	)
	switch {
	case errors.Is(err, client.ErrInvalidRequest):
		return KindInvalidRequest
	case errors.As(err, &encErr):
		return KindEncoding
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &stubErr):
		return KindStub
	case errors.Is(err, client.ErrNoResponse):
		return KindNoResponse
	default:
		return KindTransport
	}
}

var _ client.Reporter = (*MetricsReporter)(nil)
