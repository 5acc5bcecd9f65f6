package reporters

import (
	"strconv"

	"github.com/getmockd/netclient/pkg/client"
	"github.com/getmockd/netclient/pkg/tracing"
)

// TracingReporter records one client span per request outcome.
type TracingReporter struct {
	tracer *tracing.Tracer
}

// NewTracingReporter records spans in tracer.
func NewTracingReporter(tracer *tracing.Tracer) *TracingReporter {
	return &TracingReporter{tracer: tracer}
}

// BeforeSend implements client.Reporter.
func (r *TracingReporter) BeforeSend(*client.Request) {}

// AfterReceive implements client.Reporter. The trace ID is derived from the
// request ID so spans can be correlated with logs and history entries.
func (r *TracingReporter) AfterReceive(req *client.Request, rc *client.Context) {
	span := &tracing.Span{
		TraceID:   tracing.TraceIDFrom(rc.ID),
		Name:      "request",
		StartTime: rc.Started,
		EndTime:   rc.Started.Add(rc.Duration),
		Status:    tracing.StatusOK,
	}
	span.SetAttribute("netclient.request_id", rc.ID)
	span.SetAttribute("netclient.stubbed", strconv.FormatBool(rc.Stubbed))
	if req != nil {
		span.Name = string(req.Method) + " " + req.URL
		span.SetAttribute("http.method", string(req.Method))
		span.SetAttribute("http.url", req.URL)
	}
	if rc.Response != nil {
		span.SetAttribute("http.status_code", strconv.Itoa(rc.Response.StatusCode))
	}
	if rc.Err != nil {
		span.Status = tracing.StatusError
		span.StatusMessage = rc.Err.Error()
		span.SetAttribute("error.kind", ErrorKind(rc.Err))
	}
	r.tracer.Record(span)
}

var _ client.Reporter = (*TracingReporter)(nil)
