package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

// Exporter exports spans to a backend.
type Exporter interface {
	// Export sends spans to the backend.
	Export(ctx context.Context, spans []*Span) error
	// Shutdown gracefully shuts down the exporter.
	Shutdown(ctx context.Context) error
}

// WriterExporter writes one JSON object per span.
type WriterExporter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
}

// WriterOption configures a WriterExporter.
type WriterOption func(*WriterExporter)

// WithPrettyPrint enables indented JSON output.
func WithPrettyPrint() WriterOption {
	return func(e *WriterExporter) {
		e.pretty = true
	}
}

// NewWriterExporter creates an exporter writing to w.
func NewWriterExporter(w io.Writer, opts ...WriterOption) *WriterExporter {
	e := &WriterExporter{writer: w}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// spanOutput is the JSON form written by WriterExporter.
type spanOutput struct {
	TraceID       string            `json:"traceId"`
	SpanID        string            `json:"spanId"`
	Name          string            `json:"name"`
	StartTime     string            `json:"startTime"`
	Duration      string            `json:"duration"`
	Status        string            `json:"status"`
	StatusMessage string            `json:"statusMessage,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Export implements Exporter.
func (e *WriterExporter) Export(_ context.Context, spans []*Span) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	enc := json.NewEncoder(e.writer)
	if e.pretty {
		enc.SetIndent("", "  ")
	}
	for _, span := range spans {
		out := spanOutput{
			TraceID:       span.TraceID,
			SpanID:        span.SpanID,
			Name:          span.Name,
			StartTime:     span.StartTime.Format(time.RFC3339Nano),
			Duration:      span.Duration().String(),
			Status:        span.Status.String(),
			StatusMessage: span.StatusMessage,
			Attributes:    span.Attributes,
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to write span: %w", err)
		}
	}
	return nil
}

// Shutdown is a no-op.
func (e *WriterExporter) Shutdown(context.Context) error {
	return nil
}

// HTTPDoer sends an HTTP request. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrExporterShutdown is returned by Export after Shutdown.
var ErrExporterShutdown = errors.New("exporter is shut down")

// OTLPExporter posts spans to an OTLP/HTTP JSON endpoint such as
// http://localhost:4318/v1/traces.
type OTLPExporter struct {
	endpoint   string
	client     HTTPDoer
	headers    map[string]string
	retryCount int
	backoff    time.Duration

	mu       sync.Mutex
	shutdown bool
}

// OTLPOption configures an OTLPExporter.
type OTLPOption func(*OTLPExporter)

// WithOTLPHeaders sets custom headers for OTLP requests.
func WithOTLPHeaders(headers map[string]string) OTLPOption {
	return func(e *OTLPExporter) {
		e.headers = headers
	}
}

// WithOTLPClient sets the HTTP client.
func WithOTLPClient(client HTTPDoer) OTLPOption {
	return func(e *OTLPExporter) {
		e.client = client
	}
}

// WithOTLPRetry sets the retry count and the first backoff, which doubles
// after each failed attempt.
func WithOTLPRetry(count int, backoff time.Duration) OTLPOption {
	return func(e *OTLPExporter) {
		e.retryCount = max(count, 0)
		e.backoff = backoff
	}
}

// NewOTLPExporter creates a new OTLP HTTP exporter.
func NewOTLPExporter(endpoint string, opts ...OTLPOption) *OTLPExporter {
	e := &OTLPExporter{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryCount: 3,
		backoff:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export implements Exporter. Failed posts are retried with exponential
// backoff until ctx is done.
func (e *OTLPExporter) Export(ctx context.Context, spans []*Span) error {
	e.mu.Lock()
	closed := e.shutdown
	e.mu.Unlock()
	if closed {
		return ErrExporterShutdown
	}
	if len(spans) == 0 {
		return nil
	}

	data, err := json.Marshal(convertToOTLP(spans))
	if err != nil {
		return fmt.Errorf("failed to marshal OTLP payload: %w", err)
	}

	wait := e.backoff
	for attempt := 0; ; attempt++ {
		err = e.send(ctx, data)
		if err == nil || attempt >= e.retryCount {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (e *OTLPExporter) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send spans: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("OTLP export failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Shutdown makes later exports fail with ErrExporterShutdown.
func (e *OTLPExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdown = true
	return nil
}

// OTLP JSON structures (the subset netclient emits).
type otlpTraceRequest struct {
	ResourceSpans []otlpResourceSpans `json:"resourceSpans"`
}

type otlpResourceSpans struct {
	Resource   otlpResource    `json:"resource"`
	ScopeSpans []otlpScopeSpan `json:"scopeSpans"`
}

type otlpResource struct {
	Attributes []otlpKeyValue `json:"attributes"`
}

type otlpScopeSpan struct {
	Scope otlpScope  `json:"scope"`
	Spans []otlpSpan `json:"spans"`
}

type otlpScope struct {
	Name string `json:"name"`
}

type otlpSpan struct {
	TraceID           string         `json:"traceId"`
	SpanID            string         `json:"spanId"`
	Name              string         `json:"name"`
	Kind              int            `json:"kind"`
	StartTimeUnixNano string         `json:"startTimeUnixNano"`
	EndTimeUnixNano   string         `json:"endTimeUnixNano"`
	Attributes        []otlpKeyValue `json:"attributes,omitempty"`
	Status            otlpStatus     `json:"status"`
}

type otlpKeyValue struct {
	Key   string    `json:"key"`
	Value otlpValue `json:"value"`
}

type otlpValue struct {
	StringValue string `json:"stringValue"`
}

type otlpStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// convertToOTLP groups spans under one resource per service name. The
// service.name attribute moves from the span to its resource.
func convertToOTLP(spans []*Span) otlpTraceRequest {
	byService := map[string][]otlpSpan{}
	var order []string
	for _, span := range spans {
		service := span.Attributes["service.name"]
		if _, ok := byService[service]; !ok {
			order = append(order, service)
		}
		byService[service] = append(byService[service], convertSpan(span))
	}

	req := otlpTraceRequest{ResourceSpans: make([]otlpResourceSpans, 0, len(order))}
	for _, service := range order {
		req.ResourceSpans = append(req.ResourceSpans, otlpResourceSpans{
			Resource: otlpResource{Attributes: []otlpKeyValue{{Key: "service.name", Value: otlpValue{StringValue: service}}}},
			ScopeSpans: []otlpScopeSpan{{
				Scope: otlpScope{Name: "netclient"},
				Spans: byService[service],
			}},
		})
	}
	return req
}

func convertSpan(span *Span) otlpSpan {
	out := otlpSpan{
		TraceID:           span.TraceID,
		SpanID:            span.SpanID,
		Name:              span.Name,
		Kind:              spanKindClient,
		StartTimeUnixNano: strconv.FormatInt(span.StartTime.UnixNano(), 10),
		EndTimeUnixNano:   strconv.FormatInt(span.EndTime.UnixNano(), 10),
		Status:            otlpStatus{Code: int(span.Status), Message: span.StatusMessage},
	}
	keys := make([]string, 0, len(span.Attributes))
	for k := range span.Attributes {
		if k != "service.name" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out.Attributes = append(out.Attributes, otlpKeyValue{Key: k, Value: otlpValue{StringValue: span.Attributes[k]}})
	}
	return out
}
