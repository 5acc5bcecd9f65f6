package tracing

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	// StatusUnset is the default status.
	StatusUnset SpanStatus = iota
	// StatusOK indicates the operation completed successfully.
	StatusOK
	// StatusError indicates the operation failed.
	StatusError
)

// String returns the string representation of the status.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// spanKindClient is the OTLP kind for an outgoing request.
const spanKindClient = 3

// Span is one finished request.
type Span struct {
	TraceID       string            `json:"traceId"`
	SpanID        string            `json:"spanId"`
	Name          string            `json:"name"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime"`
	Status        SpanStatus        `json:"status"`
	StatusMessage string            `json:"statusMessage,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Duration is EndTime minus StartTime.
func (s *Span) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// SetAttribute sets a key-value attribute on the span.
func (s *Span) SetAttribute(key, value string) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]string)
	}
	s.Attributes[key] = value
}

// Traceparent renders the span as a W3C traceparent header value.
func (s *Span) Traceparent() string {
	return "00-" + s.TraceID + "-" + s.SpanID + "-01"
}

// TraceIDFrom derives a trace ID from a UUID-formatted request ID, falling
// back to a random one when id is not 32 hex digits.
func TraceIDFrom(id string) string {
	hexID := strings.ReplaceAll(id, "-", "")
	if len(hexID) == 32 && isHex(hexID) && hexID != strings.Repeat("0", 32) {
		return strings.ToLower(hexID)
	}
	return randomHex(16)
}

// NewSpanID returns a random 16 hex digit span ID.
func NewSpanID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// Sampler decides whether a span should be recorded.
type Sampler interface {
	ShouldSample(traceID string) bool
}

// AlwaysSample is a sampler that always samples.
type AlwaysSample struct{}

// ShouldSample always returns true.
func (AlwaysSample) ShouldSample(string) bool { return true }

// RatioSampler keeps a fixed fraction of traces, decided by the high 8 bytes
// of the trace ID so every span of a trace gets the same answer.
type RatioSampler struct {
	ratio float64
}

// NewRatioSampler clamps ratio to [0, 1].
func NewRatioSampler(ratio float64) *RatioSampler {
	return &RatioSampler{ratio: min(max(ratio, 0), 1)}
}

// ShouldSample implements Sampler.
func (s *RatioSampler) ShouldSample(traceID string) bool {
	switch {
	case s.ratio >= 1:
		return true
	case s.ratio <= 0:
		return false
	}
	if len(traceID) < 16 {
		return true
	}
	b, err := hex.DecodeString(traceID[:16])
	if err != nil {
		return true
	}
	return binary.BigEndian.Uint64(b) < uint64(s.ratio*float64(^uint64(0)))
}

// Tracer batches recorded spans for an Exporter.
type Tracer struct {
	serviceName string
	exporter    Exporter
	sampler     Sampler
	batchSize   int

	mu     sync.Mutex
	spans  []*Span
	closed bool
	errs   []error
	wg     sync.WaitGroup // in-flight background exports
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithExporter sets the exporter for the tracer.
func WithExporter(e Exporter) TracerOption {
	return func(t *Tracer) {
		t.exporter = e
	}
}

// WithSampler sets the sampler for the tracer.
func WithSampler(s Sampler) TracerOption {
	return func(t *Tracer) {
		t.sampler = s
	}
}

// WithBatchSize sets how many spans are buffered before a background export.
func WithBatchSize(size int) TracerOption {
	return func(t *Tracer) {
		if size > 0 {
			t.batchSize = size
		}
	}
}

// NewTracer creates a new Tracer with the given service name.
func NewTracer(serviceName string, opts ...TracerOption) *Tracer {
	t := &Tracer{
		serviceName: serviceName,
		sampler:     AlwaysSample{},
		batchSize:   100,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ServiceName returns the tracer's service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// Record buffers span for export, filling in missing IDs. It reports whether
// the span was sampled. Spans recorded after Shutdown are dropped.
func (t *Tracer) Record(span *Span) bool {
	if span == nil {
		return false
	}
	if span.TraceID == "" {
		span.TraceID = randomHex(16)
	}
	if span.SpanID == "" {
		span.SpanID = NewSpanID()
	}
	if !t.sampler.ShouldSample(span.TraceID) {
		return false
	}
	span.SetAttribute("service.name", t.serviceName)

	t.mu.Lock()
	if t.closed || t.exporter == nil {
		t.mu.Unlock()
		return false
	}
	t.spans = append(t.spans, span)
	if len(t.spans) < t.batchSize {
		t.mu.Unlock()
		return true
	}
	batch := t.spans
	t.spans = nil
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		if err := t.exporter.Export(context.Background(), batch); err != nil {
			t.mu.Lock()
			t.errs = append(t.errs, err)
			t.mu.Unlock()
		}
	}()
	return true
}

// Flush waits for background exports, then exports the buffered spans. It
// returns every export failure since the previous Flush.
func (t *Tracer) Flush(ctx context.Context) error {
	t.wg.Wait()

	t.mu.Lock()
	batch := t.spans
	t.spans = nil
	errs := t.errs
	t.errs = nil
	t.mu.Unlock()

	if t.exporter != nil && len(batch) > 0 {
		if err := t.exporter.Export(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and shuts the exporter down. Later calls are no-ops.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	err := t.Flush(ctx)
	if t.exporter != nil {
		err = errors.Join(err, t.exporter.Shutdown(ctx))
	}
	return err
}
