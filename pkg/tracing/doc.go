// Package tracing records finished client requests as OpenTelemetry-compatible
// spans and exports them in batches.
//
// Spans are built after the fact from a request's start time and duration,
// so a Tracer never holds open spans. Trace IDs are 32 hex characters
// (16 bytes) and span IDs 16 hex characters (8 bytes), as in W3C Trace
// Context.
//
// Usage:
//
//	tracer := tracing.NewTracer("netclient",
//	    tracing.WithExporter(tracing.NewWriterExporter(os.Stderr)),
//	)
//	defer tracer.Shutdown(ctx)
//
//	tracer.Record(&tracing.Span{Name: "GET /users", StartTime: start, EndTime: end})
package tracing
