// Package tracing implements the coordinator's span writer: the append-only
// NDJSON log that is the authoritative record of what happened (state files
// are optimizations on top of it). Every claim-engine operation starts a
// span before taking any lock and ends it after commit or rollback.
package tracing

import (
	"context"

	"github.com/cuemby/workclaim/pkg/clock"
	"github.com/cuemby/workclaim/pkg/types"
)

type ctxKey int

const (
	ctxKeyTraceID ctxKey = iota
	ctxKeySpanID
)

// WithTrace returns a context carrying traceID/parentSpanID, the propagation
// mechanism used both within a process and across subprocess invocations
// (via the TRACE_ID/PARENT_SPAN_ID environment variables at the CLI edge).
func WithTrace(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyTraceID, traceID)
	ctx = context.WithValue(ctx, ctxKeySpanID, spanID)
	return ctx
}

// TraceID returns the trace id carried by ctx, minting one if absent.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID).(string); ok && v != "" {
		return v
	}
	return clock.NewTraceID()
}

// ParentSpanID returns the span id carried by ctx, the empty string if this
// is a root span.
func ParentSpanID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySpanID).(string)
	return v
}

// SpanHandle is returned by StartSpan and consumed by EndSpan.
type SpanHandle struct {
	ctx        context.Context
	traceID    string
	spanID     string
	parentSpan string
	op         string
	start      int64
	startWall  string
	attrs      map[string]string
}

// Context returns a context derived from the span's parent that carries this
// span's IDs, for passing down to nested operations.
func (h SpanHandle) Context() context.Context {
	return WithTrace(h.ctx, h.traceID, h.spanID)
}

// TraceID returns the span's trace id.
func (h SpanHandle) TraceID() string { return h.traceID }

// SpanID returns the span's own id.
func (h SpanHandle) SpanID() string { return h.spanID }

// Writer is implemented by anything that can persist finished spans.
type Writer interface {
	Write(span types.Span) error
}

// Tracer starts and ends spans against a Writer.
type Tracer struct {
	serviceName string
	writer      Writer
}

// New constructs a Tracer that writes spans through w.
func New(serviceName string, w Writer) *Tracer {
	return &Tracer{serviceName: serviceName, writer: w}
}

// StartSpan opens a span named operationName, deriving trace/parent-span ids
// from ctx (minting a fresh trace id if ctx carries none).
func (t *Tracer) StartSpan(ctx context.Context, operationName string, attrs map[string]string) SpanHandle {
	traceID := TraceID(ctx)
	parent := ParentSpanID(ctx)
	spanID := clock.NewSpanID()

	merged := map[string]string{}
	for k, v := range attrs {
		merged[k] = v
	}
	if clock.IDFallback.Load() {
		merged["id_fallback"] = "true"
	}

	return SpanHandle{
		ctx:        ctx,
		traceID:    traceID,
		spanID:     spanID,
		parentSpan: parent,
		op:         operationName,
		start:      clock.NowMonotonicNS(),
		startWall:  clock.NowWallISO8601Ms(),
		attrs:      merged,
	}
}

// EndSpan closes h, recording status and merging extraAttrs, and persists
// the span via the tracer's writer. Writer failures never propagate to the
// caller (§4.2): they are logged and counted by the writer itself.
func (t *Tracer) EndSpan(h SpanHandle, status types.SpanStatus, extraAttrs map[string]string) {
	durationMs := (clock.NowMonotonicNS() - h.start) / int64(1e6)

	attrs := map[string]string{}
	for k, v := range h.attrs {
		attrs[k] = v
	}
	for k, v := range extraAttrs {
		attrs[k] = v
	}

	span := types.Span{
		TraceID:       h.traceID,
		SpanID:        h.spanID,
		ParentSpanID:  h.parentSpan,
		OperationName: h.op,
		ServiceName:   t.serviceName,
		StartTime:     h.startWall,
		EndTime:       clock.NowWallISO8601Ms(),
		DurationMs:    durationMs,
		Status:        status,
		Attributes:    attrs,
	}
	_ = t.writer.Write(span)
}

// LogEvent appends a one-shot span-shaped event that has no duration (e.g.
// the daily status_report record), sharing ctx's trace id.
func (t *Tracer) LogEvent(ctx context.Context, operationName string, attrs map[string]string) {
	h := t.StartSpan(ctx, operationName, attrs)
	t.EndSpan(h, types.SpanOK, nil)
}
