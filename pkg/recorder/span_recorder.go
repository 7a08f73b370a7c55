package recorder

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/willibrandon/chronosparse"

type openSpan struct {
	ctx  context.Context
	span trace.Span
	name string
}

// SpanRecorder turns entry/exit pairs into OpenTelemetry spans. Calls of
// one capture window become one span tree rooted at the marked call.
type SpanRecorder struct {
	tracer trace.Tracer

	mu     sync.Mutex
	open   map[string][]openSpan
	events []Event
}

// NewSpanRecorder creates a SpanRecorder using tp, or the global provider
// when tp is nil.
func NewSpanRecorder(tp trace.TracerProvider) *SpanRecorder {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &SpanRecorder{
		tracer: tp.Tracer(instrumentationName),
		open:   make(map[string][]openSpan),
	}
}

func (r *SpanRecorder) RecordEvent(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)

	switch e.Type {
	case FuncEntry:
		parent := context.Background()
		stack := r.open[e.WindowID]
		if len(stack) > 0 {
			parent = stack[len(stack)-1].ctx
		}
		ctx, span := r.tracer.Start(parent, e.FuncName,
			trace.WithTimestamp(e.Timestamp),
			trace.WithAttributes(
				attribute.Int("chrono.level", e.Level),
				attribute.String("chrono.window", e.WindowID),
				attribute.Int("process.pid", e.PID),
			))
		r.open[e.WindowID] = append(stack, openSpan{ctx: ctx, span: span, name: e.FuncName})

	case FuncExit:
		stack := r.open[e.WindowID]
		if len(stack) == 0 {
			return fmt.Errorf("exit of %s in window %s without entry", e.FuncName, e.WindowID)
		}
		top := stack[len(stack)-1]
		if top.name != e.FuncName {
			return fmt.Errorf("exit of %s in window %s while %s is open", e.FuncName, e.WindowID, top.name)
		}
		top.span.End(trace.WithTimestamp(e.Timestamp))
		if len(stack) == 1 {
			delete(r.open, e.WindowID)
		} else {
			r.open[e.WindowID] = stack[:len(stack)-1]
		}
	}
	return nil
}

func (r *SpanRecorder) GetEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Clear forgets recorded events. Spans still open are ended.
func (r *SpanRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stack := range r.open {
		for i := len(stack) - 1; i >= 0; i-- {
			stack[i].span.End()
		}
	}
	r.open = make(map[string][]openSpan)
	r.events = nil
}
