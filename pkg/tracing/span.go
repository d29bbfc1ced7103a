// Package tracing records in-process span trees carried on a context.
// When a root span is logged, the whole tree goes out as one slog record
// so a request's timings stay together in the log stream.
package tracing

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed step of a trace. It is safe for concurrent use.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	attrs    map[string]any
	err      string
	children []*Span
}

func newSpan(name, traceID string) *Span {
	return &Span{name: name, traceID: traceID, start: time.Now()}
}

// StartSpan begins a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID)
	return context.WithValue(ctx, contextKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx. Without a parent the
// span is detached: it can be used normally but is never logged.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return ctx, newSpan(name, "")
	}
	child := newSpan(name, parent.traceID)
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// SpanFromContext returns the innermost span in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

func (s *Span) Name() string    { return s.name }
func (s *Span) TraceID() string { return s.traceID }

// End fixes the span's duration. Later calls are no-ops.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.start)
		s.ended = true
	}
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
}

// RecordError marks the span failed. The last error wins.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}

// Children returns a copy of the span's direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Span, len(s.children))
	copy(out, s.children)
	return out
}

// spanRecord is the logged form of one span.
type spanRecord struct {
	Name       string         `json:"name"`
	Parent     string         `json:"parent,omitempty"`
	OffsetMs   float64        `json:"offset_ms"`
	DurationMs float64        `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// flatten lists the tree depth-first, parents before children, with
// offsets relative to s.
func (s *Span) flatten() []spanRecord {
	var out []spanRecord
	var walk func(sp *Span, parent string)
	walk = func(sp *Span, parent string) {
		sp.mu.Lock()
		rec := spanRecord{
			Name:       sp.name,
			Parent:     parent,
			OffsetMs:   millis(sp.start.Sub(s.start)),
			DurationMs: millis(sp.duration),
			Error:      sp.err,
			Attrs:      maps.Clone(sp.attrs),
		}
		children := append([]*Span(nil), sp.children...)
		sp.mu.Unlock()

		out = append(out, rec)
		for _, c := range children {
			walk(c, sp.name)
		}
	}
	walk(s, "")
	return out
}

// Log writes the tree rooted at s as a single "trace" record, at warn level
// if any span recorded an error.
func (s *Span) Log(ctx context.Context) {
	spans := s.flatten()
	level := slog.LevelInfo
	for _, r := range spans {
		if r.Error != "" {
			level = slog.LevelWarn
			break
		}
	}
	slog.Default().Log(ctx, level, "trace",
		"trace_id", s.traceID,
		"root", s.name,
		"duration_ms", spans[0].DurationMs,
		"span_count", len(spans),
		"spans", spans,
	)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
