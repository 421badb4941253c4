// Package tracing times the stages of an evaluation run. Spans nest through
// the context (run, fold, load/index/rank) and the tree is logged one line
// per span once the root ends.
package tracing

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type spanKey struct{}

type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Children []*Span

	mu    sync.Mutex
	attrs map[string]any
}

func newSpan(name, traceID string) *Span {
	return &Span{Name: name, TraceID: traceID, Start: time.Now(), attrs: map[string]any{}}
}

// StartSpan begins a root span for traceID.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan begins a span under the one in ctx, inheriting its trace
// id. Without a parent the span is detached. Safe for concurrent use on the
// same parent.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	s := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, s)
	parent.mu.Unlock()
	return context.WithValue(ctx, spanKey{}, s), s
}

func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

func (s *Span) End() {
	s.Duration = time.Since(s.Start)
}

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// Log writes s and its descendants depth-first at debug level, attributes
// in key order.
func (s *Span) Log(logger *slog.Logger) {
	s.log(logger, 0)
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.attrs))
	for k := range s.attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	args := make([]any, 0, 8+2*len(keys))
	args = append(args,
		"trace_id", s.TraceID,
		"span", s.Name,
		"depth", depth,
		"elapsed", s.Duration,
	)
	for _, k := range keys {
		args = append(args, k, s.attrs[k])
	}
	children := slices.Clone(s.Children)
	s.mu.Unlock()

	logger.Debug("span", args...)
	for _, c := range children {
		c.log(logger, depth+1)
	}
}
