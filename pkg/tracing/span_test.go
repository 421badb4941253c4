package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestChildSpansShareTraceID(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "abc")
	foldCtx, fold := StartChildSpan(ctx, "fold")
	_, load := StartChildSpan(foldCtx, "load")
	load.End()
	fold.End()
	root.End()

	if fold.TraceID != "abc" || load.TraceID != "abc" {
		t.Errorf("trace ids = %q, %q", fold.TraceID, load.TraceID)
	}
	if len(root.Children) != 1 || len(fold.Children) != 1 {
		t.Fatalf("tree = %d / %d children", len(root.Children), len(fold.Children))
	}
	if SpanFromContext(foldCtx) != fold {
		t.Error("context does not carry the child span")
	}
	if SpanFromContext(context.Background()) != nil {
		t.Error("empty context returned a span")
	}
}

func TestConcurrentChildren(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "run", "t")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, s := StartChildSpan(ctx, "fold")
			s.SetAttr("fold", i)
			s.End()
		}()
	}
	wg.Wait()
	if len(root.Children) != 16 {
		t.Errorf("got %d children, want 16", len(root.Children))
	}
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "run", "t1")
	root.SetAttr("method", "synonym")
	_, child := StartChildSpan(ctx, "rank")
	child.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	if n := strings.Count(out, "msg=span"); n != 2 {
		t.Fatalf("got %d span lines, want 2:\n%s", n, out)
	}
	if !strings.Contains(out, "method=synonym") || !strings.Contains(out, "span=rank") {
		t.Errorf("missing attributes:\n%s", out)
	}
}
