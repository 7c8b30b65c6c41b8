package tracing

import (
	"context"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "score", "")
	if root.TraceID == "" {
		t.Fatal("expected a generated trace id")
	}
	_, child := StartChildSpan(ctx, "rm3.expand")
	child.SetAttr("terms", 10)
	child.End()
	root.End()

	if len(root.Children) != 1 || root.Children[0] != child {
		t.Fatalf("child not attached: %+v", root.Children)
	}
	if child.TraceID != root.TraceID {
		t.Errorf("child trace id %q, want %q", child.TraceID, root.TraceID)
	}
	if SpanFromContext(ctx) != root {
		t.Error("root span not stored in context")
	}
	root.Log()
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Errorf("orphan span should have no trace id, got %q", span.TraceID)
	}
}
