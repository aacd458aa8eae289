package nodes

import (
	"context"
	"testing"
)

func TestStringOperationTrimAndCase(t *testing.T) {
	n, err := newStringOperationNode(map[string]any{"operation": "trim"})
	if err != nil {
		t.Fatalf("newStringOperationNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{"input": "  hi  "})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Data["result"] != "hi" {
		t.Fatalf("expected 'hi', got %q", result.Data["result"])
	}
}

func TestStringOperationRegexExtract(t *testing.T) {
	n, err := newStringOperationNode(map[string]any{"operation": "regex_extract"})
	if err != nil {
		t.Fatalf("newStringOperationNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{
		"input":   "order #4821 shipped",
		"pattern": `#\d+`,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Data["result"] != "#4821" {
		t.Fatalf("expected '#4821', got %q", result.Data["result"])
	}
}

func TestStringOperationSplit(t *testing.T) {
	n, err := newStringOperationNode(map[string]any{"operation": "split"})
	if err != nil {
		t.Fatalf("newStringOperationNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{
		"input":     "a,b,c",
		"delimiter": ",",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	parts, ok := result.Data["result"].([]any)
	if !ok || len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %+v", result.Data["result"])
	}
}
