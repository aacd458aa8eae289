package nodes

import (
	"context"
	"testing"
)

func TestJSONExtractPathWithIndex(t *testing.T) {
	n, err := newJSONExtractNode(map[string]any{
		"source":  "data",
		"path":    "items[1].name",
		"default": "missing",
	})
	if err != nil {
		t.Fatalf("newJSONExtractNode: %v", err)
	}

	wctx := newTestContext()
	wctx.SetVariable("data", map[string]any{
		"items": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
		},
	})

	result, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Data["result"] != "b" {
		t.Fatalf("expected 'b', got %v", result.Data["result"])
	}
}

func TestJSONExtractMissingPathReturnsDefault(t *testing.T) {
	n, err := newJSONExtractNode(map[string]any{
		"source":  "data",
		"path":    "items[5].name",
		"default": "missing",
	})
	if err != nil {
		t.Fatalf("newJSONExtractNode: %v", err)
	}

	wctx := newTestContext()
	wctx.SetVariable("data", map[string]any{"items": []any{map[string]any{"name": "a"}}})

	result, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Data["result"] != "missing" {
		t.Fatalf("expected default 'missing', got %v", result.Data["result"])
	}
}
