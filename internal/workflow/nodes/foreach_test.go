package nodes

import (
	"context"
	"testing"
)

func TestForeachIteratesThenExhausts(t *testing.T) {
	n, err := newForeachNode(map[string]any{
		"list_variable": "items",
		"item_variable": "item",
		"loop_body":     "body",
		"loop_end":      "loop_end",
		"next_node":     "after",
	})
	if err != nil {
		t.Fatalf("newForeachNode: %v", err)
	}

	wctx := newTestContext()
	wctx.SetVariable("items", []any{"a", "b"})

	first, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	if !first.Loop || wctx.GetVariable("item", nil) != "a" {
		t.Fatalf("expected loop into first item 'a', got %+v item=%v", first, wctx.GetVariable("item", nil))
	}

	second, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	if !second.Loop || wctx.GetVariable("item", nil) != "b" {
		t.Fatalf("expected loop into second item 'b', got %+v", second)
	}

	third, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run 3: %v", err)
	}
	if third.Loop || third.NextNode != "after" {
		t.Fatalf("expected exhaustion to jump to 'after', got %+v", third)
	}
}

func TestForeachOverEmptyListAdvancesImmediately(t *testing.T) {
	n, err := newForeachNode(map[string]any{
		"list_variable": "items",
		"loop_body":     "body",
		"next_node":     "after",
	})
	if err != nil {
		t.Fatalf("newForeachNode: %v", err)
	}

	wctx := newTestContext()
	wctx.SetVariable("items", []any{})

	result, err := n.Run(context.Background(), wctx, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Loop || result.NextNode != "after" {
		t.Fatalf("expected immediate fallthrough on empty list, got %+v", result)
	}
}

