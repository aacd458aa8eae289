package nodes

import (
	"context"
	"testing"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/workflow"
)

func newTestContext() *workflow.Context {
	return workflow.NewContext(event.Event{ID: "e1", Protocol: "webhook"}, nil)
}

func TestConditionSimpleEquals(t *testing.T) {
	n, err := newConditionNode(map[string]any{
		"variable":    "status",
		"operator":    "equals",
		"value":       "ok",
		"true_branch": "next",
	})
	if err != nil {
		t.Fatalf("newConditionNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{"status": "ok"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NextNode != "next" {
		t.Fatalf("expected jump to 'next', got %+v", result)
	}
}

func TestConditionFalseEmptyBranchAborts(t *testing.T) {
	n, err := newConditionNode(map[string]any{
		"variable": "status",
		"operator": "equals",
		"value":    "ok",
	})
	if err != nil {
		t.Fatalf("newConditionNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{"status": "broken"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.StopSequence {
		t.Fatalf("expected StopSequence on false result with empty false_branch, got %+v", result)
	}
	if !n.ShouldBreak(result) {
		t.Fatalf("expected ShouldBreak true")
	}
}

func TestConditionAdvancedAndCombine(t *testing.T) {
	n, err := newConditionNode(map[string]any{
		"mode":         "advanced",
		"conditions":   "a|equals|1\nb|equals|2",
		"combine_with": "AND",
		"true_branch":  "yes",
		"false_branch": "no",
	})
	if err != nil {
		t.Fatalf("newConditionNode: %v", err)
	}

	result, err := n.Run(context.Background(), newTestContext(), map[string]any{"a": "1", "b": "3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NextNode != "no" {
		t.Fatalf("expected 'no' branch when one AND clause fails, got %+v", result)
	}
}
