package nodes

import (
	"context"
	"fmt"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// foreachNode iterates over a list or map variable, one item per engine
// pass through the loop body. Iteration state (the materialized item list
// and cursor) lives in the context's variable bag under a key derived from
// the list/item variable names, so re-entering the same foreach step across
// interpreter revisits resumes rather than restarts.
//
// Config: list_variable (required), item_variable (default "item"),
// loop_body (required, step id), loop_end (step id), next_node (step id,
// used once the list is exhausted or was empty to begin with).
type foreachNode struct {
	listVar  string
	itemVar  string
	loopBody string
	loopEnd  string
	nextNode string
}

func init() {
	workflow.RegisterNodeType("foreach", newForeachNode)
}

func newForeachNode(config map[string]any) (workflow.Noder, error) {
	n := &foreachNode{
		listVar:  str(config, "list_variable", ""),
		itemVar:  str(config, "item_variable", "item"),
		loopBody: str(config, "loop_body", ""),
		loopEnd:  str(config, "loop_end", ""),
		nextNode: str(config, "next_node", ""),
	}
	if n.listVar == "" {
		return nil, fmt.Errorf("foreach: 'list_variable' is required")
	}
	if n.loopBody == "" {
		return nil, fmt.Errorf("foreach: 'loop_body' is required")
	}
	return n, nil
}

func (n *foreachNode) Type() string { return "foreach" }

func (n *foreachNode) stateKey() string {
	return "_foreach:" + n.listVar + ":" + n.itemVar
}

func (n *foreachNode) Run(_ context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	key := n.stateKey()

	state, _ := wctx.GetVariable(key, nil).(map[string]any)
	if state == nil {
		items := materializeList(wctx.GetVariable(n.listVar, inputs[n.listVar]))
		state = map[string]any{"items": items, "index": 0}
	}

	items, _ := state["items"].([]any)
	index, _ := state["index"].(int)

	if index >= len(items) {
		wctx.SetVariable(key, nil)
		if n.nextNode != "" {
			return workflow.StepResult{NextNode: n.nextNode}, nil
		}
		return workflow.StepResult{}, nil
	}

	wctx.SetVariable(n.itemVar, items[index])
	wctx.SetVariable("loop_index", index)
	wctx.SetVariable("loop_item", items[index])

	state["index"] = index + 1
	wctx.SetVariable(key, state)

	return workflow.StepResult{Loop: true, Data: map[string]any{
		"loop_body":  n.loopBody,
		"loop_end":   n.loopEnd,
		"loop_total": 1,
	}}, nil
}

// materializeList converts an arbitrary variable value into an iteration
// list: arrays pass through, maps become [{key, value}] pairs in
// unspecified order, everything else (including nil) yields an empty list.
func materializeList(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case map[string]any:
		out := make([]any, 0, len(val))
		for k, item := range val {
			out = append(out, map[string]any{"key": k, "value": item})
		}
		return out
	default:
		return nil
	}
}

func (n *foreachNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
