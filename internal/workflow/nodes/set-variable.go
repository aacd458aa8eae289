package nodes

import (
	"context"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// setVariableNode assigns one or more already-templated values into the
// run's variable bag.
//
// Config: either {"name": ..., "value": ...} for a single assignment, or
// {"variables": {name: value, ...}} for several at once.
type setVariableNode struct{}

func init() {
	workflow.RegisterNodeType("set_variable", newSetVariableNode)
}

func newSetVariableNode(_ map[string]any) (workflow.Noder, error) {
	return &setVariableNode{}, nil
}

func (n *setVariableNode) Type() string { return "set_variable" }

func (n *setVariableNode) Run(_ context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	data := make(map[string]any)

	if vars, ok := inputs["variables"].(map[string]any); ok {
		for k, v := range vars {
			data[k] = v
		}
	}
	if name, ok := inputs["name"].(string); ok && name != "" {
		data[name] = inputs["value"]
	}

	return workflow.StepResult{Data: data}, nil
}

func (n *setVariableNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
