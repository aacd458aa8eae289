package nodes

import (
	"context"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// endNode terminates a workflow's step walk. allow_continue is recorded on
// the context for dispatch to read; per the reference implementation it is
// advisory only — dispatch always drains every matching workflow's task
// regardless of this flag.
type endNode struct {
	allowContinue bool
}

func init() {
	workflow.RegisterNodeType("end", newEndNode)
}

func newEndNode(config map[string]any) (workflow.Noder, error) {
	allowContinue, _ := config["allow_continue"].(bool)
	return &endNode{allowContinue: allowContinue}, nil
}

func (n *endNode) Type() string { return "end" }

func (n *endNode) Run(_ context.Context, _ *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	return workflow.StepResult{Data: map[string]any{
		"allow_continue": n.allowContinue,
	}}, nil
}

// ShouldBreak always stops the interpreter: end is terminal by definition.
func (n *endNode) ShouldBreak(_ workflow.StepResult) bool {
	return true
}
