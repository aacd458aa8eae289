package nodes

import (
	"context"
	"fmt"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// CallAPI dispatches a raw protocol API call to the bot's adapter. Set from
// cmd/atbot once the adapter manager is constructed.
var CallAPI func(ctx context.Context, botID, action string, params map[string]any) (any, error)

// endpointNode passes an action+params pair straight through to the
// originating bot's adapter, for OneBot-like protocols whose full API
// surface isn't otherwise modeled as node kinds.
//
// Config: action (required), params (map, templated).
type endpointNode struct {
	action string
}

func init() {
	workflow.RegisterNodeType("endpoint", newEndpointNode)
}

func newEndpointNode(config map[string]any) (workflow.Noder, error) {
	action := str(config, "action", "")
	if action == "" {
		return nil, fmt.Errorf("endpoint: 'action' is required")
	}
	return &endpointNode{action: action}, nil
}

func (n *endpointNode) Type() string { return "endpoint" }

func (n *endpointNode) Run(ctx context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	if CallAPI == nil {
		return workflow.StepResult{}, fmt.Errorf("endpoint: no adapter call hook configured")
	}

	params, _ := inputs["params"].(map[string]any)

	result, err := CallAPI(ctx, wctx.Event.BotID, n.action, params)
	if err != nil {
		return workflow.StepResult{Data: map[string]any{
			"success": false,
			"error":   err.Error(),
		}}, nil
	}

	return workflow.StepResult{Data: map[string]any{
		"success": true,
		"result":  result,
	}}, nil
}

func (n *endpointNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
