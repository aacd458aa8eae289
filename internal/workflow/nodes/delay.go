package nodes

import (
	"context"
	"time"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// delayNode pauses the workflow run for a fixed duration, honoring context
// cancellation.
//
// Config: seconds (float64, default 1).
type delayNode struct {
	duration time.Duration
}

func init() {
	workflow.RegisterNodeType("delay", newDelayNode)
}

func newDelayNode(config map[string]any) (workflow.Noder, error) {
	seconds := 1.0
	if s, ok := config["seconds"].(float64); ok && s >= 0 {
		seconds = s
	}
	return &delayNode{duration: time.Duration(seconds * float64(time.Second))}, nil
}

func (n *delayNode) Type() string { return "delay" }

func (n *delayNode) Run(ctx context.Context, _ *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	timer := time.NewTimer(n.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return workflow.StepResult{}, ctx.Err()
	}

	return workflow.StepResult{Data: map[string]any{"delayed_seconds": n.duration.Seconds()}}, nil
}

func (n *delayNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
