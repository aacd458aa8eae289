package nodes

import (
	"context"
	"time"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// timestampNode emits the current time in several common representations.
//
// Config: format (Go reference-time layout, default time.RFC3339),
// timezone (IANA name, default UTC).
type timestampNode struct {
	format string
	loc    *time.Location
}

func init() {
	workflow.RegisterNodeType("timestamp", newTimestampNode)
}

func newTimestampNode(config map[string]any) (workflow.Noder, error) {
	format := str(config, "format", time.RFC3339)
	tz := str(config, "timezone", "UTC")

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	return &timestampNode{format: format, loc: loc}, nil
}

func (n *timestampNode) Type() string { return "timestamp" }

func (n *timestampNode) Run(_ context.Context, _ *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	now := time.Now().In(n.loc)

	return workflow.StepResult{Data: map[string]any{
		"unix":      now.Unix(),
		"formatted": now.Format(n.format),
		"rfc3339":   now.Format(time.RFC3339),
		"weekday":   now.Weekday().String(),
	}}, nil
}

func (n *timestampNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
