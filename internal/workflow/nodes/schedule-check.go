package nodes

import (
	"context"
	"time"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// scheduleCheckNode tests the current time against an hour range and/or a
// weekday allow-list, routing to true_branch or false_branch like
// condition does.
//
// Config: timezone (default UTC), start_hour, end_hour (0-23, both optional),
// weekdays ([]any of weekday names, optional), true_branch, false_branch.
type scheduleCheckNode struct {
	loc         *time.Location
	startHour   *int
	endHour     *int
	weekdays    map[string]bool
	trueBranch  string
	falseBranch string
}

func init() {
	workflow.RegisterNodeType("schedule_check", newScheduleCheckNode)
}

func newScheduleCheckNode(config map[string]any) (workflow.Noder, error) {
	tz := str(config, "timezone", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	n := &scheduleCheckNode{
		loc:         loc,
		trueBranch:  str(config, "true_branch", ""),
		falseBranch: str(config, "false_branch", ""),
	}

	if h, ok := config["start_hour"].(float64); ok {
		v := int(h)
		n.startHour = &v
	}
	if h, ok := config["end_hour"].(float64); ok {
		v := int(h)
		n.endHour = &v
	}
	if days, ok := config["weekdays"].([]any); ok {
		n.weekdays = make(map[string]bool, len(days))
		for _, d := range days {
			if s, ok := d.(string); ok {
				n.weekdays[s] = true
			}
		}
	}

	return n, nil
}

func (n *scheduleCheckNode) Type() string { return "schedule_check" }

func (n *scheduleCheckNode) Run(_ context.Context, _ *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	now := time.Now().In(n.loc)

	match := true
	if n.startHour != nil && now.Hour() < *n.startHour {
		match = false
	}
	if n.endHour != nil && now.Hour() > *n.endHour {
		match = false
	}
	if len(n.weekdays) > 0 && !n.weekdays[now.Weekday().String()] {
		match = false
	}

	data := map[string]any{"result": match}

	branch := n.falseBranch
	if match {
		branch = n.trueBranch
	}
	if branch != "" {
		return workflow.StepResult{Data: data, NextNode: branch}, nil
	}
	return workflow.StepResult{Data: data, StopSequence: !match}, nil
}

func (n *scheduleCheckNode) ShouldBreak(result workflow.StepResult) bool {
	return result.StopSequence
}
