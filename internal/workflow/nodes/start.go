package nodes

import (
	"context"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/workflow"
)

// startNode is the mandatory first step of every workflow. It extracts the
// triggering event into the canonical variable names every later step
// expects, so steps never need to know which protocol or kind produced the
// event.
type startNode struct{}

func init() {
	workflow.RegisterNodeType("start", newStartNode)
}

func newStartNode(_ map[string]any) (workflow.Noder, error) {
	return &startNode{}, nil
}

func (n *startNode) Type() string { return "start" }

func (n *startNode) Run(_ context.Context, wctx *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	ev := wctx.Event

	hasImage := false
	hasAt := false
	messageType := "text"
	for i, seg := range ev.Message {
		if i == 0 {
			messageType = string(seg.Type)
		}
		switch seg.Type {
		case event.SegImage:
			hasImage = true
		case event.SegAt:
			hasAt = true
		}
	}

	sender := map[string]any{
		"user_id":    ev.UserID,
		"group_id":   ev.GroupID,
		"channel_id": ev.ChannelID,
	}

	return workflow.StepResult{Data: map[string]any{
		"message":      ev.Message.ExtractPlainText(),
		"user_id":      ev.UserID,
		"group_id":     ev.GroupID,
		"sender":       sender,
		"protocol":     ev.Protocol,
		"is_group":     ev.GroupID != "",
		"has_image":    hasImage,
		"has_at":       hasAt,
		"message_type": messageType,
		"raw_message":  ev.RawData,
	}}, nil
}

func (n *startNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
