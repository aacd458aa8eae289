package nodes

import (
	"context"
	"fmt"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/workflow"
)

// protocolMessageSupport lists, per protocol, the message types it can
// carry. An empty entry means "no restriction known" — every type passes.
var protocolMessageSupport = map[string]map[string]bool{
	"discord":  {"text": true, "image": true, "video": true, "voice": true, "file": true, "markdown": true},
	"telegram": {"text": true, "image": true, "video": true, "voice": true, "file": true, "markdown": true},
	"webhook":  {"text": true, "image": true, "video": true, "voice": true, "file": true, "markdown": true, "ark": true, "keyboard": true},
	"websocket": {"text": true, "image": true, "video": true, "voice": true, "file": true},
}

// sendMessageNode builds a Message from templated content and records it as
// the workflow's response.
//
// Config: message_type (text|image|video|voice|file|markdown|ark, default
// text), content (templated string — text, image/video/voice/file URL, or
// markdown/ark payload), skip_if_unsupported (bool).
type sendMessageNode struct {
	skipIfUnsupported bool
}

func init() {
	workflow.RegisterNodeType("send_message", newSendMessageNode)
}

func newSendMessageNode(config map[string]any) (workflow.Noder, error) {
	skip, _ := config["skip_if_unsupported"].(bool)
	return &sendMessageNode{skipIfUnsupported: skip}, nil
}

func (n *sendMessageNode) Type() string { return "send_message" }

func (n *sendMessageNode) Run(_ context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	messageType, _ := inputs["message_type"].(string)
	if messageType == "" {
		messageType = "text"
	}
	content, _ := inputs["content"].(string)

	if supported, ok := protocolMessageSupport[wctx.Event.Protocol]; ok && !supported[messageType] {
		if n.skipIfUnsupported {
			return workflow.StepResult{Data: map[string]any{"sent": false, "skipped": true}}, nil
		}
		return workflow.StepResult{}, fmt.Errorf("send_message: protocol %q does not support message type %q", wctx.Event.Protocol, messageType)
	}

	var msg event.Message
	switch messageType {
	case "image":
		msg = event.NewMessage(event.Image(content))
	case "text", "markdown":
		msg = event.NewMessage(content)
	default:
		msg = event.NewMessage(event.Segment{Type: event.SegmentType(messageType), Data: map[string]any{"url": content, "text": content}})
	}

	wctx.SetResponse(msg)

	return workflow.StepResult{Data: map[string]any{"sent": true, "success": true}}, nil
}

func (n *sendMessageNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
