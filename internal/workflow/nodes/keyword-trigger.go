package nodes

import (
	"context"
	"strings"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// keywordTriggerNode is meant as the first step after start: it filters the
// run out entirely (should_break) unless the message text matches one of
// the configured keywords.
//
// Config: keywords ([]any of string, required), match (contains|exact|
// prefix, default contains), case_sensitive (bool, default false).
type keywordTriggerNode struct {
	keywords      []string
	match         string
	caseSensitive bool
}

func init() {
	workflow.RegisterNodeType("keyword_trigger", newKeywordTriggerNode)
}

func newKeywordTriggerNode(config map[string]any) (workflow.Noder, error) {
	n := &keywordTriggerNode{
		match:         str(config, "match", "contains"),
		caseSensitive: boolOr(config["case_sensitive"], false),
	}
	if raw, ok := config["keywords"].([]any); ok {
		for _, k := range raw {
			if s, ok := k.(string); ok {
				n.keywords = append(n.keywords, s)
			}
		}
	}
	return n, nil
}

func boolOr(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func (n *keywordTriggerNode) Type() string { return "keyword_trigger" }

func (n *keywordTriggerNode) Run(_ context.Context, wctx *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	text := wctx.Event.Message.ExtractPlainText()
	if !n.caseSensitive {
		text = strings.ToLower(text)
	}

	matched := false
	for _, kw := range n.keywords {
		needle := kw
		if !n.caseSensitive {
			needle = strings.ToLower(needle)
		}

		switch n.match {
		case "exact":
			matched = text == needle
		case "prefix":
			matched = strings.HasPrefix(text, needle)
		default:
			matched = strings.Contains(text, needle)
		}
		if matched {
			break
		}
	}

	return workflow.StepResult{Data: map[string]any{"success": matched, "matched": matched}}, nil
}

func (n *keywordTriggerNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
