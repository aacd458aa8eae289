package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// SnippetsDir holds named user scripts loaded by the snippet node. Set from
// cmd/atbot at startup.
var SnippetsDir = "./snippets"

// snippetNode runs a user-authored script against the current run's
// variables. Inline code (config["code"]) takes precedence over a named
// file under SnippetsDir (config["script"]); both are executed the same
// way the script/template machinery runs any JS body, via the embedded
// Goja interpreter.
type snippetNode struct {
	code   string
	script string
}

func init() {
	workflow.RegisterNodeType("snippet", newSnippetNode)
}

func newSnippetNode(config map[string]any) (workflow.Noder, error) {
	code, _ := config["code"].(string)
	script, _ := config["script"].(string)
	if code == "" && script == "" {
		return nil, fmt.Errorf("snippet: one of 'code' or 'script' is required")
	}
	return &snippetNode{code: code, script: script}, nil
}

func (n *snippetNode) Type() string { return "snippet" }

func (n *snippetNode) Run(_ context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	body := n.code
	if body == "" {
		raw, err := os.ReadFile(filepath.Join(SnippetsDir, n.script+".js"))
		if err != nil {
			return workflow.StepResult{}, fmt.Errorf("snippet: read %q: %w", n.script, err)
		}
		body = string(raw)
	}

	lookup := workflow.VarLookup(func(key string) (any, error) {
		return wctx.GetVariable(key, nil), nil
	})

	out, err := workflow.ExecuteJSHandler(body, inputs, lookup)
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("snippet: %w", err)
	}

	var parsed any
	if json.Unmarshal([]byte(out), &parsed) == nil {
		if m, ok := parsed.(map[string]any); ok {
			return workflow.StepResult{Data: m}, nil
		}
	}

	return workflow.StepResult{Data: map[string]any{"result": out}}, nil
}

func (n *snippetNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
