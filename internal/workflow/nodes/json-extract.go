package nodes

import (
	"context"
	"strconv"
	"strings"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// jsonExtractNode walks a dotted path with optional "[i]" indexing through
// an input value, returning a default on any miss.
//
// Config: source (the variable name to read, defaults to "data"), path
// (dotted/bracketed path, required), default (fallback value).
type jsonExtractNode struct {
	source  string
	path    string
	fallback any
}

func init() {
	workflow.RegisterNodeType("json_extract", newJSONExtractNode)
}

func newJSONExtractNode(config map[string]any) (workflow.Noder, error) {
	return &jsonExtractNode{
		source:   str(config, "source", "data"),
		path:     str(config, "path", ""),
		fallback: config["default"],
	}, nil
}

func (n *jsonExtractNode) Type() string { return "json_extract" }

func (n *jsonExtractNode) Run(_ context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	root := wctx.GetVariable(n.source, inputs[n.source])
	value := extractPath(root, n.path, n.fallback)
	return workflow.StepResult{Data: map[string]any{"result": value}}, nil
}

// extractPath resolves a dotted path with "[i]" list indexing, e.g.
// "items[0].name", returning def on any missing segment or type mismatch.
func extractPath(root any, path string, def any) any {
	if path == "" {
		return root
	}

	cur := root
	for _, segment := range strings.Split(path, ".") {
		name, indexes := splitIndexes(segment)

		if name != "" {
			m, ok := cur.(map[string]any)
			if !ok {
				return def
			}
			v, ok := m[name]
			if !ok {
				return def
			}
			cur = v
		}

		for _, idx := range indexes {
			list, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(list) {
				return def
			}
			cur = list[idx]
		}
	}
	return cur
}

// splitIndexes splits "name[0][1]" into ("name", [0, 1]).
func splitIndexes(segment string) (string, []int) {
	name := segment
	var indexes []int

	for {
		open := strings.IndexByte(name, '[')
		if open == -1 {
			break
		}
		close := strings.IndexByte(name[open:], ']')
		if close == -1 {
			break
		}
		idxStr := name[open+1 : open+close]
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			break
		}
		indexes = append(indexes, idx)
		name = name[:open] + name[open+close+1:]
	}

	return name, indexes
}

func (n *jsonExtractNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
