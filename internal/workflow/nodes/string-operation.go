package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// stringOperationNode applies one of a fixed set of string transforms to a
// templated input value.
//
// Config: operation (trim|upper|lower|replace|regex_extract|regex_replace|
// substring|split, required), input (the string to operate on), plus
// operation-specific fields: old/new (replace), pattern/replacement
// (regex_*), start/end (substring), delimiter (split).
type stringOperationNode struct {
	operation string
}

func init() {
	workflow.RegisterNodeType("string_operation", newStringOperationNode)
}

func newStringOperationNode(config map[string]any) (workflow.Noder, error) {
	op := str(config, "operation", "")
	if op == "" {
		return nil, fmt.Errorf("string_operation: 'operation' is required")
	}
	return &stringOperationNode{operation: op}, nil
}

func (n *stringOperationNode) Type() string { return "string_operation" }

func (n *stringOperationNode) Run(_ context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	input, _ := inputs["input"].(string)

	switch n.operation {
	case "trim":
		return result(strings.TrimSpace(input)), nil
	case "upper":
		return result(strings.ToUpper(input)), nil
	case "lower":
		return result(strings.ToLower(input)), nil
	case "replace":
		old, _ := inputs["old"].(string)
		repl, _ := inputs["new"].(string)
		return result(strings.ReplaceAll(input, old, repl)), nil
	case "substring":
		start, _ := toInt(inputs["start"])
		end, ok := toInt(inputs["end"])
		if !ok || end > len(input) {
			end = len(input)
		}
		if start < 0 || start > len(input) || start > end {
			return result(""), nil
		}
		return result(input[start:end]), nil
	case "split":
		delim, _ := inputs["delimiter"].(string)
		if delim == "" {
			delim = ","
		}
		parts := strings.Split(input, delim)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return workflow.StepResult{Data: map[string]any{"result": out}}, nil
	case "regex_extract":
		pattern, _ := inputs["pattern"].(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return workflow.StepResult{}, fmt.Errorf("string_operation: invalid pattern %q: %w", pattern, err)
		}
		match := re.FindString(input)
		return result(match), nil
	case "regex_replace":
		pattern, _ := inputs["pattern"].(string)
		repl, _ := inputs["replacement"].(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return workflow.StepResult{}, fmt.Errorf("string_operation: invalid pattern %q: %w", pattern, err)
		}
		return result(re.ReplaceAllString(input, repl)), nil
	default:
		return workflow.StepResult{}, fmt.Errorf("string_operation: unknown operation %q", n.operation)
	}
}

func result(s string) workflow.StepResult {
	return workflow.StepResult{Data: map[string]any{"result": s}}
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	default:
		return 0, false
	}
}

func (n *stringOperationNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
