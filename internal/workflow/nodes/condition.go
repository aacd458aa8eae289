package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rakunlabs/atbot/internal/workflow"
)

// conditionNode evaluates a boolean test and routes to true_branch or
// false_branch. Two modes:
//
//	"simple"   — one variable + operator + value
//	"advanced" — newline-delimited "var|op|value" lines combined with AND/OR
//
// An empty branch on the matching result falls through to the next step;
// an empty false_branch on a false result aborts the run.
type conditionNode struct {
	mode        string
	variable    string
	operator    string
	value       string
	lines       []string
	combineWith string
	trueBranch  string
	falseBranch string
}

func init() {
	workflow.RegisterNodeType("condition", newConditionNode)
}

func newConditionNode(config map[string]any) (workflow.Noder, error) {
	n := &conditionNode{
		mode:        str(config, "mode", "simple"),
		variable:    str(config, "variable", ""),
		operator:    str(config, "operator", "equals"),
		value:       str(config, "value", ""),
		combineWith: strings.ToUpper(str(config, "combine_with", "AND")),
		trueBranch:  str(config, "true_branch", ""),
		falseBranch: str(config, "false_branch", ""),
	}

	if raw, ok := config["conditions"].(string); ok {
		for _, line := range strings.Split(raw, "\n") {
			if strings.TrimSpace(line) != "" {
				n.lines = append(n.lines, line)
			}
		}
	}

	return n, nil
}

func str(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return def
}

func (n *conditionNode) Type() string { return "condition" }

func (n *conditionNode) Run(_ context.Context, wctx *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	var result bool
	var err error

	switch n.mode {
	case "advanced":
		result, err = n.evalAdvanced(wctx, inputs)
	default:
		result, err = evalSingle(wctx.GetVariable(n.variable, inputs[n.variable]), n.operator, n.value)
	}
	if err != nil {
		return workflow.StepResult{}, fmt.Errorf("condition: %w", err)
	}

	data := map[string]any{"result": result}

	branch := n.falseBranch
	if result {
		branch = n.trueBranch
	}
	if branch != "" {
		return workflow.StepResult{Data: data, NextNode: branch}, nil
	}

	// Branch not configured: fall through on true; abort on false.
	return workflow.StepResult{Data: data, StopSequence: !result}, nil
}

func (n *conditionNode) evalAdvanced(wctx *workflow.Context, inputs map[string]any) (bool, error) {
	if len(n.lines) == 0 {
		return false, nil
	}

	overall := n.combineWith != "OR"
	for _, line := range n.lines {
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return false, fmt.Errorf("malformed condition line %q", line)
		}
		varName, op, val := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), parts[2]

		ok, err := evalSingle(wctx.GetVariable(varName, inputs[varName]), op, val)
		if err != nil {
			return false, err
		}

		if n.combineWith == "OR" {
			overall = overall || ok
		} else {
			overall = overall && ok
		}
	}
	return overall, nil
}

func evalSingle(actual any, op, expected string) (bool, error) {
	actualStr := fmt.Sprintf("%v", actual)
	if actual == nil {
		actualStr = ""
	}

	switch op {
	case "equals":
		return actualStr == expected, nil
	case "not_equals":
		return actualStr != expected, nil
	case "contains":
		return strings.Contains(actualStr, expected), nil
	case "not_contains":
		return !strings.Contains(actualStr, expected), nil
	case "starts_with":
		return strings.HasPrefix(actualStr, expected), nil
	case "ends_with":
		return strings.HasSuffix(actualStr, expected), nil
	case "is_empty":
		return actualStr == "", nil
	case "is_not_empty":
		return actualStr != "", nil
	case "regex":
		re, err := regexp.Compile(expected)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", expected, err)
		}
		return re.MatchString(actualStr), nil
	case "greater_than", "less_than":
		a, errA := strconv.ParseFloat(actualStr, 64)
		b, errB := strconv.ParseFloat(expected, 64)
		if errA != nil || errB != nil {
			return false, nil
		}
		if op == "greater_than" {
			return a > b, nil
		}
		return a < b, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func (n *conditionNode) ShouldBreak(result workflow.StepResult) bool {
	return result.StopSequence
}
