package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/atbot/internal/workflow"
)

var validLevels = map[string]slog.Level{
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"debug": slog.LevelDebug,
}

// logNode logs the (already templated) message at a configurable level and
// passes its inputs through unchanged.
//
// Config: level (info|warn|error|debug, default info), message (string).
type logNode struct {
	level slog.Level
}

func init() {
	workflow.RegisterNodeType("log", newLogNode)
}

func newLogNode(config map[string]any) (workflow.Noder, error) {
	levelStr := str(config, "level", "info")

	level, ok := validLevels[strings.ToLower(levelStr)]
	if !ok {
		return nil, fmt.Errorf("log: invalid level %q (must be info, warn, error, or debug)", levelStr)
	}

	return &logNode{level: level}, nil
}

func (n *logNode) Type() string { return "log" }

func (n *logNode) Run(ctx context.Context, _ *workflow.Context, inputs map[string]any) (workflow.StepResult, error) {
	msg, _ := inputs["message"].(string)
	if msg == "" {
		msg = "workflow log"
	}

	logi.Ctx(ctx).Log(ctx, n.level, msg, "inputs", inputs)

	return workflow.StepResult{Data: map[string]any{}}, nil
}

func (n *logNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}
