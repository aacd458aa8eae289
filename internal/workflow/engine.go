package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/atbot/internal/event"
)

// Step is one entry in a workflow's step list: an id, a node type, and that
// node's raw (not yet templated) configuration.
type Step struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
	OnFail *OnFail        `json:"on_fail,omitempty"`
}

// OnFail describes the recovery action taken when a step's Run returns an
// error; only "send_message" is supported, matching the reference
// implementation.
type OnFail struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Engine interprets one workflow's step list against a triggering event.
type Engine struct {
	WorkflowID  string
	Name        string
	Steps       []Step
	TriggerType string
	Protocols   []string // empty means every protocol

	Debug DebugRecorder // may be nil
}

// Result is what running a workflow against one event produces.
type Result struct {
	Handled  bool
	Response *event.Message
	Continue bool // whether dispatch should keep trying other matching workflows
}

// ExecuteContext runs the workflow against a pre-built Context. A step
// whose node fails is logged, its on_fail action (if any) is applied, and
// the run continues with the next step; only an interpreter error such as
// an unknown next_node aborts the run, with Handled=false rather than
// propagating to the caller.
func (e *Engine) ExecuteContext(ctx context.Context, wctx *Context) Result {
	if !e.checkProtocol(wctx.Event.Protocol) {
		return Result{Handled: false, Continue: true}
	}

	if e.Debug != nil {
		e.Debug.Start(e.WorkflowID, wctx.Event)
	}

	result, err := e.runSteps(ctx, wctx)
	if err != nil {
		slog.Error("workflow run failed", "workflow_id", e.WorkflowID, "name", e.Name, "error", err)
		if e.Debug != nil {
			e.Debug.Finish(e.WorkflowID, wctx, err)
		}
		return Result{Handled: false}
	}

	if e.Debug != nil {
		e.Debug.Finish(e.WorkflowID, wctx, nil)
	}

	return result
}

// checkProtocol reports whether this workflow applies to protocol, per the
// workflow's configured protocol allow-list (empty means all protocols).
func (e *Engine) checkProtocol(protocol string) bool {
	if len(e.Protocols) == 0 {
		return true
	}
	for _, p := range e.Protocols {
		if p == protocol {
			return true
		}
	}
	return false
}

type loopFrame struct {
	foreachIndex  int // index to resume at for the next iteration
	foreachID     string
	loopBodyIndex int
	loopEndID     string
}

// runSteps is the linear interpreter loop: visited-set cycle detection,
// jump targets via next_node, loop frames for foreach, and an on_fail
// recovery hook.
func (e *Engine) runSteps(ctx context.Context, wctx *Context) (Result, error) {
	if len(e.Steps) == 0 {
		return Result{Handled: false, Continue: true}, nil
	}

	indexByID := e.indexByID()

	visited := make(map[int]bool)
	var loopStack []loopFrame

	current := 0
	for current >= 0 && current < len(e.Steps) {
		step := e.Steps[current]

		if visited[current] {
			break
		}
		visited[current] = true

		result, shouldBreak, err := e.executeStep(ctx, wctx, step)
		if err != nil {
			slog.Error("workflow step failed", "workflow_id", e.WorkflowID, "step_id", step.ID, "error", err)
			if step.OnFail != nil && step.OnFail.Action == "send_message" {
				wctx.SetResponse(event.NewMessage(step.OnFail.Message))
			}
			current++
			continue
		}

		if shouldBreak {
			break
		}

		if result.Loop {
			if idx, ok := e.handleLoopStart(step, result, &loopStack, visited, indexByID); ok {
				current = idx
				continue
			}
		}

		if result.NextNode != "" {
			idx, ok := indexByID[result.NextNode]
			if !ok {
				return Result{}, fmt.Errorf("workflow %s: unknown next_node %q", e.WorkflowID, result.NextNode)
			}
			current = idx
			continue
		}

		if len(loopStack) > 0 {
			if idx, handled := e.handleLoopReturn(step, current, &loopStack, visited); handled {
				current = idx
				continue
			}
		}

		if result.StopSequence {
			break
		}

		current++
	}

	return Result{
		Handled:  wctx.Handled(),
		Response: wctx.Response(),
		Continue: !wctx.Handled(),
	}, nil
}

// executeStep instantiates the node for step and runs it, reporting
// whether the interpreter should stop walking the step list afterward.
func (e *Engine) executeStep(ctx context.Context, wctx *Context, step Step) (StepResult, bool, error) {
	factory, ok := GetNodeFactory(step.Type)
	if !ok {
		return StepResult{}, false, fmt.Errorf("unknown node type %q (step %s)", step.Type, step.ID)
	}

	node, err := factory(step.Config)
	if err != nil {
		return StepResult{}, false, fmt.Errorf("build node %q (step %s): %w", step.Type, step.ID, err)
	}

	rendered, err := renderStepConfig(wctx, step.Config)
	if err != nil {
		return StepResult{}, false, fmt.Errorf("render config for step %s: %w", step.ID, err)
	}

	result, err := node.Run(ctx, wctx, rendered)
	if err != nil {
		return StepResult{}, false, err
	}

	// Auto-output capture: every key a node returns is published into the
	// shared variable bag. This is the sole mechanism by which a node's
	// results become visible to later steps.
	for k, v := range result.Data {
		wctx.SetVariable(k, v)
	}

	if e.Debug != nil {
		e.Debug.RecordStep(e.WorkflowID, step.ID, step.Type, rendered, result)
	}

	return result, node.ShouldBreak(result), nil
}

// handleLoopStart pushes a new loop frame and returns the index to jump to
// (the loop body, or the loop_end step itself if loop_total is 0).
func (e *Engine) handleLoopStart(step Step, result StepResult, loopStack *[]loopFrame, visited map[int]bool, indexByID map[string]int) (int, bool) {
	bodyID, _ := result.Data["loop_body"].(string)
	endID, _ := result.Data["loop_end"].(string)
	foreachID, _ := result.Data["foreach_id"].(string)

	bodyIdx, ok := indexByID[bodyID]
	if !ok {
		return 0, false
	}

	total, _ := result.Data["loop_total"].(int)
	if total == 0 {
		if endIdx, ok := indexByID[endID]; ok {
			return endIdx, true
		}
		return 0, false
	}

	*loopStack = append(*loopStack, loopFrame{
		foreachIndex:  indexByID[step.ID],
		foreachID:     foreachID,
		loopBodyIndex: bodyIdx,
		loopEndID:     endID,
	})

	// Allow the body range to be re-visited on subsequent iterations.
	delete(visited, bodyIdx)

	return bodyIdx, true
}

// handleLoopReturn decides, once the current step falls through the normal
// end of the loop body, whether to loop back to the foreach node (more
// iterations) or fall through past loop_end (exhausted). When the workflow
// configured an explicit loop_end step, reaching it is the only trigger.
// Otherwise looping back is triggered by falling off the end of the step
// list, stepping back onto/past the foreach node itself, reaching an
// "end"-typed step, or landing on an already-visited step — any of which
// means the body ran its course without a dedicated terminator.
func (e *Engine) handleLoopReturn(step Step, currentIndex int, loopStack *[]loopFrame, visited map[int]bool) (int, bool) {
	frame := (*loopStack)[len(*loopStack)-1]
	nextIndex := currentIndex + 1

	var shouldReturn bool
	if frame.loopEndID != "" {
		shouldReturn = step.ID == frame.loopEndID
	} else {
		var nextType string
		if nextIndex < len(e.Steps) {
			nextType = e.Steps[nextIndex].Type
		}
		shouldReturn = nextIndex >= len(e.Steps) ||
			nextIndex <= frame.foreachIndex ||
			nextType == "end" ||
			(nextIndex < len(e.Steps) && visited[nextIndex])
	}

	if !shouldReturn {
		return 0, false
	}

	*loopStack = (*loopStack)[:len(*loopStack)-1]
	delete(visited, frame.foreachIndex)
	for idx := frame.loopBodyIndex; idx <= currentIndex; idx++ {
		delete(visited, idx)
	}

	return frame.foreachIndex, true
}

func (e *Engine) indexByID() map[string]int {
	m := make(map[string]int, len(e.Steps))
	for i, s := range e.Steps {
		m[s.ID] = i
	}
	return m
}
