// Package workflow implements the step-list workflow interpreter: a linear
// list of steps walked by index, with jump targets, loop frames, and
// cycle detection standing in for general control flow.
//
// Nodes register through an explicit table (RegisterNodeType) rather than
// being discovered by filesystem scan, matching the teacher's own node
// registry discipline.
package workflow

import "context"

// StepResult is what a node returns after running. The engine inspects the
// fields below to decide how to advance; every key in Data is written into
// the workflow context's variables under its own name.
type StepResult struct {
	Data map[string]any

	// Loop signals the interpreter to enter a loop frame, using the step ids
	// in Data["loop_body"] and Data["loop_end"] and the count in
	// Data["loop_total"].
	Loop bool

	// NextNode, if non-empty, makes the interpreter jump to that node id
	// instead of advancing sequentially — used by condition/foreach.
	NextNode string

	// StopSequence tells the interpreter to stop executing the workflow
	// immediately after this step (debug is still recorded; the result's
	// Handled still reflects whether a response was set).
	StopSequence bool
}

// Noder is implemented by every registered node kind.
type Noder interface {
	// Type returns the node kind string used in workflow configuration.
	Type() string

	// Run executes the node against the current context and returns its
	// result. inputs is the node's resolved, templated configuration.
	Run(ctx context.Context, wctx *Context, inputs map[string]any) (StepResult, error)

	// ShouldBreak decides, given a just-produced result, whether the
	// interpreter should stop walking the step list. The default node
	// behavior (see BaseBreak) is: break only when Data["success"] is false
	// and the result sets neither a next_node nor a loop.
	ShouldBreak(result StepResult) bool
}

// NodeFactory builds a Noder from a step's raw config block.
type NodeFactory func(config map[string]any) (Noder, error)

var nodeFactories = make(map[string]NodeFactory)

// RegisterNodeType adds typeName to the node registry. Call from an init()
// in the owning file, mirroring how every node kind in this package
// registers itself.
func RegisterNodeType(typeName string, factory NodeFactory) {
	nodeFactories[typeName] = factory
}

// GetNodeFactory looks up a previously registered node factory.
func GetNodeFactory(typeName string) (NodeFactory, bool) {
	f, ok := nodeFactories[typeName]
	return f, ok
}

// RegisteredNodeTypes lists every node kind currently registered, for
// config validation and documentation.
func RegisteredNodeTypes() []string {
	out := make([]string, 0, len(nodeFactories))
	for k := range nodeFactories {
		out = append(out, k)
	}
	return out
}

// BaseBreak implements the default ShouldBreak policy shared by most node
// kinds: break only if Data["success"] is the boolean false and the step set
// neither a next_node nor a loop; a result without a "success" key never
// breaks. Nodes with bespoke control-flow semantics (condition,
// schedule_check, end) override this.
func BaseBreak(result StepResult) bool {
	if result.NextNode != "" || result.Loop {
		return false
	}
	if ok, has := result.Data["success"]; has {
		if b, isBool := ok.(bool); isBool {
			return !b
		}
	}
	return false
}
