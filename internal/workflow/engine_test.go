package workflow

import (
	"context"
	"testing"

	"github.com/rakunlabs/atbot/internal/event"
)

// stubNode is a minimal Noder used to exercise interpreter control flow
// without depending on the real node library.
type stubNode struct {
	result StepResult
	err    error
	calls  *int
}

func (s *stubNode) Type() string { return "stub" }

func (s *stubNode) Run(ctx context.Context, wctx *Context, inputs map[string]any) (StepResult, error) {
	if s.calls != nil {
		*s.calls++
	}
	return s.result, s.err
}

func (s *stubNode) ShouldBreak(result StepResult) bool {
	return BaseBreak(result)
}

func withStubFactory(t *testing.T, typeName string, build func(config map[string]any) (Noder, error)) {
	t.Helper()
	nodeFactories[typeName] = build
	t.Cleanup(func() { delete(nodeFactories, typeName) })
}

func newTestEvent() event.Event {
	return event.Event{ID: "ev1", Protocol: "webhook", Message: event.NewMessage("hi")}
}

func TestEngineLinearWalkWithoutResponseContinues(t *testing.T) {
	withStubFactory(t, "send", func(config map[string]any) (Noder, error) {
		return &stubNode{result: StepResult{Data: map[string]any{"success": true}}}, nil
	})

	e := &Engine{
		WorkflowID: "wf1",
		Steps: []Step{
			{ID: "s1", Type: "send"},
			{ID: "s2", Type: "send"},
		},
	}

	wctx := NewContext(newTestEvent(), nil)
	result := e.ExecuteContext(context.Background(), wctx)
	if !result.Continue {
		t.Fatalf("expected Continue=true when no response was set, got %+v", result)
	}
}

func TestEngineProtocolGateSkipsMismatch(t *testing.T) {
	e := &Engine{
		WorkflowID: "wf1",
		Protocols:  []string{"discord"},
		Steps:      []Step{{ID: "s1", Type: "send"}},
	}

	wctx := NewContext(newTestEvent(), nil) // event.Protocol == "webhook"
	result := e.ExecuteContext(context.Background(), wctx)
	if result.Handled {
		t.Fatalf("expected protocol gate to prevent handling, got %+v", result)
	}
}

func TestEngineNextNodeJump(t *testing.T) {
	calls := 0
	withStubFactory(t, "jumper", func(config map[string]any) (Noder, error) {
		return &stubNode{result: StepResult{NextNode: "s3"}, calls: &calls}, nil
	})
	withStubFactory(t, "terminal", func(config map[string]any) (Noder, error) {
		return &stubNode{result: StepResult{Data: map[string]any{"success": true}}, calls: &calls}, nil
	})

	e := &Engine{
		WorkflowID: "wf1",
		Steps: []Step{
			{ID: "s1", Type: "jumper"},
			{ID: "s2", Type: "terminal"}, // should be skipped
			{ID: "s3", Type: "terminal"},
		},
	}

	wctx := NewContext(newTestEvent(), nil)
	e.ExecuteContext(context.Background(), wctx)

	if calls != 2 {
		t.Fatalf("expected exactly 2 node executions (s1, s3), got %d", calls)
	}
}

func TestEngineOnFailSendsMessageAndContinues(t *testing.T) {
	withStubFactory(t, "broken", func(config map[string]any) (Noder, error) {
		return nil, errFactory
	})
	withStubFactory(t, "send", func(config map[string]any) (Noder, error) {
		return &stubNode{result: StepResult{Data: map[string]any{"success": true}}}, nil
	})

	e := &Engine{
		WorkflowID: "wf1",
		Steps: []Step{
			{ID: "s1", Type: "broken", OnFail: &OnFail{Action: "send_message", Message: "fallback"}},
			{ID: "s2", Type: "send"},
		},
	}

	wctx := NewContext(newTestEvent(), nil)
	result := e.ExecuteContext(context.Background(), wctx)

	if result.Response == nil || result.Response.ExtractPlainText() != "fallback" {
		t.Fatalf("expected on_fail response %q, got %+v", "fallback", result.Response)
	}
}

var errFactory = &stubError{"factory failed"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }

// loopStarterNode stands in for foreach: it yields Loop for `total`
// iterations, then jumps to nextNode once exhausted.
type loopStarterNode struct {
	total    int
	body     string
	end      string
	nextNode string
	calls    *int
}

func (n *loopStarterNode) Type() string { return "floop" }

func (n *loopStarterNode) Run(ctx context.Context, wctx *Context, inputs map[string]any) (StepResult, error) {
	*n.calls++
	if *n.calls > n.total {
		if n.nextNode != "" {
			return StepResult{NextNode: n.nextNode}, nil
		}
		return StepResult{StopSequence: true}, nil
	}
	return StepResult{Loop: true, Data: map[string]any{
		"loop_body":  n.body,
		"loop_end":   n.end,
		"loop_total": 1,
	}}, nil
}

func (n *loopStarterNode) ShouldBreak(result StepResult) bool { return BaseBreak(result) }

// TestEngineLoopReturnClearsFullBodyRangeAcrossIterations is a regression
// test for a loop body with more than one step: every step between
// loop_body and the current step (not just the two endpoints) must have its
// visited flag cleared on loop return, or the second iteration trips the
// cycle-detection break before the body's later steps ever run again.
func TestEngineLoopReturnClearsFullBodyRangeAcrossIterations(t *testing.T) {
	iterations := 0
	withStubFactory(t, "floop", func(config map[string]any) (Noder, error) {
		return &loopStarterNode{total: 2, body: "a", end: "b", nextNode: "final", calls: &iterations}, nil
	})

	callsA, callsB, callsFinal := 0, 0, 0
	withStubFactory(t, "stub", func(config map[string]any) (Noder, error) {
		name, _ := config["name"].(string)
		var counter *int
		switch name {
		case "a":
			counter = &callsA
		case "b":
			counter = &callsB
		default:
			counter = &callsFinal
		}
		return &stubNode{result: StepResult{Data: map[string]any{"success": true}}, calls: counter}, nil
	})

	e := &Engine{
		WorkflowID: "wf1",
		Steps: []Step{
			{ID: "foreach", Type: "floop"},
			{ID: "a", Type: "stub", Config: map[string]any{"name": "a"}},
			{ID: "b", Type: "stub", Config: map[string]any{"name": "b"}},
			{ID: "final", Type: "stub", Config: map[string]any{"name": "final"}},
		},
	}

	wctx := NewContext(newTestEvent(), nil)
	e.ExecuteContext(context.Background(), wctx)

	if callsA != 2 {
		t.Fatalf("step a ran %d times, want 2 (once per iteration)", callsA)
	}
	if callsB != 2 {
		t.Fatalf("step b ran %d times, want 2 (once per iteration)", callsB)
	}
	if callsFinal != 1 {
		t.Fatalf("final ran %d times, want 1", callsFinal)
	}
}

// TestEngineLoopReturnFallsBackWithoutLoopEnd covers a foreach body with no
// configured loop_end: the interpreter must still loop back once it falls
// off the end of the step list, rather than terminating iteration early.
func TestEngineLoopReturnFallsBackWithoutLoopEnd(t *testing.T) {
	iterations := 0
	withStubFactory(t, "floop", func(config map[string]any) (Noder, error) {
		return &loopStarterNode{total: 2, body: "a", end: "", nextNode: "", calls: &iterations}, nil
	})

	callsA := 0
	withStubFactory(t, "stub", func(config map[string]any) (Noder, error) {
		return &stubNode{result: StepResult{Data: map[string]any{"success": true}}, calls: &callsA}, nil
	})

	e := &Engine{
		WorkflowID: "wf1",
		Steps: []Step{
			{ID: "foreach", Type: "floop"},
			{ID: "a", Type: "stub"},
		},
	}

	wctx := NewContext(newTestEvent(), nil)
	e.ExecuteContext(context.Background(), wctx)

	if callsA != 2 {
		t.Fatalf("step a ran %d times, want 2 (loop must continue past the end of the step list)", callsA)
	}
}
