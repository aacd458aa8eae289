package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/kv"
)

const debugRecordTTL = time.Hour

// DebugRecorder captures one workflow run's step trace for later
// inspection, persisted under workflow_debug:<workflow_id> with a 1h TTL.
// It is only written when a run produced a response or ended in an error —
// a run with neither, or one aborted before the first step (e.g. protocol
// gate), records nothing.
type DebugRecorder interface {
	Start(workflowID string, ev event.Event)
	RecordStep(workflowID, stepID, stepType string, inputs map[string]any, result StepResult)
	Finish(workflowID string, wctx *Context, err error)
}

type stepTrace struct {
	StepID   string         `json:"step_id"`
	StepType string         `json:"step_type"`
	Inputs   map[string]any `json:"inputs"`
	Outputs  map[string]any `json:"outputs"`
}

type runTrace struct {
	WorkflowID string      `json:"workflow_id"`
	EventID    string      `json:"event_id"`
	Protocol   string      `json:"protocol"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Steps      []stepTrace `json:"steps"`
	Error      string      `json:"error,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
}

// KVDebugRecorder persists run traces to a kv.Store.
type KVDebugRecorder struct {
	kv kv.Store

	current *runTrace
}

func NewKVDebugRecorder(store kv.Store) *KVDebugRecorder {
	return &KVDebugRecorder{kv: store}
}

func (r *KVDebugRecorder) Start(workflowID string, ev event.Event) {
	r.current = &runTrace{
		WorkflowID: workflowID,
		EventID:    ev.ID,
		Protocol:   ev.Protocol,
		StartedAt:  time.Now().UTC(),
	}
}

func (r *KVDebugRecorder) RecordStep(workflowID, stepID, stepType string, inputs map[string]any, result StepResult) {
	if r.current == nil {
		return
	}
	r.current.Steps = append(r.current.Steps, stepTrace{
		StepID:   stepID,
		StepType: stepType,
		Inputs:   inputs,
		Outputs:  result.Data,
	})
}

func (r *KVDebugRecorder) Finish(workflowID string, wctx *Context, runErr error) {
	if r.current == nil {
		return
	}
	trace := r.current
	r.current = nil

	if runErr == nil && (wctx == nil || !wctx.Handled()) {
		return
	}

	trace.FinishedAt = time.Now().UTC()
	if runErr != nil {
		trace.Error = runErr.Error()
	}
	if wctx != nil {
		trace.Variables = wctx.AllVariables()
	}

	payload, err := json.Marshal(trace)
	if err != nil {
		return
	}

	key := fmt.Sprintf("workflow_debug:%s", workflowID)
	_ = r.kv.Set(context.Background(), key, payload, debugRecordTTL)
}
