package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rakunlabs/atbot/internal/store"
)

// Cached is one compiled workflow entry in the in-memory cache: the
// workflow's routing metadata plus its already-parsed Engine, so dispatch
// never has to touch the store or re-parse the step list per event.
type Cached struct {
	Workflow      store.Workflow
	Engine        *Engine
	Subscriptions []store.UserWorkflow
}

// Cache is the workflow cache: an atomically-swapped snapshot of every
// enabled workflow plus its subscriber list, rebuilt wholesale on Reload
// rather than mutated incrementally.
type Cache struct {
	snapshot atomic.Pointer[[]Cached]

	workflows     store.WorkflowStorer
	subscriptions store.UserWorkflowStorer
	debug         func() DebugRecorder

	mu sync.Mutex // serializes concurrent Reload calls
}

func NewCache(workflows store.WorkflowStorer, subscriptions store.UserWorkflowStorer, debug func() DebugRecorder) *Cache {
	c := &Cache{workflows: workflows, subscriptions: subscriptions, debug: debug}
	empty := []Cached{}
	c.snapshot.Store(&empty)
	return c
}

// Reload rebuilds the cache snapshot from the store. Safe to call
// concurrently with Snapshot readers; readers always see either the old or
// the new snapshot in full, never a partial one.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	workflows, err := c.workflows.ListEnabledWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("list enabled workflows: %w", err)
	}

	next := make([]Cached, 0, len(workflows))
	for _, w := range workflows {
		var steps []Step
		if len(w.Steps) > 0 {
			if err := json.Unmarshal(w.Steps, &steps); err != nil {
				return fmt.Errorf("parse steps for workflow %s: %w", w.ID, err)
			}
		}

		var debugRecorder DebugRecorder
		if c.debug != nil {
			debugRecorder = c.debug()
		}

		engine := &Engine{
			WorkflowID:  w.ID,
			Name:        w.Name,
			Steps:       steps,
			TriggerType: string(w.TriggerType),
			Protocols:   w.Protocols,
			Debug:       debugRecorder,
		}

		subs, err := c.subscriptions.ListEnabledSubscriptions(ctx, w.ID)
		if err != nil {
			return fmt.Errorf("list subscriptions for workflow %s: %w", w.ID, err)
		}

		next = append(next, Cached{Workflow: w, Engine: engine, Subscriptions: subs})
	}

	c.snapshot.Store(&next)
	return nil
}

// Snapshot returns the current cache contents. The returned slice must not
// be mutated by the caller.
func (c *Cache) Snapshot() []Cached {
	return *c.snapshot.Load()
}
