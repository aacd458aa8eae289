// Package memory implements an in-memory store.Store backend, used by tests
// and by single-node deployments that don't need persistence across
// restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/rakunlabs/atbot/internal/store"
)

type Store struct {
	mu sync.RWMutex

	bots          map[string]store.Bot
	workflows     map[string]store.Workflow
	subscriptions map[string][]store.UserWorkflow // workflowID -> subs
	globals       map[string]any
}

func New() *Store {
	return &Store{
		bots:          make(map[string]store.Bot),
		workflows:     make(map[string]store.Workflow),
		subscriptions: make(map[string][]store.UserWorkflow),
		globals:       make(map[string]any),
	}
}

func (s *Store) Close() error { return nil }

// PutBot inserts or replaces a bot record, assigning an ID if empty.
func (s *Store) PutBot(b store.Bot) store.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	s.bots[b.ID] = b
	return b
}

func (s *Store) ListEnabledBots(ctx context.Context) ([]store.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Bot, 0, len(s.bots))
	for _, b := range s.bots {
		if b.Enabled {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetBot(ctx context.Context, id string) (*store.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bots[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// PutWorkflow inserts or replaces a workflow record, assigning an ID if empty.
func (s *Store) PutWorkflow(w store.Workflow) store.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = ulid.Make().String()
	}
	s.workflows[w.ID] = w
	return w
}

func (s *Store) ListEnabledWorkflows(ctx context.Context) ([]store.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		if w.Enabled {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// PutSubscription registers a user's bot as subscribed to a workflow,
// assigning an ID if empty.
func (s *Store) PutSubscription(sub store.UserWorkflow) store.UserWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = ulid.Make().String()
	}
	s.subscriptions[sub.WorkflowID] = append(s.subscriptions[sub.WorkflowID], sub)
	return sub
}

func (s *Store) ListEnabledSubscriptions(ctx context.Context, workflowID string) ([]store.UserWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.UserWorkflow
	for _, sub := range s.subscriptions[workflowID] {
		if sub.Enabled {
			out = append(out, sub)
		}
	}
	return out, nil
}

// SetGlobalVariable sets (or overwrites) a global variable's value.
func (s *Store) SetGlobalVariable(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globals[key] = value
}

func (s *Store) ListGlobalVariables(ctx context.Context) ([]store.GlobalVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.GlobalVariable, 0, len(s.globals))
	for k, v := range s.globals {
		out = append(out, store.GlobalVariable{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
