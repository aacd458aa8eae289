package dispatch

import (
	"context"
	"testing"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/store"
	"github.com/rakunlabs/atbot/internal/workflow"
)

type fakeBots struct {
	bots map[string]store.Bot
}

func (f *fakeBots) ListEnabledBots(ctx context.Context) ([]store.Bot, error) { return nil, nil }
func (f *fakeBots) GetBot(ctx context.Context, id string) (*store.Bot, error) {
	b, ok := f.bots[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type recordingAdapter struct {
	calls []string
}

func (r *recordingAdapter) Start(context.Context) error { return nil }
func (r *recordingAdapter) Stop(context.Context) error   { return nil }
func (r *recordingAdapter) CallAPI(_ context.Context, action string, _ map[string]any) (any, error) {
	r.calls = append(r.calls, action)
	return nil, nil
}
func (r *recordingAdapter) ProtocolName() string          { return "webhook" }
func (r *recordingAdapter) CacheKeyField() string         { return "app_id" }
func (r *recordingAdapter) SetMessageHandler(adapter.Handler) {}

func respondingNodeFactory(config map[string]any) (workflow.Noder, error) {
	return &respondingNode{}, nil
}

type respondingNode struct{}

func (n *respondingNode) Type() string { return "test_responder" }
func (n *respondingNode) Run(_ context.Context, wctx *workflow.Context, _ map[string]any) (workflow.StepResult, error) {
	wctx.SetResponse(event.NewMessage("pong"))
	return workflow.StepResult{}, nil
}
func (n *respondingNode) ShouldBreak(result workflow.StepResult) bool {
	return workflow.BaseBreak(result)
}

type fakeWorkflows struct {
	workflows []store.Workflow
}

func (f *fakeWorkflows) ListEnabledWorkflows(ctx context.Context) ([]store.Workflow, error) {
	return f.workflows, nil
}
func (f *fakeWorkflows) GetWorkflow(ctx context.Context, id string) (*store.Workflow, error) {
	for _, w := range f.workflows {
		if w.ID == id {
			return &w, nil
		}
	}
	return nil, nil
}

type fakeSubscriptions struct {
	subs map[string][]store.UserWorkflow
}

func (f *fakeSubscriptions) ListEnabledSubscriptions(ctx context.Context, workflowID string) ([]store.UserWorkflow, error) {
	return f.subs[workflowID], nil
}

func buildCache(t *testing.T, wf store.Workflow, subs []store.UserWorkflow) *workflow.Cache {
	t.Helper()
	workflow.RegisterNodeType("test_responder", respondingNodeFactory)

	wf.Steps = []byte(`[{"id":"1","type":"test_responder","config":{}}]`)

	cache := workflow.NewCache(
		&fakeWorkflows{workflows: []store.Workflow{wf}},
		&fakeSubscriptions{subs: map[string][]store.UserWorkflow{wf.ID: subs}},
		nil,
	)
	if err := cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload cache: %v", err)
	}
	return cache
}

func TestDispatchSendsFirstHandledResponse(t *testing.T) {
	wf := store.Workflow{ID: "wf1", TriggerType: store.TriggerMessage}
	cache := buildCache(t, wf, []store.UserWorkflow{{UserID: "owner1", WorkflowID: "wf1", Enabled: true}})

	mgr := adapter.NewManager()
	mgr.Register("webhook", func(botID string, _ map[string]any, _ map[string]string) (adapter.Adapter, error) {
		return &recordingAdapter{}, nil
	})
	if err := mgr.StartAdapter(context.Background(), "bot1", "webhook", nil, nil, func(context.Context, event.Event) {}); err != nil {
		t.Fatalf("start adapter: %v", err)
	}

	d := &Dispatcher{
		Bots:     &fakeBots{bots: map[string]store.Bot{"bot1": {ID: "bot1", OwnerID: "owner1"}}},
		Cache:    cache,
		Adapters: mgr,
	}

	ev := event.Event{BotID: "bot1", Protocol: "webhook", Kind: event.KindMessage, UserID: "u1"}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	a, _ := mgr.Get("bot1")
	rec := a.(*recordingAdapter)
	if len(rec.calls) != 1 {
		t.Fatalf("expected exactly one CallAPI call, got %d", len(rec.calls))
	}
	if rec.calls[0] != "send_user_message" {
		t.Fatalf("action = %q, want send_user_message", rec.calls[0])
	}
}

func TestDispatchSkipsMetaEvents(t *testing.T) {
	d := &Dispatcher{Bots: &fakeBots{}, Cache: workflow.NewCache(nil, nil, nil), Adapters: adapter.NewManager()}
	ev := event.Event{BotID: "bot1", Kind: event.KindMeta}
	if err := d.Dispatch(context.Background(), ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
}

func TestMatchFiltersByProtocolAllowList(t *testing.T) {
	wf := store.Workflow{ID: "wf1", TriggerType: store.TriggerMessage, Protocols: []string{"discord"}}
	cache := buildCache(t, wf, nil)
	d := &Dispatcher{Cache: cache}

	matches := d.match(store.TriggerMessage, "webhook", "", "")
	if len(matches) != 0 {
		t.Fatalf("expected no matches for disallowed protocol, got %d", len(matches))
	}

	matches = d.match(store.TriggerMessage, "discord", "", "")
	if len(matches) != 1 {
		t.Fatalf("expected one match for allowed protocol, got %d", len(matches))
	}
}

func TestMatchRequiresSubscriptionWhenOwnerKnown(t *testing.T) {
	wf := store.Workflow{ID: "wf1", TriggerType: store.TriggerMessage}
	cache := buildCache(t, wf, []store.UserWorkflow{{UserID: "owner1", WorkflowID: "wf1", Enabled: true}})
	d := &Dispatcher{Cache: cache}

	if matches := d.match(store.TriggerMessage, "webhook", "owner2", ""); len(matches) != 0 {
		t.Fatalf("expected no match for unsubscribed owner, got %d", len(matches))
	}
	if matches := d.match(store.TriggerMessage, "webhook", "owner1", ""); len(matches) != 1 {
		t.Fatalf("expected match for subscribed owner, got %d", len(matches))
	}
}
