package scheduler

import (
	"context"
	"testing"

	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/store"
)

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

type recordingDispatcher struct {
	events []event.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev event.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestToCronSpecPassesThroughEveryInterval(t *testing.T) {
	s := &Scheduler{Timezone: "UTC"}
	spec, err := s.toCronSpec(store.Workflow{Schedule: "@every 5m"})
	if err != nil {
		t.Fatalf("toCronSpec: %v", err)
	}
	if spec != "@every 5m" {
		t.Fatalf("spec = %q, want @every 5m", spec)
	}
}

func TestToCronSpecRejectsMalformedInterval(t *testing.T) {
	s := &Scheduler{}
	if _, err := s.toCronSpec(store.Workflow{Schedule: "@every notaduration"}); err == nil {
		t.Fatal("expected error for malformed interval")
	}
}

func TestToCronSpecAppliesWorkflowTimezoneOverDefault(t *testing.T) {
	s := &Scheduler{Timezone: "UTC"}
	spec, err := s.toCronSpec(store.Workflow{Schedule: "0 9 * * *", Timezone: "Europe/Berlin"})
	if err != nil {
		t.Fatalf("toCronSpec: %v", err)
	}
	if spec != "CRON_TZ=Europe/Berlin 0 9 * * *" {
		t.Fatalf("spec = %q", spec)
	}
}

func TestToCronSpecFallsBackToSchedulerTimezone(t *testing.T) {
	s := &Scheduler{Timezone: "UTC"}
	spec, err := s.toCronSpec(store.Workflow{Schedule: "0 9 * * *"})
	if err != nil {
		t.Fatalf("toCronSpec: %v", err)
	}
	if spec != "CRON_TZ=UTC 0 9 * * *" {
		t.Fatalf("spec = %q", spec)
	}
}

func TestFireFuncDispatchesToEachSubscribedEnabledBot(t *testing.T) {
	wf := store.Workflow{ID: "wf1", TriggerType: store.TriggerSchedule, Schedule: "@every 1m"}
	dispatcher := &recordingDispatcher{}

	s := &Scheduler{
		Workflows: &fakeWorkflows{workflows: []store.Workflow{wf}},
		Subscriptions: &fakeSubscriptions{subs: map[string][]store.UserWorkflow{
			"wf1": {
				{UserID: "owner1", WorkflowID: "wf1", BotID: "bot1", Enabled: true},
				{UserID: "owner2", WorkflowID: "wf1", BotID: "bot2", Enabled: true},
				{UserID: "owner3", WorkflowID: "wf1", BotID: "bot3", Enabled: true},
			},
		}},
		Bots: &fakeBots{bots: map[string]store.Bot{
			"bot1": {ID: "bot1", Protocol: "webhook", Enabled: true},
			"bot2": {ID: "bot2", Protocol: "discord", Enabled: false},
		}},
		Dispatch: dispatcher,
	}

	fire := s.fireFunc(wf)
	if err := fire(context.Background()); err != nil {
		t.Fatalf("fire: %v", err)
	}

	if len(dispatcher.events) != 1 {
		t.Fatalf("expected exactly one dispatched event (bot2 disabled, bot3 missing), got %d", len(dispatcher.events))
	}
	ev := dispatcher.events[0]
	if ev.BotID != "bot1" || ev.Protocol != "webhook" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Kind != event.KindScheduled {
		t.Fatalf("Kind = %q, want scheduled", ev.Kind)
	}
	if ev.RawData["workflow_id"] != "wf1" {
		t.Fatalf("RawData workflow_id = %v", ev.RawData["workflow_id"])
	}
}

func TestReloadSkipsNonScheduleWorkflows(t *testing.T) {
	workflows := []store.Workflow{
		{ID: "wf1", TriggerType: store.TriggerMessage, Schedule: ""},
		{ID: "wf2", TriggerType: store.TriggerSchedule, Schedule: ""},
	}
	s := &Scheduler{
		Workflows:     &fakeWorkflows{workflows: workflows},
		Subscriptions: &fakeSubscriptions{},
		Bots:          &fakeBots{},
		Dispatch:      &recordingDispatcher{},
		ctx:           context.Background(),
	}

	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.cron != nil {
		t.Fatal("expected no cron runner when no workflow has a usable schedule")
	}
}
