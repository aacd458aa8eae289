// Package dispatch is the core matcher and fan-out: given one inbound
// event, it resolves which workflows apply, runs all of them concurrently,
// and sends the first handled response back out through the originating
// adapter.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/store"
	"github.com/rakunlabs/atbot/internal/workflow"
)

// Dispatcher owns the collaborators event routing needs: bot ownership
// lookup, the precompiled workflow cache, the adapter manager to send
// responses back through, and the global-variable snapshot function the
// workflow context's template namespace reads.
type Dispatcher struct {
	Bots     store.BotStorer
	Cache    *workflow.Cache
	Adapters *adapter.Manager
	Globals  func() []store.GlobalVariable
}

// triggerTypeFor maps an event Kind to the workflow trigger_type it can
// satisfy. Meta events never dispatch. Scheduled events are synthesized by
// the scheduler and routed back through this same path so a schedule
// trigger's workflow runs through the ordinary matching and send logic.
func triggerTypeFor(kind event.Kind) store.TriggerType {
	switch kind {
	case event.KindMessage:
		return store.TriggerMessage
	case event.KindNotice:
		return store.TriggerType("notice")
	case event.KindRequest:
		return store.TriggerType("request")
	case event.KindScheduled:
		return store.TriggerSchedule
	default:
		return ""
	}
}

// Dispatch runs every workflow matching ev concurrently and sends the
// response of the first one to complete with handled==true and a non-nil
// Message. Every matching workflow still runs to completion — there is no
// cancellation of the stragglers, per the platform's concurrency policy.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) error {
	if ev.Kind == event.KindMeta {
		return nil
	}

	triggerType := triggerTypeFor(ev.Kind)
	if triggerType == "" {
		return nil
	}

	ownerID := ""
	if bot, err := d.Bots.GetBot(ctx, ev.BotID); err != nil {
		slog.Error("dispatch: resolve bot owner failed", "bot_id", ev.BotID, "error", err)
	} else if bot != nil {
		ownerID = bot.OwnerID
	}

	matches := d.match(triggerType, ev.Protocol, ownerID, ev.EventName)
	if ev.Kind == event.KindScheduled {
		// A scheduled event runs only the workflow whose schedule fired.
		wfID, _ := ev.RawData["workflow_id"].(string)
		var fired []workflow.Cached
		for _, cached := range matches {
			if cached.Workflow.ID == wfID {
				fired = append(fired, cached)
			}
		}
		matches = fired
	}
	if len(matches) == 0 {
		return nil
	}

	results := make(chan workflow.Result, len(matches))

	g := &errgroup.Group{}
	for _, cached := range matches {
		cached := cached
		g.Go(func() error {
			wctx := workflow.NewContext(ev, d.Globals)
			results <- cached.Engine.ExecuteContext(ctx, wctx)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	sent := false
	for result := range results {
		if sent || !result.Handled || result.Response == nil {
			continue
		}
		if err := d.send(ctx, ev, *result.Response); err != nil {
			slog.Error("dispatch: send response failed", "bot_id", ev.BotID, "error", err)
			continue
		}
		sent = true
	}

	return nil
}

// match filters the cache snapshot the way the reference dispatcher does:
// trigger_type must match; if the workflow declares an event_filter and
// eventSubName is non-empty, eventSubName must be contained in it; if
// ownerID is known, the workflow must be in that owner's subscription set;
// if the workflow's protocol allow-list is non-empty, protocol must be in
// it.
func (d *Dispatcher) match(triggerType store.TriggerType, protocol, ownerID, eventSubName string) []workflow.Cached {
	var out []workflow.Cached

	for _, cached := range d.Cache.Snapshot() {
		wf := cached.Workflow
		if wf.TriggerType != triggerType {
			continue
		}

		if len(wf.Protocols) > 0 && !contains(wf.Protocols, protocol) {
			continue
		}

		if eventSubName != "" && !eventFilterAllows(wf.EventFilter, eventSubName) {
			continue
		}

		if ownerID != "" && !subscribedTo(cached.Subscriptions, ownerID) {
			continue
		}

		out = append(out, cached)
	}

	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// eventFilterAllows reports whether name is contained in the workflow's
// event_filter, when one is configured. An absent or empty filter allows
// every sub-name.
func eventFilterAllows(filter map[string]any, name string) bool {
	if len(filter) == 0 {
		return true
	}
	names, ok := filter["names"].([]any)
	if !ok {
		return true
	}
	for _, n := range names {
		if s, ok := n.(string); ok && s == name {
			return true
		}
	}
	return false
}

func subscribedTo(subs []store.UserWorkflow, ownerID string) bool {
	for _, s := range subs {
		if s.UserID == ownerID && s.Enabled {
			return true
		}
	}
	return false
}

// send translates a workflow response Message into the originating bot's
// protocol-specific send action and calls it through the adapter manager.
func (d *Dispatcher) send(ctx context.Context, ev event.Event, msg event.Message) error {
	action, params, err := buildSendParams(ev, msg)
	if err != nil {
		return err
	}

	_, err = d.Adapters.CallAPI(ctx, ev.BotID, action, params)
	return err
}

// buildSendParams maps the canonical Message back into each protocol's
// native send action, the reverse of what each adapter's toEvent does.
func buildSendParams(ev event.Event, msg event.Message) (string, map[string]any, error) {
	content := msg.ExtractPlainText()

	switch ev.Protocol {
	case "webhook":
		if ev.GroupID != "" {
			return "send_group_message", map[string]any{
				"group_openid": ev.GroupID,
				"content":      content,
				"msg_id":       ev.ID,
			}, nil
		}
		if ev.ChannelID != "" {
			return "send_channel_message", map[string]any{
				"channel_id": ev.ChannelID,
				"content":    content,
				"msg_id":     ev.ID,
			}, nil
		}
		return "send_user_message", map[string]any{
			"openid":  ev.UserID,
			"content": content,
			"msg_id":  ev.ID,
		}, nil

	case "websocket":
		if ev.GroupID != "" {
			return "send_msg", map[string]any{
				"message_type": "group",
				"group_id":     ev.GroupID,
				"message":      segmentsToOneBot(msg),
			}, nil
		}
		return "send_msg", map[string]any{
			"message_type": "private",
			"user_id":      ev.UserID,
			"message":      segmentsToOneBot(msg),
		}, nil

	case "discord":
		return "send-message", map[string]any{
			"channel_id": ev.ChannelID,
			"content":    content,
		}, nil

	case "telegram":
		return "send-message", map[string]any{
			"chat_id": ev.ChannelID,
			"content": content,
		}, nil

	default:
		return "", nil, fmt.Errorf("dispatch: no send mapping for protocol %q", ev.Protocol)
	}
}

// segmentsToOneBot converts the canonical Message into OneBot's
// {type, data} segment array wire format.
func segmentsToOneBot(msg event.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msg))
	for _, seg := range msg {
		out = append(out, map[string]any{"type": string(seg.Type), "data": seg.Data})
	}
	return out
}
