package event

import "testing"

func TestEventSessionID(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want string
	}{
		{"group wins", Event{GroupID: "100", ChannelID: "200", UserID: "1"}, "group_100"},
		{"channel over private", Event{ChannelID: "200", UserID: "1"}, "channel_200"},
		{"private fallback", Event{UserID: "1"}, "private_1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.ev.SessionID(); got != c.want {
				t.Fatalf("SessionID() = %q, want %q", got, c.want)
			}
		})
	}
}

func TestScheduledEventToEvent(t *testing.T) {
	se := ScheduledEvent{WorkflowID: "wf1", Schedule: "*/5 * * * *"}
	ev := se.ToEvent("bot1")
	if ev.Kind != KindScheduled || ev.BotID != "bot1" || ev.RawData["workflow_id"] != "wf1" {
		t.Fatalf("unexpected scheduled event: %+v", ev)
	}
}
