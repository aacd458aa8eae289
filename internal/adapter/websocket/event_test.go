package websocket

import "testing"

func TestToEventPrivateMessageIsToMe(t *testing.T) {
	raw := map[string]any{
		"post_type":    "message",
		"message_type": "private",
		"user_id":      float64(123),
		"message_id":   float64(9),
		"message":      []any{map[string]any{"type": "text", "data": map[string]any{"text": "hi"}}},
		"time":         float64(1700000000),
	}

	ev, ok := toEvent("bot1", "message", raw)
	if !ok {
		t.Fatal("expected event to be recognized")
	}
	if !ev.ToMe {
		t.Fatal("private messages should always be ToMe")
	}
	if ev.UserID != "123" {
		t.Fatalf("UserID = %q, want 123", ev.UserID)
	}
	if got := ev.Message.ExtractPlainText(); got != "hi" {
		t.Fatalf("plain text = %q, want hi", got)
	}
}

func TestToEventGroupMessageDetectsAtSelf(t *testing.T) {
	raw := map[string]any{
		"post_type":    "message",
		"message_type": "group",
		"user_id":      float64(1),
		"group_id":     float64(100),
		"self_id":      float64(999),
		"message": []any{
			map[string]any{"type": "at", "data": map[string]any{"qq": "999"}},
			map[string]any{"type": "text", "data": map[string]any{"text": " hello"}},
		},
	}

	ev, ok := toEvent("bot1", "message", raw)
	if !ok {
		t.Fatal("expected event to be recognized")
	}
	if !ev.ToMe {
		t.Fatal("expected ToMe when self is at-mentioned")
	}
	if ev.GroupID != "100" {
		t.Fatalf("GroupID = %q, want 100", ev.GroupID)
	}
}

func TestToEventGroupMessageNotToMeWithoutMention(t *testing.T) {
	raw := map[string]any{
		"post_type":    "message",
		"message_type": "group",
		"self_id":      float64(999),
		"message":      []any{map[string]any{"type": "text", "data": map[string]any{"text": "hello"}}},
	}

	ev, ok := toEvent("bot1", "message", raw)
	if !ok {
		t.Fatal("expected event to be recognized")
	}
	if ev.ToMe {
		t.Fatal("expected ToMe=false without a mention")
	}
}

func TestParseCQCodeString(t *testing.T) {
	segs, ats := parseCQCodeString("hello [CQ:at,qq=42] world")
	if len(segs) != 3 {
		t.Fatalf("segs = %d, want 3", len(segs))
	}
	if ats[0] != "42" {
		t.Fatalf("ats[0] = %q, want 42", ats[0])
	}
	if got := segs[0].Data["text"]; got != "hello " {
		t.Fatalf("segs[0] text = %q, want 'hello '", got)
	}
	if got := segs[2].Data["text"]; got != " world" {
		t.Fatalf("segs[2] text = %q, want ' world'", got)
	}
}

func TestToEventUnknownPostTypeIgnored(t *testing.T) {
	_, ok := toEvent("bot1", "unknown_type", map[string]any{})
	if ok {
		t.Fatal("expected unknown post_type to be dropped")
	}
}

func TestToEventNoticeBuildsEventName(t *testing.T) {
	raw := map[string]any{
		"notice_type": "group_upload",
		"sub_type":    "",
		"user_id":     float64(1),
	}
	ev := noticeEvent("bot1", raw)
	if ev.EventName != "notice.group_upload" {
		t.Fatalf("EventName = %q, want notice.group_upload", ev.EventName)
	}
}
