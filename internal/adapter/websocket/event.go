package websocket

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rakunlabs/atbot/internal/event"
)

func unixTime(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0)
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	default:
		return time.Now()
	}
}

// toEvent routes one decoded frame into the canonical Event model by
// post_type, the way the broker's message/notice/request/meta_event split
// works. post_type values other than these four are unrecognized and
// dropped.
func toEvent(botID, postType string, raw map[string]any) (event.Event, bool) {
	switch postType {
	case "message", "message_sent":
		return messageEvent(botID, raw), true
	case "notice":
		return noticeEvent(botID, raw), true
	case "request":
		return requestEvent(botID, raw), true
	case "meta_event":
		return metaEvent(botID, raw), true
	default:
		return event.Event{}, false
	}
}

func messageEvent(botID string, raw map[string]any) event.Event {
	messageType, _ := raw["message_type"].(string)
	userID := str(raw["user_id"])
	groupID := str(raw["group_id"])
	selfID := str(raw["self_id"])
	rawMessage, _ := raw["raw_message"].(string)

	segs, ats := parseSegments(raw["message"], rawMessage)

	toMe := messageType == "private"
	if !toMe {
		for _, at := range ats {
			if at == selfID {
				toMe = true
				break
			}
		}
	}

	ev := event.Event{
		Kind:      event.KindMessage,
		Protocol:  "websocket",
		BotID:     botID,
		EventName: "message." + messageType,
		UserID:    userID,
		GroupID:   groupID,
		Message:   segs,
		ToMe:      toMe,
		Timestamp: unixTime(raw["time"]),
		RawData:   raw,
	}
	ev.ID = str(raw["message_id"])
	return ev
}

func noticeEvent(botID string, raw map[string]any) event.Event {
	noticeType, _ := raw["notice_type"].(string)
	subType, _ := raw["sub_type"].(string)

	name := "notice." + noticeType
	if subType != "" {
		name += "." + subType
	}

	return event.Event{
		Kind:      event.KindNotice,
		Protocol:  "websocket",
		BotID:     botID,
		EventName: name,
		UserID:    str(raw["user_id"]),
		GroupID:   str(raw["group_id"]),
		Timestamp: unixTime(raw["time"]),
		RawData:   raw,
	}
}

func requestEvent(botID string, raw map[string]any) event.Event {
	requestType, _ := raw["request_type"].(string)
	subType, _ := raw["sub_type"].(string)

	name := "request." + requestType
	if subType != "" {
		name += "." + subType
	}

	return event.Event{
		Kind:      event.KindRequest,
		Protocol:  "websocket",
		BotID:     botID,
		EventName: name,
		UserID:    str(raw["user_id"]),
		GroupID:   str(raw["group_id"]),
		Timestamp: unixTime(raw["time"]),
		RawData:   raw,
	}
}

func metaEvent(botID string, raw map[string]any) event.Event {
	metaType, _ := raw["meta_event_type"].(string)
	subType, _ := raw["sub_type"].(string)

	name := "meta_event." + metaType
	if subType != "" {
		name += "." + subType
	}

	return event.Event{
		Kind:      event.KindMeta,
		Protocol:  "websocket",
		BotID:     botID,
		EventName: name,
		Timestamp: unixTime(raw["time"]),
		RawData:   raw,
	}
}

var cqCodePattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9-_.]+)((?:,[a-zA-Z0-9-_.]+=[^,\]]*)*),?\]`)

// parseSegments accepts either the structured segment-array form or the
// inline CQ-code string form of a message, returning the normalized
// segments plus the list of user ids any "at" segments target.
func parseSegments(raw any, rawMessage string) (event.Message, []string) {
	var ats []string

	switch v := raw.(type) {
	case []any:
		segs := make(event.Message, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			typ, _ := m["type"].(string)
			data, _ := m["data"].(map[string]any)
			seg := toSegment(typ, data)
			segs = append(segs, seg)
			if typ == "at" {
				if qq, ok := data["qq"]; ok {
					ats = append(ats, str(qq))
				}
			}
		}
		return segs, ats

	default:
		return parseCQCodeString(rawMessage)
	}
}

func toSegment(typ string, data map[string]any) event.Segment {
	switch typ {
	case "text":
		return event.Text(str(data["text"]))
	case "image":
		return event.Image(str(data["file"]))
	case "at":
		return event.At(str(data["qq"]))
	case "reply":
		return event.Reply(str(data["id"]))
	default:
		return event.Segment{Type: event.SegmentType(typ), Data: data}
	}
}

// parseCQCodeString decodes the legacy inline CQ-code encoding of a
// message, e.g. "hello [CQ:at,qq=123] world".
func parseCQCodeString(msg string) (event.Message, []string) {
	var segs event.Message
	var ats []string

	lastEnd := 0
	for _, loc := range cqCodePattern.FindAllStringSubmatchIndex(msg, -1) {
		start, end := loc[0], loc[1]
		if text := msg[lastEnd:start]; text != "" {
			segs = append(segs, event.Text(unescapeCQ(text)))
		}
		typ := msg[loc[2]:loc[3]]
		params := strings.TrimPrefix(msg[loc[4]:loc[5]], ",")

		data := map[string]any{}
		if params != "" {
			for _, kv := range strings.Split(params, ",") {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) == 2 {
					data[parts[0]] = unescapeCQ(parts[1])
				}
			}
		}

		segs = append(segs, toSegment(typ, data))
		if typ == "at" {
			ats = append(ats, str(data["qq"]))
		}
		lastEnd = end
	}
	if tail := msg[lastEnd:]; tail != "" {
		segs = append(segs, event.Text(unescapeCQ(tail)))
	}

	return segs, ats
}

func unescapeCQ(s string) string {
	r := strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
	return r.Replace(s)
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return trimFloat(t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
