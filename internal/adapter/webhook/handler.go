package webhook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rakunlabs/atbot/internal/crypto"
	"github.com/rakunlabs/atbot/internal/event"
)

const verificationOp = 13

type envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	ID string          `json:"id"`
	D  json.RawMessage `json:"d"`
}

// HandleWebhook implements adapter.WebhookReceiver. Order of operations
// matches the reference handler: parse, handle verification requests before
// any signature check, verify the signature, dedup, then route to an Event.
func (a *Adapter) HandleWebhook(ctx context.Context, raw []byte, headers map[string]string) ([]byte, int) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errorBody("invalid event data"), 400
	}

	if env.Op == verificationOp {
		return a.handleVerification(env.D)
	}

	signature := headers["X-Signature-Ed25519"]
	timestamp := headers["X-Signature-Timestamp"]
	if signature == "" || timestamp == "" {
		return errorBody("missing signature headers"), 401
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return errorBody("invalid signature encoding"), 401
	}
	ok, err := crypto.VerifySignature(a.appSecret, timestamp, raw, sigBytes)
	if err != nil || !ok {
		return errorBody("invalid signature"), 401
	}

	if env.ID != "" {
		if dup, err := a.isDuplicateEvent(ctx, env.ID); err == nil && dup {
			return statusBody("duplicate", "event already processed"), 200
		}
		a.recordEvent(ctx, env.ID)
	}

	ev, ignored := a.toEvent(env)
	if ignored {
		return statusBody("ignored", fmt.Sprintf("unhandled event type: %s", env.T)), 200
	}

	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		go h(context.WithoutCancel(ctx), ev)
	}

	return statusBody("success", "event processed"), 200
}

func (a *Adapter) handleVerification(payload json.RawMessage) ([]byte, int) {
	var body struct {
		PlainToken string `json:"plain_token"`
		EventTS    string `json:"event_ts"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.PlainToken == "" || body.EventTS == "" {
		return errorBody("missing required parameters"), 400
	}

	sig := crypto.SignHandshake(a.appSecret, body.EventTS, body.PlainToken)
	resp, _ := json.Marshal(map[string]string{
		"plain_token": body.PlainToken,
		"signature":   hex.EncodeToString(sig),
	})
	return resp, 200
}

func (a *Adapter) dedupKey(eventID string) string {
	return "qq_event_dedup:" + time.Now().Format("20060102") + ":" + eventID
}

func (a *Adapter) isDuplicateEvent(ctx context.Context, eventID string) (bool, error) {
	_, found, err := a.dedup.Get(ctx, a.dedupKey(eventID))
	return found, err
}

func (a *Adapter) recordEvent(ctx context.Context, eventID string) {
	_ = a.dedup.Set(ctx, a.dedupKey(eventID), []byte("1"), 24*time.Hour)
}

var atTagPattern = regexp.MustCompile(`<@!?\d+>`)

// cleanMentions strips channel @-tags from message content: using the
// official mentions array when present (exact id match), falling back to a
// regex sweep otherwise.
func cleanMentions(content string, mentions []map[string]any) string {
	if len(mentions) == 0 {
		return strings.TrimSpace(atTagPattern.ReplaceAllString(content, ""))
	}

	cleaned := content
	for _, m := range mentions {
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		cleaned = strings.ReplaceAll(cleaned, "<@!"+id+">", "")
		cleaned = strings.ReplaceAll(cleaned, "<@"+id+">", "")
	}
	return strings.TrimSpace(cleaned)
}

func authorOpenID(author map[string]any) string {
	for _, key := range []string{"member_openid", "user_openid", "id", "openid"} {
		if v, ok := author[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

type messagePayload struct {
	ID          string           `json:"id"`
	Content     string           `json:"content"`
	Timestamp   string           `json:"timestamp"`
	Author      map[string]any   `json:"author"`
	GroupOpenID string           `json:"group_openid"`
	ChannelID   string           `json:"channel_id"`
	GuildID     string           `json:"guild_id"`
	Mentions    []map[string]any `json:"mentions"`
}

// toEvent routes the QQ-specific event type into the canonical Event model.
// Only message-bearing event types yield a dispatchable Event; guild/channel
// administration, friend, audit, and interaction events carry no chat
// content for the workflow engine to act on and are reported as ignored,
// matching the distilled trigger model's message focus.
func (a *Adapter) toEvent(env envelope) (event.Event, bool) {
	var p messagePayload
	_ = json.Unmarshal(env.D, &p)

	base := event.Event{
		ID:        env.ID,
		Kind:      event.KindMessage,
		Protocol:  "webhook",
		BotID:     a.botID,
		EventName: env.T,
		Timestamp: parseTimestamp(p.Timestamp),
		RawData:   rawMap(env.D),
	}

	switch env.T {
	case "C2C_MESSAGE_CREATE":
		base.UserID = authorOpenID(p.Author)
		base.Message = event.NewMessage(p.Content)
		return base, false

	case "GROUP_AT_MESSAGE_CREATE":
		base.GroupID = p.GroupOpenID
		base.UserID = authorOpenID(p.Author)
		base.ToMe = true
		base.Message = event.NewMessage(strings.TrimSpace(p.Content))
		return base, false

	case "MESSAGE_CREATE":
		base.ChannelID = p.ChannelID
		base.UserID, _ = p.Author["id"].(string)
		base.Message = event.NewMessage(cleanMentions(p.Content, p.Mentions))
		return base, false

	case "AT_MESSAGE_CREATE":
		base.ChannelID = p.ChannelID
		base.UserID, _ = p.Author["id"].(string)
		base.ToMe = true
		base.Message = event.NewMessage(cleanMentions(p.Content, p.Mentions))
		return base, false

	case "DIRECT_MESSAGE_CREATE":
		base.UserID, _ = p.Author["id"].(string)
		base.Message = event.NewMessage(cleanMentions(p.Content, p.Mentions))
		return base, false

	default:
		return event.Event{}, true
	}
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(sec, 0)
	}
	return time.Now()
}

func rawMap(payload json.RawMessage) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(payload, &m)
	return m
}

func errorBody(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}

func statusBody(status, message string) []byte {
	b, _ := json.Marshal(map[string]string{"status": status, "message": message})
	return b
}
