package webhook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/rakunlabs/atbot/internal/crypto"
	"github.com/rakunlabs/atbot/internal/kv"
)

func newTestAdapter() *Adapter {
	return &Adapter{
		botID:     "bot1",
		appID:     "app1",
		appSecret: "test-secret",
		dedup:     kv.NewMemory(),
		client:    newRESTClient("app1", "test-secret"),
	}
}

func signedHeaders(secret, timestamp string, body []byte) map[string]string {
	sig := crypto.SignHandshake(secret, timestamp, string(body))
	return map[string]string{
		"X-Signature-Ed25519":   hex.EncodeToString(sig),
		"X-Signature-Timestamp": timestamp,
	}
}

func TestHandleWebhookVerificationRequest(t *testing.T) {
	a := newTestAdapter()

	body, _ := json.Marshal(map[string]any{
		"op": 13,
		"d":  map[string]any{"plain_token": "tok123", "event_ts": "1700000000"},
	})

	resp, status := a.HandleWebhook(context.Background(), body, nil)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}

	var parsed map[string]string
	if err := json.Unmarshal(resp, &parsed); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if parsed["plain_token"] != "tok123" {
		t.Fatalf("plain_token = %q, want tok123", parsed["plain_token"])
	}
	if parsed["signature"] == "" {
		t.Fatal("expected non-empty signature")
	}
}

func TestHandleWebhookRejectsMissingSignature(t *testing.T) {
	a := newTestAdapter()

	body, _ := json.Marshal(map[string]any{"op": 0, "t": "C2C_MESSAGE_CREATE", "id": "e1", "d": map[string]any{}})

	_, status := a.HandleWebhook(context.Background(), body, nil)
	if status != 401 {
		t.Fatalf("status = %d, want 401", status)
	}
}

func TestHandleWebhookDedupesRepeatedEventID(t *testing.T) {
	a := newTestAdapter()

	body, _ := json.Marshal(map[string]any{
		"op": 0,
		"t":  "C2C_MESSAGE_CREATE",
		"id": "evt-1",
		"d":  map[string]any{"content": "hi", "author": map[string]any{"user_openid": "u1"}},
	})
	headers := signedHeaders(a.appSecret, "1700000000", body)

	_, status1 := a.HandleWebhook(context.Background(), body, headers)
	if status1 != 200 {
		t.Fatalf("first call status = %d, want 200", status1)
	}

	resp2, status2 := a.HandleWebhook(context.Background(), body, headers)
	if status2 != 200 {
		t.Fatalf("second call status = %d, want 200", status2)
	}

	var parsed map[string]string
	_ = json.Unmarshal(resp2, &parsed)
	if parsed["status"] != "duplicate" {
		t.Fatalf("expected duplicate status on repeat, got %+v", parsed)
	}
}

func TestHandleWebhookIgnoresUnknownEventType(t *testing.T) {
	a := newTestAdapter()

	body, _ := json.Marshal(map[string]any{
		"op": 0, "t": "GUILD_CREATE", "id": "evt-2", "d": map[string]any{},
	})
	headers := signedHeaders(a.appSecret, "1700000000", body)

	resp, status := a.HandleWebhook(context.Background(), body, headers)
	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}

	var parsed map[string]string
	_ = json.Unmarshal(resp, &parsed)
	if parsed["status"] != "ignored" {
		t.Fatalf("expected ignored status, got %+v", parsed)
	}
}

func TestCleanMentionsWithOfficialMentions(t *testing.T) {
	got := cleanMentions("<@!123> hello", []map[string]any{{"id": "123"}})
	if got != "hello" {
		t.Fatalf("cleanMentions = %q, want %q", got, "hello")
	}
}

func TestCleanMentionsFallsBackToRegex(t *testing.T) {
	got := cleanMentions("<@456> hi there", nil)
	if got != "hi there" {
		t.Fatalf("cleanMentions = %q, want %q", got, "hi there")
	}
}

func TestMsgSeqCounterIncrementsPerMessageID(t *testing.T) {
	c := newMsgSeqCounter(2)

	if got := c.next("m1"); got != 1 {
		t.Fatalf("first seq for m1 = %d, want 1", got)
	}
	if got := c.next("m1"); got != 2 {
		t.Fatalf("second seq for m1 = %d, want 2", got)
	}
	if got := c.next("m2"); got != 1 {
		t.Fatalf("first seq for m2 = %d, want 1", got)
	}
}

func TestMsgSeqCounterEvictsOldest(t *testing.T) {
	c := newMsgSeqCounter(1)

	c.next("m1")
	c.next("m2") // evicts m1's slot

	if got := c.next("m1"); got != 1 {
		t.Fatalf("m1 should restart at 1 after eviction, got %d", got)
	}
}
