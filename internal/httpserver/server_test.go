package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/config"
	"github.com/rakunlabs/atbot/internal/store"
)

type fakeWebhookAdapter struct {
	gotBody    []byte
	gotHeaders map[string]string
}

func (a *fakeWebhookAdapter) Start(context.Context) error { return nil }
func (a *fakeWebhookAdapter) Stop(context.Context) error  { return nil }
func (a *fakeWebhookAdapter) CallAPI(context.Context, string, map[string]any) (any, error) {
	return nil, nil
}
func (a *fakeWebhookAdapter) ProtocolName() string             { return "webhook" }
func (a *fakeWebhookAdapter) CacheKeyField() string             { return "app_id" }
func (a *fakeWebhookAdapter) SetMessageHandler(adapter.Handler) {}
func (a *fakeWebhookAdapter) HandleWebhook(_ context.Context, raw []byte, headers map[string]string) ([]byte, int) {
	a.gotBody = raw
	a.gotHeaders = headers
	return []byte(`{"ok":true}`), http.StatusOK
}

// fakeBotStorer is a minimal store.BotStorer backing the app_id cache-miss
// fallback path.
type fakeBotStorer struct {
	bots []store.Bot
}

func (f *fakeBotStorer) ListEnabledBots(context.Context) ([]store.Bot, error) {
	return f.bots, nil
}

func (f *fakeBotStorer) GetBot(_ context.Context, id string) (*store.Bot, error) {
	for _, b := range f.bots {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, nil
}

func TestWebhookRoutesToResolvedBotAdapter(t *testing.T) {
	mgr := adapter.NewManager()
	fake := &fakeWebhookAdapter{}
	mgr.Register("webhook", func(string, map[string]any, map[string]string) (adapter.Adapter, error) {
		return fake, nil
	})
	if err := mgr.StartAdapter(context.Background(), "bot1", "webhook", nil, nil, nil); err != nil {
		t.Fatalf("start adapter: %v", err)
	}

	bots := &fakeBotStorer{bots: []store.Bot{
		{ID: "bot1", Protocol: "webhook", Enabled: true, Settings: map[string]any{"app_id": "app-xyz"}},
	}}

	s := New(config.HTTP{Host: "127.0.0.1", Port: "0"}, bots, mgr)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"hello":"world"}`))
	req.Header.Set("X-Bot-Appid", "app-xyz")
	req.Header.Set("X-Signature-Ed25519", "abc")
	rec := httptest.NewRecorder()

	s.Webhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if string(fake.gotBody) != `{"hello":"world"}` {
		t.Fatalf("body = %q", fake.gotBody)
	}
	if fake.gotHeaders["X-Signature-Ed25519"] != "abc" {
		t.Fatalf("missing forwarded header")
	}

	// The miss above should have populated the cache; a second request with
	// an empty bot list still resolves, since lookup no longer hits the
	// store at all.
	s.bots = &fakeBotStorer{}
	req2 := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"hello":"again"}`))
	req2.Header.Set("X-Bot-Appid", "app-xyz")
	rec2 := httptest.NewRecorder()

	s.Webhook(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("cached lookup status = %d, want 200", rec2.Code)
	}
}

func TestWebhookRejectsMissingAppIDHeader(t *testing.T) {
	mgr := adapter.NewManager()
	s := New(config.HTTP{}, &fakeBotStorer{}, mgr)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	rec := httptest.NewRecorder()

	s.Webhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookRejectsUnknownAppID(t *testing.T) {
	mgr := adapter.NewManager()
	s := New(config.HTTP{}, &fakeBotStorer{}, mgr)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("X-Bot-Appid", "missing")
	rec := httptest.NewRecorder()

	s.Webhook(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
