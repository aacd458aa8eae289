// Package webhook implements the signed-push style protocol adapter: events
// arrive as signed HTTP POSTs to a shared endpoint, routed to the right bot
// by an application-id header; outbound replies go out over a bearer-token
// REST API with its own access-token lifecycle.
package webhook

import (
	"context"
	"fmt"
	"sync"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/kv"
)

// Adapter implements adapter.Adapter and adapter.WebhookReceiver.
type Adapter struct {
	botID     string
	appID     string
	appSecret string

	dedup  kv.Store
	client *restClient

	mu      sync.Mutex
	handler adapter.Handler
}

// New returns a Constructor closed over the dedup store every webhook
// adapter instance shares.
func New(dedup kv.Store) adapter.Constructor {
	return func(botID string, config map[string]any, secrets map[string]string) (adapter.Adapter, error) {
		appID, _ := config["app_id"].(string)
		if appID == "" {
			return nil, fmt.Errorf("webhook: 'app_id' is required")
		}
		appSecret := secrets["app_secret"]
		if appSecret == "" {
			return nil, fmt.Errorf("webhook: 'app_secret' is required")
		}

		return &Adapter{
			botID:     botID,
			appID:     appID,
			appSecret: appSecret,
			dedup:     dedup,
			client:    newRESTClient(appID, appSecret),
		}, nil
	}
}

func (a *Adapter) ProtocolName() string  { return "webhook" }
func (a *Adapter) CacheKeyField() string { return "app_id" }

func (a *Adapter) SetMessageHandler(h adapter.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler == nil {
		a.handler = h
	}
}

// Start is a no-op: events arrive via HandleWebhook, there is nothing to
// dial or subscribe to.
func (a *Adapter) Start(_ context.Context) error { return nil }

func (a *Adapter) Stop(_ context.Context) error { return nil }

func (a *Adapter) CallAPI(ctx context.Context, action string, params map[string]any) (any, error) {
	return a.client.callAPI(ctx, action, params)
}
