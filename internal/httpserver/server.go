// Package httpserver exposes the two outward-facing HTTP surfaces every
// deployment needs regardless of which protocol adapters are configured: a
// health probe and the webhook push endpoint that feeds signed-push style
// adapters (the webhook package) their inbound events.
package httpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/rakunlabs/ada"
	mcors "github.com/rakunlabs/ada/middleware/cors"
	mlog "github.com/rakunlabs/ada/middleware/log"
	mrecover "github.com/rakunlabs/ada/middleware/recover"
	mrequestid "github.com/rakunlabs/ada/middleware/requestid"
	mserver "github.com/rakunlabs/ada/middleware/server"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/config"
	"github.com/rakunlabs/atbot/internal/store"
)

// Server is the HTTP front door: a thin ada router wiring health and
// webhook-push routes to the adapter manager. It owns no business logic of
// its own beyond resolving which bot a webhook request targets.
type Server struct {
	cfg config.HTTP

	server *ada.Server

	bots     store.BotStorer
	adapters *adapter.Manager
	appIDs   *appIDCache
}

func New(cfg config.HTTP, bots store.BotStorer, adapters *adapter.Manager) *Server {
	mux := ada.New()
	mux.Use(
		mrecover.Middleware(),
		mserver.Middleware(config.Service),
		mcors.Middleware(),
		mrequestid.Middleware(),
		mlog.Middleware(),
	)

	s := &Server{cfg: cfg, server: mux, bots: bots, adapters: adapters, appIDs: newAppIDCache()}

	root := mux.Group("")
	root.GET("/healthz", s.Health)
	root.POST("/webhook", s.Webhook)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	return s.server.StartWithContext(ctx, net.JoinHostPort(s.cfg.Host, s.cfg.Port))
}

// Health answers liveness/readiness probes. It never touches the store: a
// down database shouldn't make the orchestrator think the process is dead.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	httpResponseJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Webhook is the single shared inbound endpoint every webhook-protocol bot
// pushes events to. The bot is identified by the X-Bot-Appid header through
// the app_id -> bot_id cache; a miss falls back to the store and
// repopulates the cache. It then resolves the bot's running adapter,
// confirms it accepts pushed webhooks, and hands the raw body and headers
// over verbatim — signature verification and dedup are the adapter's job,
// not this layer's.
func (s *Server) Webhook(w http.ResponseWriter, r *http.Request) {
	appID := r.Header.Get("X-Bot-Appid")
	if appID == "" {
		httpResponse(w, "X-Bot-Appid header is required", http.StatusBadRequest)
		return
	}

	botID, ok := s.appIDs.lookup(appID)
	if !ok {
		resolved, err := s.resolveBotByAppID(r.Context(), appID)
		if err != nil {
			slog.Error("httpserver: resolve bot by app id failed", "error", err)
			httpResponse(w, "bot not found", http.StatusNotFound)
			return
		}
		if resolved == "" {
			httpResponse(w, "bot not found", http.StatusNotFound)
			return
		}
		botID = resolved
		s.appIDs.store(appID, botID)
	}

	a, ok := s.adapters.Get(botID)
	if !ok {
		httpResponse(w, "bot not running", http.StatusNotFound)
		return
	}

	receiver, ok := a.(adapter.WebhookReceiver)
	if !ok {
		httpResponse(w, "bot does not accept webhooks", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpResponse(w, "read request body failed", http.StatusBadRequest)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	resp, status := receiver.HandleWebhook(r.Context(), body, headers)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		slog.Error("httpserver: write webhook response failed", "bot_id", botID, "error", err)
	}
}

// resolveBotByAppID consults the store on an app_id cache miss: it scans
// every enabled, running bot and asks its adapter's CacheKeyField which
// settings key routes inbound webhooks to it, comparing that setting's
// value against appID. Returns "" with a nil error if nothing matches.
func (s *Server) resolveBotByAppID(ctx context.Context, appID string) (string, error) {
	bots, err := s.bots.ListEnabledBots(ctx)
	if err != nil {
		return "", fmt.Errorf("list enabled bots: %w", err)
	}

	for _, bot := range bots {
		a, ok := s.adapters.Get(bot.ID)
		if !ok {
			continue
		}

		field := a.CacheKeyField()
		if field == "" {
			continue
		}

		if v, _ := bot.Settings[field].(string); v == appID {
			return bot.ID, nil
		}
	}

	return "", nil
}
