package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/adapter/discord"
	"github.com/rakunlabs/atbot/internal/adapter/telegram"
	"github.com/rakunlabs/atbot/internal/adapter/webhook"
	"github.com/rakunlabs/atbot/internal/adapter/websocket"
	"github.com/rakunlabs/atbot/internal/cluster"
	"github.com/rakunlabs/atbot/internal/config"
	"github.com/rakunlabs/atbot/internal/dispatch"
	"github.com/rakunlabs/atbot/internal/event"
	"github.com/rakunlabs/atbot/internal/httpserver"
	"github.com/rakunlabs/atbot/internal/kv"
	"github.com/rakunlabs/atbot/internal/scheduler"
	"github.com/rakunlabs/atbot/internal/store"
	"github.com/rakunlabs/atbot/internal/store/memory"
	"github.com/rakunlabs/atbot/internal/store/postgres"
	"github.com/rakunlabs/atbot/internal/store/sqlite3"
	"github.com/rakunlabs/atbot/internal/workflow"
	"github.com/rakunlabs/atbot/internal/workflow/nodes"
)

var (
	name    = "atbot"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	dedup := openKV(cfg)
	defer dedup.Close()

	nodes.DataDir = cfg.DataDir

	cl, err := cluster.New(cfg.Alan)
	if err != nil {
		return fmt.Errorf("create cluster: %w", err)
	}
	if cl != nil {
		go func() {
			if err := cl.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cluster: stopped", "error", err)
			}
		}()
		defer cl.Stop()
	}

	adapters := adapter.NewManager()
	adapters.Register("webhook", webhook.New(dedup))
	adapters.Register("websocket", websocket.New())
	adapters.Register("discord", discord.New())
	adapters.Register("telegram", telegram.New())

	nodes.CallAPI = adapters.CallAPI

	cache := workflow.NewCache(db, db, nil)
	if err := cache.Reload(ctx); err != nil {
		return fmt.Errorf("load workflow cache: %w", err)
	}

	disp := &dispatch.Dispatcher{
		Bots:     db,
		Cache:    cache,
		Adapters: adapters,
		Globals: func() []store.GlobalVariable {
			vars, err := db.ListGlobalVariables(ctx)
			if err != nil {
				slog.Error("list global variables failed", "error", err)
				return nil
			}
			return vars
		},
	}

	if err := startBots(ctx, db, adapters, disp); err != nil {
		return fmt.Errorf("start bots: %w", err)
	}

	sched := &scheduler.Scheduler{
		Workflows:     db,
		Subscriptions: db,
		Bots:          db,
		Dispatch:      disp,
		Timezone:      cfg.Scheduler.Timezone,
		Cluster:       cl,
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := httpserver.New(cfg.HTTP, db, adapters)
	return srv.Start(ctx)
}

// startBots starts the adapter for every enabled bot, wiring each one's
// inbound events straight into the dispatcher.
func startBots(ctx context.Context, bots store.BotStorer, adapters *adapter.Manager, disp *dispatch.Dispatcher) error {
	enabled, err := bots.ListEnabledBots(ctx)
	if err != nil {
		return fmt.Errorf("list enabled bots: %w", err)
	}

	handler := func(ctx context.Context, ev event.Event) {
		if err := disp.Dispatch(ctx, ev); err != nil {
			slog.Error("dispatch failed", "bot_id", ev.BotID, "error", err)
		}
	}

	for _, bot := range enabled {
		if err := adapters.StartAdapter(ctx, bot.ID, bot.Protocol, bot.Settings, bot.Secrets, handler); err != nil {
			slog.Error("start adapter failed", "bot_id", bot.ID, "protocol", bot.Protocol, "error", err)
			continue
		}
		slog.Info("started bot adapter", "bot_id", bot.ID, "protocol", bot.Protocol)
	}

	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch {
	case cfg.Store.Postgres != nil:
		slog.Info("using postgres store")
		return postgres.New(ctx, cfg.Store.Postgres)
	case cfg.Store.SQLite != nil:
		slog.Info("using sqlite store")
		return sqlite3.New(ctx, cfg.Store.SQLite)
	default:
		slog.Info("using in-memory store")
		return memory.New(), nil
	}
}

func openKV(cfg *config.Config) kv.Store {
	if cfg.KV.RedisAddr != "" {
		slog.Info("using redis kv store", "addr", cfg.KV.RedisAddr)
		return kv.NewRedis(cfg.KV.RedisAddr, cfg.KV.RedisPassword, cfg.KV.RedisDB)
	}
	slog.Info("using in-memory kv store")
	return kv.NewMemory()
}
