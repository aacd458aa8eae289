// Package telegram implements the Telegram Bot API protocol adapter using
// long polling: one bot API client per bot, a dedicated reader goroutine
// draining GetUpdatesChan, callAPI dispatches to tgbotapi.NewMessage sends.
package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/event"
)

// Adapter implements adapter.Adapter over tgbotapi's long-poll client.
type Adapter struct {
	botID string

	mu      sync.Mutex
	handler adapter.Handler
	bot     *tgbotapi.BotAPI

	cancel context.CancelFunc
}

// New returns a Constructor for the Telegram adapter.
func New() adapter.Constructor {
	return func(botID string, config map[string]any, secrets map[string]string) (adapter.Adapter, error) {
		token := secrets["bot_token"]
		if token == "" {
			return nil, fmt.Errorf("telegram: 'bot_token' is required")
		}

		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return nil, fmt.Errorf("telegram: create bot: %w", err)
		}

		return &Adapter{botID: botID, bot: bot}, nil
	}
}

func (a *Adapter) ProtocolName() string  { return "telegram" }
func (a *Adapter) CacheKeyField() string { return "" }

func (a *Adapter) SetMessageHandler(h adapter.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler == nil {
		a.handler = h
	}
}

// Start begins the long-poll loop in a dedicated goroutine, mirroring the
// WebSocket adapter's reader-goroutine shape.
func (a *Adapter) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.bot.GetUpdatesChan(u)

	go a.run(runCtx, updates)
	return nil
}

func (a *Adapter) run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			a.mu.Lock()
			h := a.handler
			a.mu.Unlock()
			if h == nil {
				continue
			}
			go h(context.Background(), toEvent(a.botID, update))
		}
	}
}

func (a *Adapter) Stop(_ context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.bot.StopReceivingUpdates()
	return nil
}

func toEvent(botID string, update tgbotapi.Update) event.Event {
	msg := update.Message

	ev := event.Event{
		ID:        fmt.Sprintf("%d", msg.MessageID),
		Kind:      event.KindMessage,
		Protocol:  "telegram",
		BotID:     botID,
		EventName: "message",
		UserID:    fmt.Sprintf("%d", msg.From.ID),
		ChannelID: fmt.Sprintf("%d", msg.Chat.ID),
		Message:   event.NewMessage(msg.Text),
		ToMe:      msg.Chat.IsPrivate(),
		Timestamp: msg.Time(),
		RawData: map[string]any{
			"message_id": msg.MessageID,
			"chat_id":    msg.Chat.ID,
			"text":       msg.Text,
		},
	}
	if msg.Chat.IsGroup() || msg.Chat.IsSuperGroup() {
		ev.GroupID = fmt.Sprintf("%d", msg.Chat.ID)
		ev.ChannelID = ""
		if msg.Entities != nil {
			for _, ent := range msg.Entities {
				if ent.Type == "mention" {
					ev.ToMe = true
				}
			}
		}
	}
	return ev
}

// CallAPI dispatches an outbound action to the Bot API's send methods.
func (a *Adapter) CallAPI(_ context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "send-message", "send_message":
		chatID, ok := toInt64(params["chat_id"])
		if !ok {
			return nil, fmt.Errorf("telegram: 'chat_id' is required")
		}
		content, _ := params["content"].(string)

		msg := tgbotapi.NewMessage(chatID, content)
		if replyTo, ok := toInt(params["reply_to_message_id"]); ok {
			msg.ReplyToMessageID = replyTo
		}

		sent, err := a.bot.Send(msg)
		if err != nil {
			return nil, fmt.Errorf("telegram: send message: %w", err)
		}
		return map[string]any{"message_id": sent.MessageID}, nil

	default:
		return nil, fmt.Errorf("telegram: unknown action %q", action)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	n, ok := toInt64(v)
	return int(n), ok
}
