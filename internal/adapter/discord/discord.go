// Package discord implements the Discord gateway protocol adapter on top
// of discordgo: one Session per bot, normal discordgo event handlers feed
// the shared Event/Message model, callAPI dispatches to the session's
// REST methods.
package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/rakunlabs/atbot/internal/adapter"
	"github.com/rakunlabs/atbot/internal/event"
)

// Adapter implements adapter.Adapter over a discordgo.Session.
type Adapter struct {
	botID string
	appID string

	mu      sync.Mutex
	handler adapter.Handler
	session *discordgo.Session
}

// New returns a Constructor for the Discord adapter.
func New() adapter.Constructor {
	return func(botID string, config map[string]any, secrets map[string]string) (adapter.Adapter, error) {
		appID, _ := config["app_id"].(string)
		if appID == "" {
			return nil, fmt.Errorf("discord: 'app_id' is required")
		}
		token := secrets["bot_token"]
		if token == "" {
			return nil, fmt.Errorf("discord: 'bot_token' is required")
		}

		session, err := discordgo.New("Bot " + token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

		return &Adapter{botID: botID, appID: appID, session: session}, nil
	}
}

func (a *Adapter) ProtocolName() string  { return "discord" }
func (a *Adapter) CacheKeyField() string { return "app_id" }

func (a *Adapter) SetMessageHandler(h adapter.Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler != nil {
		return
	}
	a.handler = h
	a.session.AddHandler(a.onMessageCreate)
}

func (a *Adapter) Start(_ context.Context) error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

func (a *Adapter) Stop(_ context.Context) error {
	return a.session.Close()
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}

	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h == nil {
		return
	}

	ev := toEvent(a.botID, s, m)
	go h(context.Background(), ev)
}

func toEvent(botID string, s *discordgo.Session, m *discordgo.MessageCreate) event.Event {
	toMe := false
	content := m.Content
	if s.State != nil && s.State.User != nil {
		selfID := s.State.User.ID
		for _, mention := range m.Mentions {
			if mention.ID == selfID {
				toMe = true
				break
			}
		}
		content = strings.TrimSpace(strings.NewReplacer(
			"<@"+selfID+">", "",
			"<@!"+selfID+">", "",
		).Replace(content))
	}

	segs := event.NewMessage(content)
	for _, att := range m.Attachments {
		segs = append(segs, event.Image(att.URL))
	}

	ev := event.Event{
		ID:        m.ID,
		Kind:      event.KindMessage,
		Protocol:  "discord",
		BotID:     botID,
		EventName: "MESSAGE_CREATE",
		UserID:    m.Author.ID,
		ChannelID: m.ChannelID,
		GroupID:   m.GuildID,
		Message:   segs,
		ToMe:      toMe || m.GuildID == "",
		RawData:   rawFromMessage(m),
	}
	if m.Timestamp.Unix() > 0 {
		ev.Timestamp = m.Timestamp
	}
	return ev
}

func rawFromMessage(m *discordgo.MessageCreate) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"channel_id": m.ChannelID,
		"guild_id":   m.GuildID,
		"content":    m.Content,
	}
}

// CallAPI dispatches an outbound action to discordgo's REST methods.
func (a *Adapter) CallAPI(_ context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case "send-message", "send_message":
		channelID, _ := params["channel_id"].(string)
		content, _ := params["content"].(string)
		if channelID == "" {
			return nil, fmt.Errorf("discord: 'channel_id' is required")
		}
		msg, err := a.session.ChannelMessageSend(channelID, content)
		if err != nil {
			return nil, fmt.Errorf("discord: send message: %w", err)
		}
		return map[string]any{"message_id": msg.ID}, nil

	case "delete-message", "delete_message":
		channelID, _ := params["channel_id"].(string)
		messageID, _ := params["message_id"].(string)
		if err := a.session.ChannelMessageDelete(channelID, messageID); err != nil {
			return nil, fmt.Errorf("discord: delete message: %w", err)
		}
		return map[string]any{"deleted": true}, nil

	default:
		return nil, fmt.Errorf("discord: unknown action %q", action)
	}
}
