package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestToEventStripsSelfMentionAndSetsToMe(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: "999"}

	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   "<@999> hello",
		Author:    &discordgo.User{ID: "42"},
		Mentions:  []*discordgo.User{{ID: "999"}},
	}}

	ev := toEvent("bot1", s, m)
	if !ev.ToMe {
		t.Fatal("expected ToMe=true when bot is mentioned")
	}
	if got := ev.Message.ExtractPlainText(); got != "hello" {
		t.Fatalf("plain text = %q, want hello", got)
	}
	if ev.UserID != "42" {
		t.Fatalf("UserID = %q, want 42", ev.UserID)
	}
}

func TestToEventDirectMessageAlwaysToMe(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	s.State.User = &discordgo.User{ID: "999"}

	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:      "1",
		GuildID: "",
		Content: "hi",
		Author:  &discordgo.User{ID: "42"},
	}}

	ev := toEvent("bot1", s, m)
	if !ev.ToMe {
		t.Fatal("expected direct messages (no guild) to always be ToMe")
	}
}
