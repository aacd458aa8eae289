package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestToEventPrivateChatIsToMe(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      &tgbotapi.User{ID: 42},
			Chat:      &tgbotapi.Chat{ID: 42, Type: "private"},
			Text:      "hello",
		},
	}

	ev := toEvent("bot1", update)
	if !ev.ToMe {
		t.Fatal("expected private chat messages to be ToMe")
	}
	if ev.UserID != "42" {
		t.Fatalf("UserID = %q, want 42", ev.UserID)
	}
	if got := ev.Message.ExtractPlainText(); got != "hello" {
		t.Fatalf("plain text = %q, want hello", got)
	}
}

func TestToEventGroupChatSetsGroupID(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 2,
			From:      &tgbotapi.User{ID: 1},
			Chat:      &tgbotapi.Chat{ID: -100, Type: "group"},
			Text:      "hi there",
		},
	}

	ev := toEvent("bot1", update)
	if ev.GroupID != "-100" {
		t.Fatalf("GroupID = %q, want -100", ev.GroupID)
	}
}
