package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestConvertUpdateCommand(t *testing.T) {
	raw := tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			MessageID: 11,
			From:      &tgbotapi.User{ID: 42, FirstName: "Ann", LastName: "Lee", UserName: "ann"},
			Chat:      &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Team"},
			Text:      "/admin@taskbot now",
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 14}},
		},
	}

	got := convertUpdate(raw)
	if len(got) != 1 || got[0].Message == nil {
		t.Fatalf("convertUpdate() = %+v, want one message", got)
	}
	msg := got[0].Message
	if msg.Command != "admin" || msg.Args != "now" {
		t.Fatalf("command = %q args = %q, want admin/now", msg.Command, msg.Args)
	}
	if msg.Chat.Kind != ChatSupergroup || msg.Chat.Title != "Team" {
		t.Fatalf("unexpected chat: %+v", msg.Chat)
	}
	if msg.From.FullName() != "Ann Lee" || got[0].SenderID() != 42 {
		t.Fatalf("unexpected sender: %+v", msg.From)
	}
}

func TestConvertUpdateNewMembersBecomeMemberships(t *testing.T) {
	raw := tgbotapi.Update{
		Message: &tgbotapi.Message{
			From:           &tgbotapi.User{ID: 1},
			Chat:           &tgbotapi.Chat{ID: -100, Type: "group", Title: "Team"},
			NewChatMembers: []tgbotapi.User{{ID: 5, FirstName: "Eve"}, {ID: 6, FirstName: "Mo"}},
		},
	}
	got := convertUpdate(raw)
	if len(got) != 2 {
		t.Fatalf("len(updates) = %d, want 2", len(got))
	}
	for _, upd := range got {
		if upd.Membership == nil || upd.Membership.Member.Status != "member" {
			t.Fatalf("unexpected update: %+v", upd)
		}
	}
	if got[1].SenderID() != 6 {
		t.Fatalf("SenderID() = %d, want 6", got[1].SenderID())
	}
}

func TestConvertUpdateCallback(t *testing.T) {
	raw := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			From: &tgbotapi.User{ID: 9},
			Data: "complete_task|3",
			Message: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: 9, Type: "private"},
			},
		},
	}
	got := convertUpdate(raw)
	if len(got) != 1 || got[0].Callback == nil {
		t.Fatalf("convertUpdate() = %+v, want one callback", got)
	}
	cb := got[0].Callback
	if cb.Data != "complete_task|3" || cb.Message == nil || cb.Message.ID != 77 || !cb.Message.Chat.IsPrivate() {
		t.Fatalf("unexpected callback: %+v", cb)
	}
}

func TestInlineMarkupKeepsLayout(t *testing.T) {
	markup := inlineMarkup(InlineKeyboard{
		{{Text: "a", Data: "1"}, {Text: "b", Data: "2"}},
		{{Text: "open", URL: "https://t.me/taskbot"}},
	})
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout: %+v", markup.InlineKeyboard)
	}
	if markup.InlineKeyboard[0][1].CallbackData == nil || *markup.InlineKeyboard[0][1].CallbackData != "2" {
		t.Fatalf("callback data not preserved: %+v", markup.InlineKeyboard[0][1])
	}
	if markup.InlineKeyboard[1][0].URL == nil {
		t.Fatalf("url button lost its url")
	}
}

func TestRedactedErrorUnwraps(t *testing.T) {
	apiErr := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	err := fmt.Errorf("send: %w", redact(apiErr))
	if !IsUnreachable(err) {
		t.Fatalf("IsUnreachable(%v) = false, want true", err)
	}

	transport := errors.New(`Post "https://api.telegram.org/bot123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/getMe": EOF`)
	if msg := redact(transport).Error(); strings.Contains(msg, "AAHdqTcv") {
		t.Fatalf("token leaked: %q", msg)
	}
}

func TestMockUnreachable(t *testing.T) {
	m := NewMock()
	m.SetUnreachable(5, true)
	if _, err := m.Send(context.Background(), OutgoingMessage{ChatID: 5, Text: "hi"}); !IsUnreachable(err) {
		t.Fatalf("Send() error = %v, want unreachable", err)
	}
	if _, err := m.Send(context.Background(), OutgoingMessage{ChatID: 6, Text: "hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(m.Sent(0)) != 1 {
		t.Fatalf("len(Sent) = %d, want 1", len(m.Sent(0)))
	}
}
