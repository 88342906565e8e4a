package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/view"
)

const genericFailure = "⚠️ Something went wrong, please try again."

// send delivers msg and records gateway failures. Callers that can degrade
// inspect the error, everyone else ignores it.
func (b *Bot) send(ctx context.Context, msg gateway.OutgoingMessage) error {
	if msg.ParseMode == "" {
		msg.ParseMode = gateway.ParseModeHTML
	}
	if _, err := b.gw.Send(ctx, msg); err != nil {
		b.metrics.ObserveGatewayError("send")
		b.logger.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("send failed")
		return err
	}
	return nil
}

func (b *Bot) say(ctx context.Context, chatID int64, text string) {
	_ = b.send(ctx, gateway.OutgoingMessage{ChatID: chatID, Text: text})
}

func (b *Bot) sayInline(ctx context.Context, chatID int64, text string, kb gateway.InlineKeyboard) {
	_ = b.send(ctx, gateway.OutgoingMessage{ChatID: chatID, Text: text, Inline: kb})
}

func (b *Bot) sayMenu(ctx context.Context, chatID int64, text string, menu *gateway.ReplyKeyboard) {
	_ = b.send(ctx, gateway.OutgoingMessage{ChatID: chatID, Text: text, Reply: menu})
}

// answer acknowledges a callback. An empty text just stops the spinner.
func (b *Bot) answer(ctx context.Context, ev *event, text string, alert bool) {
	if ev.cb == nil {
		return
	}
	if err := b.gw.AnswerCallback(ctx, ev.cb.ID, text, alert); err != nil {
		b.metrics.ObserveGatewayError("answer_callback")
		b.logger.Debug().Err(err).Str("callback_id", ev.cb.ID).Msg("answer callback failed")
	}
}

// replace rewrites the message the pressed button belongs to. A nil
// keyboard removes the buttons.
func (b *Bot) replace(ctx context.Context, ev *event, text string, kb gateway.InlineKeyboard) {
	if ev.cb == nil || ev.cb.Message == nil {
		return
	}
	m := ev.cb.Message
	if err := b.gw.EditText(ctx, m.Chat.ID, m.ID, text, gateway.ParseModeHTML, kb); err != nil {
		b.metrics.ObserveGatewayError("edit_text")
		b.logger.Warn().Err(err).Int64("chat_id", m.Chat.ID).Int("message_id", m.ID).Msg("edit failed")
	}
}

func (b *Bot) rekey(ctx context.Context, ev *event, kb gateway.InlineKeyboard) {
	if ev.cb == nil || ev.cb.Message == nil {
		return
	}
	m := ev.cb.Message
	if err := b.gw.EditMarkup(ctx, m.Chat.ID, m.ID, kb); err != nil {
		b.metrics.ObserveGatewayError("edit_markup")
		b.logger.Warn().Err(err).Int64("chat_id", m.Chat.ID).Int("message_id", m.ID).Msg("edit markup failed")
	}
}

func (b *Bot) fail(ctx context.Context, ev *event) {
	if ev.cb != nil {
		b.answer(ctx, ev, genericFailure, true)
	}
	b.say(ctx, ev.replyChat(), genericFailure)
}

// chatTitle resolves a chat title through the cache. Failed lookups fall
// back to the numeric id and are not cached.
func (b *Bot) chatTitle(ctx context.Context, chatID int64) string {
	if title, ok := b.titles.Get(chatID); ok {
		return title
	}
	chat, err := b.gw.GetChat(ctx, chatID)
	if err != nil || strings.TrimSpace(chat.Title) == "" {
		if err != nil {
			b.metrics.ObserveGatewayError("get_chat")
			b.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("chat title lookup failed")
		}
		return view.ChatTitle("", chatID)
	}
	b.titles.Set(chatID, chat.Title)
	return chat.Title
}

// rememberTitle seeds the cache from a title seen on an inbound update.
func (b *Bot) rememberTitle(chat gateway.Chat) {
	if chat.IsPrivate() || strings.TrimSpace(chat.Title) == "" {
		return
	}
	b.titles.Set(chat.ID, chat.Title)
}

// menuFor returns the reply keyboard matching the user's live admin status in chatID.
func (b *Bot) menuFor(ctx context.Context, userID, chatID int64) *gateway.ReplyKeyboard {
	return view.Menu(b.auth.IsAdmin(ctx, userID, chatID))
}

func senderName(s gateway.Sender) string {
	if name := s.FullName(); strings.TrimSpace(name) != "" {
		return name
	}
	if s.Username != "" {
		return "@" + s.Username
	}
	return fmt.Sprintf("user %d", s.ID)
}

func (b *Bot) botHandle() string {
	return "@" + b.gw.Me().Username
}
