package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/observability"
	"github.com/ent0n29/taskbot/internal/reliability"
)

type TelegramConfig struct {
	Token         string
	Debug         bool
	UpdateTimeout int
	// MaxAttempts bounds retries for rate-limited or 5xx responses.
	MaxAttempts int
}

// Telegram implements Gateway on top of the Bot API long-polling client.
type Telegram struct {
	api         *tgbotapi.BotAPI
	self        BotIdentity
	timeout     int
	maxAttempts int
	logger      zerolog.Logger
}

func NewTelegram(cfg TelegramConfig, logger zerolog.Logger) (*Telegram, error) {
	if err := tgbotapi.SetLogger(botLogger{logger: logger}); err != nil {
		return nil, fmt.Errorf("set bot logger: %w", err)
	}
	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", redact(err))
	}
	api.Debug = cfg.Debug
	if cfg.UpdateTimeout <= 0 {
		cfg.UpdateTimeout = 30
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Telegram{
		api:         api,
		self:        BotIdentity{ID: api.Self.ID, Username: api.Self.UserName},
		timeout:     cfg.UpdateTimeout,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}, nil
}

func (t *Telegram) Me() BotIdentity { return t.self }

// Run long-polls for updates and hands each to handle until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context, handle func(Update)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.timeout
	u.AllowedUpdates = []string{"message", "callback_query", "chat_member"}
	updates := t.api.GetUpdatesChan(u)
	t.logger.Info().Str("bot", t.self.Username).Msg("receiving updates")

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}
			for _, upd := range convertUpdate(raw) {
				handle(upd)
			}
		}
	}
}

func (t *Telegram) Send(ctx context.Context, msg OutgoingMessage) (SentMessage, error) {
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ParseMode = string(msg.ParseMode)
	cfg.DisableWebPagePreview = true
	switch {
	case len(msg.Inline) > 0:
		cfg.ReplyMarkup = inlineMarkup(msg.Inline)
	case msg.Reply != nil && msg.Reply.Remove:
		cfg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	case msg.Reply != nil:
		cfg.ReplyMarkup = replyMarkup(*msg.Reply)
	}

	var sent tgbotapi.Message
	err := t.withRetry(ctx, "send", func() error {
		var err error
		sent, err = t.api.Send(cfg)
		return err
	})
	if err != nil {
		return SentMessage{}, err
	}
	return SentMessage{ChatID: msg.ChatID, MessageID: sent.MessageID}, nil
}

func (t *Telegram) EditText(ctx context.Context, chatID int64, messageID int, text string, parseMode ParseMode, markup InlineKeyboard) error {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ParseMode = string(parseMode)
	if markup != nil {
		m := inlineMarkup(markup)
		cfg.ReplyMarkup = &m
	}
	return t.request(ctx, "edit_text", cfg)
}

// EditMarkup replaces the inline keyboard. An empty markup removes it.
func (t *Telegram) EditMarkup(ctx context.Context, chatID int64, messageID int, markup InlineKeyboard) error {
	return t.request(ctx, "edit_markup", tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineMarkup(markup)))
}

func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	return t.request(ctx, "delete", tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	return t.request(ctx, "answer_callback", cfg)
}

func (t *Telegram) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	var chat tgbotapi.Chat
	err := t.withRetry(ctx, "get_chat", func() error {
		var err error
		chat, err = t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
		return err
	})
	if err != nil {
		return Chat{}, err
	}
	return convertChat(&chat), nil
}

func (t *Telegram) GetChatAdministrators(ctx context.Context, chatID int64) ([]Member, error) {
	var members []tgbotapi.ChatMember
	err := t.withRetry(ctx, "get_chat_administrators", func() error {
		var err error
		members, err = t.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, Member{User: convertSender(m.User), Status: m.Status})
	}
	return out, nil
}

func (t *Telegram) request(ctx context.Context, op string, c tgbotapi.Chattable) error {
	return t.withRetry(ctx, op, func() error {
		_, err := t.api.Request(c)
		if err != nil && strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return err
	})
}

// withRetry retries rate-limited and 5xx responses with a capped backoff.
// The underlying client has no context support, so ctx only bounds the waits.
func (t *Telegram) withRetry(ctx context.Context, op string, call func() error) error {
	var err error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if !errors.As(err, &apiErr) || !reliability.IsRetryableHTTPStatus(apiErr.Code) {
			break
		}
		wait := reliability.RetryDelay(attempt, apiErr.RetryAfter, 500*time.Millisecond, 30*time.Second)
		t.logger.Warn().Str("op", op).Int("code", apiErr.Code).Dur("wait", wait).Msg("bot api call throttled, retrying")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s: %w", op, redact(err))
}

// IsUnreachable reports whether the recipient cannot be messaged at all,
// e.g. the user never opened a private chat with the bot or blocked it.
func IsUnreachable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 403 || (apiErr.Code == 400 && strings.Contains(apiErr.Message, "chat not found"))
	}
	return errors.Is(err, ErrNotDelivered)
}

func inlineMarkup(kb InlineKeyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func replyMarkup(kb ReplyKeyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

func convertUpdate(raw tgbotapi.Update) []Update {
	switch {
	case raw.CallbackQuery != nil:
		cb := raw.CallbackQuery
		out := &Callback{ID: cb.ID, Data: cb.Data, From: convertSender(cb.From)}
		if cb.Message != nil {
			out.Message = convertMessage(cb.Message)
		}
		return []Update{{ID: raw.UpdateID, Callback: out}}
	case raw.ChatMember != nil:
		cm := raw.ChatMember
		return []Update{{ID: raw.UpdateID, Membership: &Membership{
			Chat:   convertChat(&cm.Chat),
			Member: Member{User: convertSender(cm.NewChatMember.User), Status: cm.NewChatMember.Status},
		}}}
	case raw.Message != nil:
		msg := raw.Message
		var out []Update
		chat := convertChat(msg.Chat)
		for i := range msg.NewChatMembers {
			out = append(out, Update{ID: raw.UpdateID, Membership: &Membership{
				Chat:   chat,
				Member: Member{User: convertSender(&msg.NewChatMembers[i]), Status: "member"},
			}})
		}
		if msg.LeftChatMember != nil {
			out = append(out, Update{ID: raw.UpdateID, Membership: &Membership{
				Chat:   chat,
				Member: Member{User: convertSender(msg.LeftChatMember), Status: "left"},
			}})
		}
		if len(out) > 0 {
			return out
		}
		if msg.From == nil {
			return nil
		}
		return []Update{{ID: raw.UpdateID, Message: convertMessage(msg)}}
	default:
		return nil
	}
}

func convertMessage(msg *tgbotapi.Message) *Message {
	out := &Message{
		ID:   msg.MessageID,
		Chat: convertChat(msg.Chat),
		From: convertSender(msg.From),
		Text: msg.Text,
	}
	if msg.IsCommand() {
		out.Command = msg.Command()
		out.Args = strings.TrimSpace(msg.CommandArguments())
	}
	return out
}

func convertChat(c *tgbotapi.Chat) Chat {
	if c == nil {
		return Chat{}
	}
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return Chat{ID: c.ID, Kind: ChatKind(c.Type), Title: title}
}

func convertSender(u *tgbotapi.User) Sender {
	if u == nil {
		return Sender{}
	}
	return Sender{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

// redactedError hides the bot token that transport errors embed in request URLs.
type redactedError struct {
	err error
}

func (e redactedError) Error() string {
	out, _ := observability.RedactSecrets(e.err.Error())
	return out
}

func (e redactedError) Unwrap() error { return e.err }

func redact(err error) error {
	if err == nil {
		return nil
	}
	return redactedError{err: err}
}

type botLogger struct {
	logger zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Debug().Msg(redactString(fmt.Sprint(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msg(redactString(fmt.Sprintf(format, v...)))
}

func redactString(s string) string {
	out, _ := observability.RedactSecrets(s)
	return out
}
