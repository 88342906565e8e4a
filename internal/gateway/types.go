package gateway

import (
	"context"
	"errors"
)

var ErrNotDelivered = errors.New("message not delivered")

type ParseMode string

const (
	ParseModePlain ParseMode = ""
	ParseModeHTML  ParseMode = "HTML"
)

// InlineButton is a button attached to a message. Data is the opaque callback payload.
type InlineButton struct {
	Text string
	Data string
	URL  string
}

type InlineKeyboard [][]InlineButton

// ReplyKeyboard replaces the user's input keyboard with fixed labels. Remove hides it.
type ReplyKeyboard struct {
	Rows   [][]string
	Remove bool
}

type OutgoingMessage struct {
	ChatID    int64
	Text      string
	ParseMode ParseMode
	Inline    InlineKeyboard
	Reply     *ReplyKeyboard
}

type SentMessage struct {
	ChatID    int64
	MessageID int
}

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

type Chat struct {
	ID    int64
	Kind  ChatKind
	Title string
}

func (c Chat) IsPrivate() bool { return c.Kind == ChatPrivate }

type Sender struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

func (s Sender) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type Member struct {
	User   Sender
	Status string
}

type BotIdentity struct {
	ID       int64
	Username string
}

// Update is one inbound event. Exactly one of the pointers is set.
type Update struct {
	ID         int
	Message    *Message
	Callback   *Callback
	Membership *Membership
}

// SenderID is the key used to serialize per-user processing.
func (u Update) SenderID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.From.ID
	case u.Callback != nil:
		return u.Callback.From.ID
	case u.Membership != nil:
		return u.Membership.Member.User.ID
	default:
		return 0
	}
}

type Message struct {
	ID      int
	Chat    Chat
	From    Sender
	Text    string
	Command string
	// Args is the text after the command, if any.
	Args string
}

type Callback struct {
	ID      string
	From    Sender
	Data    string
	Message *Message
}

type Membership struct {
	Chat   Chat
	Member Member
}

// Gateway sends messages to the messaging platform. Every call is fallible.
type Gateway interface {
	Send(ctx context.Context, msg OutgoingMessage) (SentMessage, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, parseMode ParseMode, markup InlineKeyboard) error
	EditMarkup(ctx context.Context, chatID int64, messageID int, markup InlineKeyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	GetChat(ctx context.Context, chatID int64) (Chat, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]Member, error)
	Me() BotIdentity
}
