package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Edit records an EditText or EditMarkup call on the mock.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Markup    InlineKeyboard
	TextEdit  bool
}

type Answer struct {
	CallbackID string
	Text       string
	Alert      bool
}

// Mock is an in-memory Gateway for tests and offline runs.
type Mock struct {
	mu sync.Mutex

	self        BotIdentity
	nextID      int
	sent        []OutgoingMessage
	edits       []Edit
	deletes     []SentMessage
	answers     []Answer
	chats       map[int64]Chat
	admins      map[int64][]Member
	unreachable map[int64]bool
	failAdmins  map[int64]bool
}

func NewMock() *Mock {
	return &Mock{
		self:        BotIdentity{ID: 1, Username: "taskbot"},
		chats:       make(map[int64]Chat),
		admins:      make(map[int64][]Member),
		unreachable: make(map[int64]bool),
		failAdmins:  make(map[int64]bool),
	}
}

func (m *Mock) Me() BotIdentity { return m.self }

// SetChat registers a chat returned by GetChat.
func (m *Mock) SetChat(chat Chat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
}

// SetAdmins replaces the administrator list of a chat.
func (m *Mock) SetAdmins(chatID int64, userIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]Member, 0, len(userIDs))
	for _, id := range userIDs {
		members = append(members, Member{User: Sender{ID: id}, Status: "administrator"})
	}
	m.admins[chatID] = members
}

// SetUnreachable makes every Send to chatID fail.
func (m *Mock) SetUnreachable(chatID int64, unreachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable[chatID] = unreachable
}

// FailAdminLookup makes GetChatAdministrators fail for chatID.
func (m *Mock) FailAdminLookup(chatID int64, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAdmins[chatID] = fail
}

func (m *Mock) Send(_ context.Context, msg OutgoingMessage) (SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unreachable[msg.ChatID] {
		return SentMessage{}, fmt.Errorf("send to %d: %w", msg.ChatID, ErrNotDelivered)
	}
	m.nextID++
	m.sent = append(m.sent, msg)
	return SentMessage{ChatID: msg.ChatID, MessageID: m.nextID}, nil
}

func (m *Mock) EditText(_ context.Context, chatID int64, messageID int, text string, _ ParseMode, markup InlineKeyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, Edit{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup, TextEdit: true})
	return nil
}

func (m *Mock) EditMarkup(_ context.Context, chatID int64, messageID int, markup InlineKeyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, Edit{ChatID: chatID, MessageID: messageID, Markup: markup})
	return nil
}

func (m *Mock) Delete(_ context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, SentMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *Mock) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, Answer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

func (m *Mock) GetChat(_ context.Context, chatID int64) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[chatID]
	if !ok {
		return Chat{}, fmt.Errorf("get chat %d: chat not found", chatID)
	}
	return chat, nil
}

func (m *Mock) GetChatAdministrators(_ context.Context, chatID int64) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdmins[chatID] {
		return nil, fmt.Errorf("get administrators of %d: upstream unavailable", chatID)
	}
	return append([]Member(nil), m.admins[chatID]...), nil
}

// Sent returns the messages delivered to chatID, or every message when chatID is 0.
func (m *Mock) Sent(chatID int64) []OutgoingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutgoingMessage
	for _, msg := range m.sent {
		if chatID == 0 || msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Mock) Edits() []Edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Edit(nil), m.edits...)
}

func (m *Mock) Answers() []Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Answer(nil), m.answers...)
}

func (m *Mock) Deletes() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.deletes...)
}

// Reset drops recorded traffic but keeps chats and administrators.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.edits = nil
	m.deletes = nil
	m.answers = nil
}
