package view

import (
	"time"

	"github.com/ent0n29/taskbot/internal/calendar"
	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
)

// Reply keyboard labels. They double as text commands.
const (
	LabelNewTask   = "New task"
	LabelViewUsers = "View user tasks"
	LabelMyTasks   = "My tasks"
	LabelCancel    = "Cancel"
)

func MemberMenu() *gateway.ReplyKeyboard {
	return &gateway.ReplyKeyboard{Rows: [][]string{{LabelMyTasks}}}
}

func AdminMenu() *gateway.ReplyKeyboard {
	return &gateway.ReplyKeyboard{Rows: [][]string{
		{LabelNewTask},
		{LabelViewUsers},
		{LabelMyTasks},
	}}
}

// Menu picks the reply keyboard for the caller's live admin status.
func Menu(admin bool) *gateway.ReplyKeyboard {
	if admin {
		return AdminMenu()
	}
	return MemberMenu()
}

func ChatChoice(chats []session.ChatRef) gateway.InlineKeyboard {
	kb := make(gateway.InlineKeyboard, 0, len(chats))
	for _, c := range chats {
		kb = append(kb, row(btn(ChatTitle(c.Title, c.ID), Callback{Kind: KindSetAdminContext, ID: c.ID})))
	}
	return kb
}

// UserChoice lists members as buttons of the given kind (assign or view).
func UserChoice(users []tasks.User, kind Kind) gateway.InlineKeyboard {
	kb := make(gateway.InlineKeyboard, 0, len(users)+1)
	for _, u := range users {
		kb = append(kb, row(btn(u.DisplayName(), Callback{Kind: kind, ID: u.UserID})))
	}
	return append(kb, row(btn("✖ Cancel", Callback{Kind: KindAbort})))
}

func Confirmation() gateway.InlineKeyboard {
	return gateway.InlineKeyboard{row(
		btn("✅ Confirm", Callback{Kind: KindConfirmTask}),
		btn("❌ Cancel", Callback{Kind: KindCancelTask}),
	)}
}

func EditChoice(taskID int64) gateway.InlineKeyboard {
	return gateway.InlineKeyboard{
		row(btn("Description", Callback{Kind: KindEditField, ID: taskID, Field: FieldDescription})),
		row(btn("End date/time", Callback{Kind: KindEditField, ID: taskID, Field: FieldEnd})),
		row(btn("✖ Cancel", Callback{Kind: KindAbort})),
	}
}

// Picker renders the month picker positioned on t, with an abort row.
func Picker(t time.Time) gateway.InlineKeyboard {
	return WithAbort(calendar.RenderFor(t))
}

// WithAbort appends a cancel row to kb.
func WithAbort(kb gateway.InlineKeyboard) gateway.InlineKeyboard {
	return append(kb, row(btn("✖ Cancel", Callback{Kind: KindAbort})))
}

// BotLink is a button that opens a private chat with the bot.
func BotLink(username string) gateway.InlineKeyboard {
	return gateway.InlineKeyboard{{{Text: "Open @" + username, URL: "https://t.me/" + username}}}
}

func row(buttons ...gateway.InlineButton) []gateway.InlineButton { return buttons }

func btn(text string, cb Callback) gateway.InlineButton {
	return gateway.InlineButton{Text: text, Data: cb.Encode()}
}
