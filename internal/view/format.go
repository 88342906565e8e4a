// Package view renders user-facing texts and keyboards.
package view

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/tasks"
)

const (
	DateLayout     = "02.01.2006"
	DateTimeLayout = "02.01.2006 15:04"
)

// Formatter renders times in one location.
type Formatter struct {
	loc *time.Location
}

func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{loc: loc}
}

func (f Formatter) Date(t time.Time) string     { return t.In(f.loc).Format(DateLayout) }
func (f Formatter) DateTime(t time.Time) string { return t.In(f.loc).Format(DateTimeLayout) }

// TaskCard renders a task with the buttons its audience may press.
func (f Formatter) TaskCard(task tasks.Task, role policy.Role, now time.Time) (string, gateway.InlineKeyboard) {
	status := "❌ Not completed"
	if task.Completed {
		status = "✅ Completed"
	} else if task.End.Before(now) {
		status = "⚠️ Not completed (overdue)"
	}
	assignee := "Unknown"
	if task.User != nil {
		assignee = task.User.DisplayName()
	}

	text := fmt.Sprintf("<b>Task #%d</b>\nAssignee: %s\nDescription: %s\nStart: %s\nEnd: %s\nStatus: %s",
		task.ID,
		Escape(assignee),
		Escape(task.Description),
		f.DateTime(task.Start),
		f.DateTime(task.End),
		status,
	)

	var kb gateway.InlineKeyboard
	if !task.Completed {
		kb = append(kb, row(btn("✅ Mark completed", Callback{Kind: KindCompleteTask, ID: task.ID})))
	}
	kb = append(kb, row(btn("✏️ Edit", Callback{Kind: KindEditTask, ID: task.ID})))
	if role == policy.RoleAdmin {
		kb = append(kb,
			row(btn("🗑 Delete", Callback{Kind: KindDeleteTask, ID: task.ID})),
			row(btn("💬 Send message", Callback{Kind: KindMessageTask, ID: task.ID})),
		)
	}
	return text, kb
}

// NoticeKind distinguishes scheduler notifications.
type NoticeKind string

const (
	NoticeOverdue  NoticeKind = "overdue"
	NoticeUpcoming NoticeKind = "upcoming"
)

// DeadlineNotice renders a scheduler notification. Permissions are checked
// when a button is pressed, so every recipient gets the same buttons.
func (f Formatter) DeadlineNotice(kind NoticeKind, task tasks.Task) (string, gateway.InlineKeyboard) {
	headline, dueLabel := "🔥 <b>Deadline approaching!</b> 🔥", "Due"
	if kind == NoticeOverdue {
		headline, dueLabel = "⚠️ <b>Task overdue!</b> ⚠️", "Was due"
	}
	text := fmt.Sprintf("%s\n\n<b>Task #%d</b>: %s\n<b>Start:</b> %s\n<b>%s:</b> %s",
		headline,
		task.ID,
		Escape(task.Description),
		f.DateTime(task.Start),
		dueLabel,
		f.DateTime(task.End),
	)

	var kb gateway.InlineKeyboard
	if !task.Completed {
		kb = append(kb, row(btn("✅ Mark completed", Callback{Kind: KindCompleteTask, ID: task.ID})))
	}
	kb = append(kb,
		row(btn("✏️ Edit", Callback{Kind: KindEditTask, ID: task.ID})),
		row(btn("🗑 Delete", Callback{Kind: KindDeleteTask, ID: task.ID})),
	)
	return text, kb
}

// Assignment is the direct message an assignee gets for a new task.
func (f Formatter) Assignment(task tasks.Task, chatTitle, creator string) string {
	return fmt.Sprintf("🔔 <b>New task!</b>\n\nYou have been assigned a task in <b>%s</b>.\n\n<b>Description:</b> %s\n<b>Start:</b> %s\n<b>End:</b> %s\n<b>Created by:</b> %s",
		Escape(chatTitle),
		Escape(task.Description),
		f.DateTime(task.Start),
		f.DateTime(task.End),
		Escape(creator),
	)
}

// DraftSummary is the confirmation text shown before a task is created.
func (f Formatter) DraftSummary(assignee, description string, start, end time.Time) string {
	return fmt.Sprintf("Please confirm the new task:\n\n<b>Assignee:</b> %s\n<b>Description:</b> %s\n<b>Start:</b> %s\n<b>End:</b> %s",
		Escape(assignee),
		Escape(description),
		f.DateTime(start),
		f.DateTime(end),
	)
}

// AdminMessage wraps a free-text note from an administrator with a quote of the task.
func (f Formatter) AdminMessage(task tasks.Task, text, sender string) string {
	var b strings.Builder
	b.WriteString("<b>Message from an administrator:</b>\n")
	fmt.Fprintf(&b, "<b>Text:</b> %s\n\n", Escape(text))
	fmt.Fprintf(&b, "<b>Task #%d</b>\nDescription: %s\nStart: %s\nEnd: %s\n\n",
		task.ID, Escape(task.Description), f.DateTime(task.Start), f.DateTime(task.End))
	fmt.Fprintf(&b, "<i>Sender: %s</i>", Escape(sender))
	return b.String()
}

// ChatTitle falls back to the numeric id when the title is unknown.
func ChatTitle(title string, chatID int64) string {
	if strings.TrimSpace(title) == "" {
		return fmt.Sprintf("ID: %d", chatID)
	}
	return title
}

// Escape makes user text safe inside HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}
