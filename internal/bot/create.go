package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/taskbot/internal/calendar"
	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

const timeHint = "Use HH:MM in 24-hour format, for example 09:30."

// requireAdminContext returns the chat the user manages, or tells them how
// to pick one.
func (b *Bot) requireAdminContext(ctx context.Context, userID int64) (session.ChatRef, bool) {
	ref, ok := b.auth.ActiveAdminContext(ctx, userID)
	if ok {
		return ref, true
	}
	if ref.ID == 0 {
		b.say(ctx, userID, "You have not chosen a chat to manage. Send /admin in the group or /start here.")
	} else {
		b.sayMenu(ctx, userID,
			fmt.Sprintf("⛔ You are no longer an administrator of <b>%s</b>.", view.Escape(view.ChatTitle(ref.Title, ref.ID))),
			view.MemberMenu())
	}
	return session.ChatRef{}, false
}

// assignable lists members of chatID who can receive tasks.
func (b *Bot) assignable(ctx context.Context, chatID int64) ([]tasks.User, error) {
	users, err := b.store.ListUsersByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list users of chat %d: %w", chatID, err)
	}
	out := users[:0]
	for _, u := range users {
		if u.Status.Active() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (b *Bot) handleNewTask(ctx context.Context, ev *event) error {
	ref, ok := b.requireAdminContext(ctx, ev.userID)
	if !ok {
		return nil
	}
	users, err := b.assignable(ctx, ref.ID)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		b.say(ctx, ev.userID, fmt.Sprintf("No members of <b>%s</b> are known yet. Members appear once they write in the group.", view.Escape(ref.Title)))
		return nil
	}

	b.sessions.Begin(ev.userID, session.WorkflowCreateTask, session.StepSelectingAssignee, session.Draft{ChatID: ref.ID})
	b.metrics.ObserveTransition(string(session.WorkflowCreateTask), string(session.StepSelectingAssignee))
	b.sayInline(ctx, ev.userID,
		fmt.Sprintf("Step 1/7: choose the assignee in <b>%s</b>.", view.Escape(ref.Title)),
		view.UserChoice(users, view.KindAssignUser))
	return nil
}

func (b *Bot) handleAssignUser(ctx context.Context, ev *event) error {
	user, err := b.store.GetUser(ctx, ev.data.ID, ev.sess.Draft.ChatID)
	if errors.Is(err, tasks.ErrUserNotFound) {
		b.answer(ctx, ev, "This member is no longer known.", true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load assignee: %w", err)
	}

	b.advance(ev, session.StepSelectingStartDate, func(d *session.Draft) {
		d.AssigneeID = user.UserID
		d.AssigneeName = user.DisplayName()
	})
	b.answer(ctx, ev, "", false)
	b.replace(ctx, ev, fmt.Sprintf("Assignee: <b>%s</b>", view.Escape(user.DisplayName())), nil)
	b.sayInline(ctx, ev.userID, "Step 2/7: choose the start date.", view.Picker(b.now().In(b.cfg.Location)))
	return nil
}

// handleCalendar interprets a picker press for every step that shows a picker.
// Navigation only redraws the picker; a day selection advances.
func (b *Bot) handleCalendar(ctx context.Context, ev *event) error {
	res := calendar.Interpret(ev.data.Calendar, b.cfg.Location)
	switch res.Outcome {
	case calendar.Ignored:
		b.answer(ctx, ev, "", false)
		return nil
	case calendar.Navigated:
		b.answer(ctx, ev, "", false)
		b.rekey(ctx, ev, view.Picker(time.Date(res.Year, res.Month, 1, 0, 0, 0, 0, b.cfg.Location)))
		return nil
	}

	date := res.Date
	draft := ev.sess.Draft
	switch {
	case ev.sess.In(session.WorkflowCreateTask, session.StepSelectingStartDate):
		b.advance(ev, session.StepEnteringStartTime, func(d *session.Draft) { d.StartDate = date })
		b.answer(ctx, ev, "", false)
		b.replace(ctx, ev, "Start date: <b>"+b.format.Date(date)+"</b>", nil)
		b.say(ctx, ev.userID, "Step 3/7: enter the start time. "+timeHint)

	case ev.sess.In(session.WorkflowCreateTask, session.StepSelectingEndDate):
		if date.Before(draft.StartDate) {
			b.answer(ctx, ev, "The end date cannot be before the start date.", true)
			b.rekey(ctx, ev, view.Picker(draft.StartDate))
			return nil
		}
		b.advance(ev, session.StepEnteringEndTime, func(d *session.Draft) { d.EndDate = date })
		b.answer(ctx, ev, "", false)
		b.replace(ctx, ev, "End date: <b>"+b.format.Date(date)+"</b>", nil)
		b.say(ctx, ev.userID, "Step 5/7: enter the end time. "+timeHint)

	case ev.sess.In(session.WorkflowEditTask, session.StepSelectingEndDate):
		start := draft.Start.In(b.cfg.Location)
		startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, b.cfg.Location)
		if date.Before(startDay) {
			b.answer(ctx, ev, "The end date cannot be before the task start ("+b.format.Date(start)+").", true)
			b.rekey(ctx, ev, view.Picker(start))
			return nil
		}
		b.advance(ev, session.StepEnteringEndTime, func(d *session.Draft) { d.EndDate = date })
		b.answer(ctx, ev, "", false)
		b.replace(ctx, ev, "New end date: <b>"+b.format.Date(date)+"</b>", nil)
		b.say(ctx, ev.userID, "Enter the new end time. "+timeHint)
	}
	return nil
}

func (b *Bot) handleStartTime(ctx context.Context, ev *event) error {
	clock, err := calendar.ParseClock(ev.msg.Text)
	if err != nil {
		b.say(ctx, ev.userID, "❗ Invalid time. "+timeHint)
		return nil
	}
	start := calendar.Combine(ev.sess.Draft.StartDate, clock)
	b.advance(ev, session.StepSelectingEndDate, func(d *session.Draft) { d.Start = start })
	b.sayInline(ctx, ev.userID, "Step 4/7: choose the end date.", view.Picker(ev.sess.Draft.StartDate))
	return nil
}

func (b *Bot) handleEndTime(ctx context.Context, ev *event) error {
	clock, err := calendar.ParseClock(ev.msg.Text)
	if err != nil {
		b.say(ctx, ev.userID, "❗ Invalid time. "+timeHint)
		return nil
	}
	draft := ev.sess.Draft
	end := calendar.Combine(draft.EndDate, clock)
	if !end.After(draft.Start) {
		b.say(ctx, ev.userID, fmt.Sprintf("❗ The end must be after the start (%s). Enter the end time again.", b.format.DateTime(draft.Start)))
		return nil
	}
	b.advance(ev, session.StepEnteringDescription, func(d *session.Draft) { d.End = end })
	b.say(ctx, ev.userID, "Step 6/7: enter the task description.")
	return nil
}

func (b *Bot) handleDescription(ctx context.Context, ev *event) error {
	text := strings.TrimSpace(ev.msg.Text)
	if text == "" {
		b.say(ctx, ev.userID, "❗ The description cannot be empty.")
		return nil
	}
	s := b.advance(ev, session.StepAwaitingConfirm, func(d *session.Draft) { d.Description = text })
	d := s.Draft
	b.sayInline(ctx, ev.userID,
		"Step 7/7. "+b.format.DraftSummary(d.AssigneeName, d.Description, d.Start, d.End),
		view.Confirmation())
	return nil
}

// handleConfirm persists or discards the draft. Either way the workflow ends
// and the admin context stays.
func (b *Bot) handleConfirm(ctx context.Context, ev *event) error {
	draft := ev.sess.Draft
	b.sessions.Reset(ev.userID)
	b.answer(ctx, ev, "", false)

	if ev.data.Kind == view.KindCancelTask {
		b.metrics.ObserveTransition(string(session.WorkflowCreateTask), "cancelled")
		b.replace(ctx, ev, "✖ Task creation cancelled.", nil)
		b.sayMenu(ctx, ev.userID, "Choose next action", view.AdminMenu())
		return nil
	}

	task, err := b.runtime.CreateTask(ctx, ev.userID, tasks.NewTask{
		UserID:      draft.AssigneeID,
		ChatID:      draft.ChatID,
		Start:       draft.Start,
		End:         draft.End,
		Description: draft.Description,
	})
	if err != nil {
		b.replace(ctx, ev, "❌ The task could not be created. Please start again.", nil)
		return fmt.Errorf("create task: %w", err)
	}
	b.metrics.ObserveTransition(string(session.WorkflowCreateTask), "created")
	b.replace(ctx, ev, fmt.Sprintf("✅ Task #%d created.\n\n%s", task.ID,
		b.format.DraftSummary(draft.AssigneeName, task.Description, task.Start, task.End)), nil)

	b.notifyAssignee(ctx, ev, task, draft)
	b.sayMenu(ctx, ev.userID, "Choose next action", view.AdminMenu())
	return nil
}

// notifyAssignee makes one delivery attempt. On failure the creator is told
// to ask the assignee to start the bot.
func (b *Bot) notifyAssignee(ctx context.Context, ev *event, task tasks.Task, draft session.Draft) {
	title := b.chatTitle(ctx, task.ChatID)
	text := b.format.Assignment(task, title, senderName(ev.cb.From))
	err := b.send(ctx, gateway.OutgoingMessage{ChatID: task.UserID, Text: text})
	b.metrics.ObserveNotification("assignment", err)
	if err == nil {
		return
	}
	b.logger.Warn().Err(err).Int64("task_id", task.ID).Int64("assignee_id", task.UserID).Msg("assignee notification failed")
	b.say(ctx, ev.userID, fmt.Sprintf("⚠️ Could not notify <b>%s</b>. Ask them to open a private chat with %s and press /start.",
		view.Escape(draft.AssigneeName), b.botHandle()))
}

// advance moves the sender's workflow forward and counts the transition.
func (b *Bot) advance(ev *event, step session.Step, mutate func(*session.Draft)) *session.Session {
	s := b.sessions.Advance(ev.userID, step, mutate)
	b.metrics.ObserveTransition(string(s.Workflow), string(step))
	return s
}
