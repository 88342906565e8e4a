package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/taskbot/internal/calendar"
	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/taskruntime"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

// authorizeTask loads the task behind a button and checks the caller may act
// on it. Denials are answered here; ok is false when the caller should stop.
func (b *Bot) authorizeTask(ctx context.Context, ev *event) (tasks.Task, policy.Decision, bool, error) {
	task, err := b.store.GetTask(ctx, ev.data.ID, true)
	if errors.Is(err, tasks.ErrTaskNotFound) {
		b.answer(ctx, ev, "Task not found. It may have been deleted.", true)
		return tasks.Task{}, policy.Decision{}, false, nil
	}
	if err != nil {
		return tasks.Task{}, policy.Decision{}, false, fmt.Errorf("load task %d: %w", ev.data.ID, err)
	}
	decision := b.auth.CanActOnTask(ctx, ev.userID, task)
	if !decision.Allowed {
		b.logger.Info().Int64("task_id", task.ID).Int64("user_id", ev.userID).Msg("task action denied")
		b.answer(ctx, ev, "⛔ You are not allowed to manage this task.", true)
		return tasks.Task{}, decision, false, nil
	}
	return task, decision, true, nil
}

func (b *Bot) handleCompleteTask(ctx context.Context, ev *event) error {
	task, _, ok, err := b.authorizeTask(ctx, ev)
	if !ok {
		return err
	}
	if task.Completed {
		b.answer(ctx, ev, "This task is already completed.", false)
		return nil
	}
	if _, err := b.runtime.CompleteTask(ctx, ev.userID, task.ID); err != nil {
		return err
	}
	b.answer(ctx, ev, fmt.Sprintf("Task #%d marked as completed", task.ID), false)
	b.replace(ctx, ev, fmt.Sprintf("✅ Task #%d marked as completed.", task.ID), nil)
	return nil
}

func (b *Bot) handleDeleteTask(ctx context.Context, ev *event) error {
	task, _, ok, err := b.authorizeTask(ctx, ev)
	if !ok {
		return err
	}
	if err := b.runtime.DeleteTask(ctx, ev.userID, task); err != nil {
		return err
	}
	b.answer(ctx, ev, fmt.Sprintf("Task #%d deleted", task.ID), false)
	b.replace(ctx, ev, fmt.Sprintf("🗑 Task #%d deleted.", task.ID), nil)
	return nil
}

func (b *Bot) handleEditTask(ctx context.Context, ev *event) error {
	task, _, ok, err := b.authorizeTask(ctx, ev)
	if !ok {
		return err
	}
	b.sessions.Begin(ev.userID, session.WorkflowEditTask, session.StepChoosingField, session.Draft{
		TaskID: task.ID,
		ChatID: task.ChatID,
		Start:  task.Start,
	})
	b.metrics.ObserveTransition(string(session.WorkflowEditTask), string(session.StepChoosingField))
	b.answer(ctx, ev, "", false)
	b.sayInline(ctx, ev.userID, fmt.Sprintf("✏️ Editing task #%d. What do you want to change?", task.ID), view.EditChoice(task.ID))
	return nil
}

func (b *Bot) handleEditField(ctx context.Context, ev *event) error {
	if ev.data.ID != ev.sess.Draft.TaskID {
		return b.handleStaleCallback(ctx, ev)
	}
	b.answer(ctx, ev, "", false)
	switch ev.data.Field {
	case view.FieldDescription:
		b.advance(ev, session.StepEditingDescription, nil)
		b.replace(ctx, ev, fmt.Sprintf("Enter the new description for task #%d:", ev.data.ID), nil)
	case view.FieldEnd:
		b.advance(ev, session.StepSelectingEndDate, nil)
		b.replace(ctx, ev, fmt.Sprintf("Choose the new end date for task #%d:", ev.data.ID),
			view.Picker(b.now().In(b.cfg.Location)))
	}
	return nil
}

func (b *Bot) handleEditDescription(ctx context.Context, ev *event) error {
	draft := ev.sess.Draft
	_, err := b.runtime.UpdateDescription(ctx, ev.userID, draft.TaskID, ev.msg.Text)
	switch {
	case errors.Is(err, taskruntime.ErrEmptyDescription):
		b.say(ctx, ev.userID, "❗ The description cannot be empty.")
		return nil
	case errors.Is(err, tasks.ErrTaskNotFound):
		b.sessions.Reset(ev.userID)
		b.say(ctx, ev.userID, "Task not found. It may have been deleted.")
		return nil
	case err != nil:
		return err
	}
	b.sessions.Reset(ev.userID)
	b.metrics.ObserveTransition(string(session.WorkflowEditTask), "updated")
	b.sayMenu(ctx, ev.userID, "✅ Description updated!", b.menuFor(ctx, ev.userID, draft.ChatID))
	return nil
}

func (b *Bot) handleEditEndTime(ctx context.Context, ev *event) error {
	clock, err := calendar.ParseClock(ev.msg.Text)
	if err != nil {
		b.say(ctx, ev.userID, "❗ Invalid time. "+timeHint)
		return nil
	}
	draft := ev.sess.Draft
	end := calendar.Combine(draft.EndDate, clock)
	_, err = b.runtime.UpdateEnd(ctx, ev.userID, draft.TaskID, end)
	switch {
	case errors.Is(err, taskruntime.ErrInvalidBounds):
		b.say(ctx, ev.userID, fmt.Sprintf("❗ The end must be after the start (%s). Enter the end time again.", b.format.DateTime(draft.Start)))
		return nil
	case errors.Is(err, tasks.ErrTaskNotFound):
		b.sessions.Reset(ev.userID)
		b.say(ctx, ev.userID, "Task not found. It may have been deleted.")
		return nil
	case err != nil:
		return err
	}
	b.sessions.Reset(ev.userID)
	b.metrics.ObserveTransition(string(session.WorkflowEditTask), "updated")
	b.sayMenu(ctx, ev.userID, "✅ End date updated!", b.menuFor(ctx, ev.userID, draft.ChatID))
	return nil
}

func (b *Bot) handleMessageTask(ctx context.Context, ev *event) error {
	task, decision, ok, err := b.authorizeTask(ctx, ev)
	if !ok {
		return err
	}
	if decision.Role != policy.RoleAdmin {
		b.answer(ctx, ev, "⛔ Only administrators can message the assignee.", true)
		return nil
	}
	b.sessions.Begin(ev.userID, session.WorkflowSendMessage, session.StepEnteringMessage, session.Draft{
		TaskID: task.ID,
		ChatID: task.ChatID,
	})
	b.metrics.ObserveTransition(string(session.WorkflowSendMessage), string(session.StepEnteringMessage))
	b.answer(ctx, ev, "", false)
	name := "the assignee"
	if task.User != nil {
		name = task.User.DisplayName()
	}
	b.sayInline(ctx, ev.userID,
		fmt.Sprintf("💬 Enter the message for <b>%s</b> about task #%d:", view.Escape(name), task.ID),
		view.WithAbort(nil))
	return nil
}

func (b *Bot) handleMessageText(ctx context.Context, ev *event) error {
	text := strings.TrimSpace(ev.msg.Text)
	if text == "" {
		b.say(ctx, ev.userID, "❗ The message cannot be empty.")
		return nil
	}
	draft := ev.sess.Draft
	b.sessions.Reset(ev.userID)

	task, err := b.store.GetTask(ctx, draft.TaskID, true)
	if errors.Is(err, tasks.ErrTaskNotFound) {
		b.sayMenu(ctx, ev.userID, "Task not found. It may have been deleted.", view.AdminMenu())
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task %d: %w", draft.TaskID, err)
	}

	name := fmt.Sprintf("user %d", task.UserID)
	if task.User != nil {
		name = task.User.DisplayName()
	}
	err = b.send(ctx, gateway.OutgoingMessage{
		ChatID: task.UserID,
		Text:   b.format.AdminMessage(task, text, senderName(ev.msg.From)),
	})
	b.metrics.ObserveNotification("admin_message", err)
	b.metrics.ObserveTransition(string(session.WorkflowSendMessage), "sent")
	if err != nil {
		b.sayMenu(ctx, ev.userID,
			fmt.Sprintf("❌ Could not deliver the message. <b>%s</b> has not started a private chat with %s.", view.Escape(name), b.botHandle()),
			view.AdminMenu())
		return nil
	}
	b.sayMenu(ctx, ev.userID, fmt.Sprintf("✅ Message delivered to <b>%s</b>.", view.Escape(name)), view.AdminMenu())
	return nil
}
