package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/taskbot/internal/policy"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

func (b *Bot) handleMyTasks(ctx context.Context, ev *event) error {
	list, err := b.store.ListTasks(ctx, tasks.TaskFilter{UserID: ev.userID, WithUser: true})
	if err != nil {
		return fmt.Errorf("list tasks of %d: %w", ev.userID, err)
	}
	if len(list) == 0 {
		b.say(ctx, ev.userID, "You have no tasks.")
		return nil
	}

	now := b.now()
	b.say(ctx, ev.userID, "📋 <b>Your tasks:</b>")
	var chatID int64
	for i, task := range list {
		// Tasks arrive ordered by chat, so a header starts each group.
		if i == 0 || task.ChatID != chatID {
			chatID = task.ChatID
			b.say(ctx, ev.userID, fmt.Sprintf("<b>Tasks in chat: %s</b>", view.Escape(b.chatTitle(ctx, chatID))))
		}
		text, kb := b.format.TaskCard(task, policy.RoleOwner, now)
		b.sayInline(ctx, ev.userID, text, kb)
	}
	return nil
}

func (b *Bot) handleViewUsers(ctx context.Context, ev *event) error {
	ref, ok := b.requireAdminContext(ctx, ev.userID)
	if !ok {
		return nil
	}
	users, err := b.assignable(ctx, ref.ID)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		b.say(ctx, ev.userID, fmt.Sprintf("No members of <b>%s</b> are known yet.", view.Escape(ref.Title)))
		return nil
	}
	b.sessions.Begin(ev.userID, session.WorkflowViewTasks, session.StepSelectingUser, session.Draft{ChatID: ref.ID})
	b.metrics.ObserveTransition(string(session.WorkflowViewTasks), string(session.StepSelectingUser))
	b.sayInline(ctx, ev.userID,
		fmt.Sprintf("Choose a member of <b>%s</b>:", view.Escape(ref.Title)),
		view.UserChoice(users, view.KindViewUser))
	return nil
}

func (b *Bot) handleViewUser(ctx context.Context, ev *event) error {
	chatID := ev.sess.Draft.ChatID
	user, err := b.store.GetUser(ctx, ev.data.ID, chatID)
	if errors.Is(err, tasks.ErrUserNotFound) {
		b.answer(ctx, ev, "This member is no longer known.", true)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", ev.data.ID, err)
	}
	b.sessions.Reset(ev.userID)
	b.answer(ctx, ev, "", false)

	list, err := b.store.ListTasks(ctx, tasks.TaskFilter{UserID: user.UserID, ChatID: chatID, WithUser: true})
	if err != nil {
		return fmt.Errorf("list tasks of %d: %w", user.UserID, err)
	}

	handle := "N/A"
	if user.Username != "" {
		handle = "@" + user.Username
	}
	b.replace(ctx, ev, fmt.Sprintf("Tasks of <b>%s</b> (%s)", view.Escape(user.DisplayName()), view.Escape(handle)), nil)
	if len(list) == 0 {
		b.say(ctx, ev.userID, "This member has no tasks.")
		return nil
	}
	now := b.now()
	for _, task := range list {
		text, kb := b.format.TaskCard(task, policy.RoleAdmin, now)
		b.sayInline(ctx, ev.userID, text, kb)
	}
	return nil
}
