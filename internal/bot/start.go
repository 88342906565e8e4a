package bot

import (
	"context"
	"fmt"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
	"github.com/ent0n29/taskbot/internal/view"
)

// observe records that sender is active in chat. An empty status leaves a
// known member's status untouched.
func (b *Bot) observe(ctx context.Context, chat gateway.Chat, sender gateway.Sender, status tasks.MemberStatus) error {
	if sender.IsBot || chat.IsPrivate() {
		return nil
	}
	b.rememberTitle(chat)
	_, err := b.store.UpsertUser(ctx, tasks.UserObservation{
		UserID:   sender.ID,
		ChatID:   chat.ID,
		Username: sender.Username,
		FullName: sender.FullName(),
		Status:   status,
		SeenAt:   b.now(),
	})
	if err != nil {
		return fmt.Errorf("observe user %d in chat %d: %w", sender.ID, chat.ID, err)
	}
	return nil
}

func (b *Bot) handleObserve(ctx context.Context, ev *event) error {
	return b.observe(ctx, ev.msg.Chat, ev.msg.From, "")
}

func (b *Bot) handleMembership(ctx context.Context, ev *event) error {
	m := ev.upd.Membership
	status := tasks.MemberStatus(m.Member.Status)
	if status == "restricted" {
		status = tasks.MemberStatusMember
	}
	if err := b.observe(ctx, m.Chat, m.Member.User, status); err != nil {
		return err
	}
	b.logger.Info().
		Int64("chat_id", m.Chat.ID).
		Int64("user_id", m.Member.User.ID).
		Str("status", string(status)).
		Msg("membership changed")
	return nil
}

func (b *Bot) handleStartGroup(ctx context.Context, ev *event) error {
	if err := b.observe(ctx, ev.msg.Chat, ev.msg.From, ""); err != nil {
		return err
	}
	text := fmt.Sprintf("👋 Hi, %s! You are registered in this chat.\nTo receive task notifications, open a private chat with %s and press /start.",
		view.Escape(senderName(ev.msg.From)), b.botHandle())
	b.sayInline(ctx, ev.msg.Chat.ID, text, view.BotLink(b.gw.Me().Username))
	return nil
}

// handleStartPrivate looks for chats where the user is a live administrator
// and picks the admin context accordingly.
func (b *Bot) handleStartPrivate(ctx context.Context, ev *event) error {
	chatIDs, err := b.store.ListChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}
	adminOf := b.auth.AdminChats(ctx, ev.userID, chatIDs)
	refs := make([]session.ChatRef, 0, len(adminOf))
	for _, id := range adminOf {
		refs = append(refs, session.ChatRef{ID: id, Title: b.chatTitle(ctx, id)})
	}

	switch len(refs) {
	case 0:
		b.sessions.ClearAdminContext(ev.userID)
		b.sayMenu(ctx, ev.userID, "👋 Welcome! Here you will receive your tasks and deadline reminders.", view.MemberMenu())
	case 1:
		b.sessions.SetAdminContext(ev.userID, refs[0])
		b.sayMenu(ctx, ev.userID,
			fmt.Sprintf("👋 Welcome! You manage <b>%s</b>.", view.Escape(refs[0].Title)),
			view.AdminMenu())
	default:
		b.sessions.Begin(ev.userID, session.WorkflowAdminContext, session.StepChoosingChat, session.Draft{Candidates: refs})
		b.metrics.ObserveTransition(string(session.WorkflowAdminContext), string(session.StepChoosingChat))
		b.sayInline(ctx, ev.userID, "You administer several chats. Choose the one to manage:", view.ChatChoice(refs))
		b.sayMenu(ctx, ev.userID, "Admin menu", view.AdminMenu())
	}
	return nil
}

func (b *Bot) handleAdminGroup(ctx context.Context, ev *event) error {
	chat := ev.msg.Chat
	if !b.auth.IsAdmin(ctx, ev.userID, chat.ID) {
		b.say(ctx, chat.ID, "⛔ Only chat administrators can use this command.")
		return nil
	}
	if err := b.observe(ctx, chat, ev.msg.From, ""); err != nil {
		return err
	}

	title := view.ChatTitle(chat.Title, chat.ID)
	b.sessions.SetAdminContext(ev.userID, session.ChatRef{ID: chat.ID, Title: title})

	err := b.send(ctx, gateway.OutgoingMessage{
		ChatID: ev.userID,
		Text:   fmt.Sprintf("🛠 Admin mode for <b>%s</b> is on.", view.Escape(title)),
		Reply:  view.AdminMenu(),
	})
	if err != nil {
		b.sayInline(ctx, chat.ID,
			fmt.Sprintf("%s, please open a private chat with %s and press /start first.", view.Escape(senderName(ev.msg.From)), b.botHandle()),
			view.BotLink(b.gw.Me().Username))
		return nil
	}
	b.say(ctx, chat.ID, "✅ The admin panel has been sent to your private chat.")
	return nil
}

func (b *Bot) handleSetAdminContext(ctx context.Context, ev *event) error {
	chatID := ev.data.ID
	if !b.auth.IsAdmin(ctx, ev.userID, chatID) {
		b.answer(ctx, ev, "⛔ You are not an administrator of this chat.", true)
		return nil
	}

	title := ""
	for _, c := range ev.sess.Draft.Candidates {
		if c.ID == chatID {
			title = c.Title
		}
	}
	if title == "" {
		title = b.chatTitle(ctx, chatID)
	}

	b.sessions.SetAdminContext(ev.userID, session.ChatRef{ID: chatID, Title: title})
	if ev.sess.Workflow == session.WorkflowAdminContext {
		b.sessions.Reset(ev.userID)
	}
	b.answer(ctx, ev, "", false)
	b.replace(ctx, ev, fmt.Sprintf("🛠 Managing <b>%s</b>.", view.Escape(title)), nil)
	b.sayMenu(ctx, ev.userID, "Choose next action", view.AdminMenu())
	return nil
}

func (b *Bot) handleCancel(ctx context.Context, ev *event) error {
	wasIdle := ev.sess.Idle()
	b.sessions.Reset(ev.userID)
	if !wasIdle {
		b.metrics.ObserveTransition(string(ev.sess.Workflow), "cancelled")
	}

	menu := view.MemberMenu()
	if _, ok := b.auth.ActiveAdminContext(ctx, ev.userID); ok {
		menu = view.AdminMenu()
	}

	if ev.cb != nil {
		b.answer(ctx, ev, "", false)
		b.replace(ctx, ev, "✖ Cancelled.", nil)
	}
	if wasIdle {
		b.sayMenu(ctx, ev.userID, "Nothing to cancel.", menu)
		return nil
	}
	b.sayMenu(ctx, ev.userID, "✖ Cancelled. Choose next action", menu)
	return nil
}

// handleStaleCallback acknowledges buttons that no longer match the user's state.
func (b *Bot) handleStaleCallback(ctx context.Context, ev *event) error {
	b.answer(ctx, ev, "", false)
	return nil
}
