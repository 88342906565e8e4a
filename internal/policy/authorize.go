package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
)

type Role string

const (
	RoleNone  Role = ""
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Decision is the outcome of a task authorization check.
type Decision struct {
	Allowed bool
	Role    Role
	Reason  string
}

// AdminLister is the slice of the gateway the resolver needs.
type AdminLister interface {
	GetChatAdministrators(ctx context.Context, chatID int64) ([]gateway.Member, error)
}

// ContextSource exposes the chat each administrator is currently managing.
type ContextSource interface {
	AdminContext(userID int64) (session.ChatRef, bool)
}

// Resolver answers permission questions against live platform state.
// Administrator lists are never cached.
type Resolver struct {
	admins   AdminLister
	contexts ContextSource
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewResolver(admins AdminLister, contexts ContextSource, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{admins: admins, contexts: contexts, timeout: timeout, logger: logger}
}

// IsAdmin reports whether userID administers chatID. Lookup failures are
// logged and answered with false.
func (r *Resolver) IsAdmin(ctx context.Context, userID, chatID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	members, err := r.admins.GetChatAdministrators(ctx, chatID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", userID).Int64("chat_id", chatID).Msg("admin lookup failed, treating as non-admin")
		return false
	}
	for _, m := range members {
		if m.User.ID == userID && (m.Status == string(tasks.MemberStatusAdministrator) || m.Status == string(tasks.MemberStatusCreator)) {
			return true
		}
	}
	return false
}

func (r *Resolver) AdminContext(userID int64) (session.ChatRef, bool) {
	return r.contexts.AdminContext(userID)
}

// ActiveAdminContext returns the admin context only if the user still
// administers that chat.
func (r *Resolver) ActiveAdminContext(ctx context.Context, userID int64) (session.ChatRef, bool) {
	ref, ok := r.contexts.AdminContext(userID)
	if !ok {
		return session.ChatRef{}, false
	}
	if !r.IsAdmin(ctx, userID, ref.ID) {
		return ref, false
	}
	return ref, true
}

// CanActOnTask allows the task owner, or an administrator of the task's chat
// whose current admin context is that chat.
func (r *Resolver) CanActOnTask(ctx context.Context, userID int64, task tasks.Task) Decision {
	if ref, ok := r.contexts.AdminContext(userID); ok && ref.ID == task.ChatID {
		if r.IsAdmin(ctx, userID, task.ChatID) {
			return Decision{Allowed: true, Role: RoleAdmin}
		}
	}
	if task.UserID == userID {
		return Decision{Allowed: true, Role: RoleOwner}
	}
	return Decision{Reason: "you are not allowed to manage this task"}
}

// AdminChats filters chatIDs down to the chats userID administers.
func (r *Resolver) AdminChats(ctx context.Context, userID int64, chatIDs []int64) []int64 {
	var out []int64
	for _, id := range chatIDs {
		if ctx.Err() != nil {
			break
		}
		if r.IsAdmin(ctx, userID, id) {
			out = append(out, id)
		}
	}
	return out
}
