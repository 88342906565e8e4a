package policy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/taskbot/internal/gateway"
	"github.com/ent0n29/taskbot/internal/session"
	"github.com/ent0n29/taskbot/internal/tasks"
)

func newTestResolver(t *testing.T) (*Resolver, *gateway.Mock, *session.Manager) {
	t.Helper()
	gw := gateway.NewMock()
	sessions := session.NewManager(time.Hour)
	return NewResolver(gw, sessions, time.Second, zerolog.Nop()), gw, sessions
}

func TestCanActOnTaskMatrix(t *testing.T) {
	ctx := context.Background()
	r, gw, sessions := newTestResolver(t)
	gw.SetAdmins(100, 1)
	gw.SetAdmins(200, 1)
	task := tasks.Task{ID: 5, UserID: 2, ChatID: 100}

	// Owner.
	if d := r.CanActOnTask(ctx, 2, task); !d.Allowed || d.Role != RoleOwner {
		t.Fatalf("owner decision = %+v", d)
	}
	// Neither owner nor admin.
	if d := r.CanActOnTask(ctx, 3, task); d.Allowed {
		t.Fatalf("stranger decision = %+v, want denied", d)
	}
	// Real admin without a context.
	if d := r.CanActOnTask(ctx, 1, task); d.Allowed {
		t.Fatalf("admin without context = %+v, want denied", d)
	}
	// Real admin whose context points at another chat.
	sessions.SetAdminContext(1, session.ChatRef{ID: 200})
	if d := r.CanActOnTask(ctx, 1, task); d.Allowed {
		t.Fatalf("admin with stale context = %+v, want denied", d)
	}
	// Matching context.
	sessions.SetAdminContext(1, session.ChatRef{ID: 100})
	if d := r.CanActOnTask(ctx, 1, task); !d.Allowed || d.Role != RoleAdmin {
		t.Fatalf("admin in context = %+v", d)
	}
	// Context matches but the user is no longer an administrator.
	gw.SetAdmins(100)
	if d := r.CanActOnTask(ctx, 1, task); d.Allowed {
		t.Fatalf("demoted admin = %+v, want denied", d)
	}
}

func TestIsAdminLookupFailureIsFalse(t *testing.T) {
	r, gw, _ := newTestResolver(t)
	gw.SetAdmins(100, 1)
	gw.FailAdminLookup(100, true)
	if r.IsAdmin(context.Background(), 1, 100) {
		t.Fatalf("IsAdmin() = true on lookup failure, want false")
	}
}

func TestAdminChatsFilters(t *testing.T) {
	r, gw, _ := newTestResolver(t)
	gw.SetAdmins(100, 1)
	gw.SetAdmins(200, 2)
	gw.SetAdmins(300, 1, 2)

	got := r.AdminChats(context.Background(), 1, []int64{100, 200, 300})
	if len(got) != 2 || got[0] != 100 || got[1] != 300 {
		t.Fatalf("AdminChats() = %v, want [100 300]", got)
	}
}

func TestActiveAdminContextRevalidates(t *testing.T) {
	r, gw, sessions := newTestResolver(t)
	sessions.SetAdminContext(1, session.ChatRef{ID: 100, Title: "Team"})
	if _, ok := r.ActiveAdminContext(context.Background(), 1); ok {
		t.Fatalf("ActiveAdminContext() ok = true for non-admin")
	}
	gw.SetAdmins(100, 1)
	ref, ok := r.ActiveAdminContext(context.Background(), 1)
	if !ok || ref.Title != "Team" {
		t.Fatalf("ActiveAdminContext() = %+v, %v", ref, ok)
	}
}
